// Package saliency 提供 Token 预算内的故事上下文选择
package saliency

import (
	"strings"
	"time"
	"unicode"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// alwaysScoreFloor visibility=always 的元素获得的评分下限，保证排序在普通元素之前
const alwaysScoreFloor = 1000.0

// recencyHalfLife 新鲜度权重的半衰期
const recencyHalfLife = 7 * 24 * time.Hour

// normalizePrompt 归一化 prompt：小写、压缩空白。用于哈希与关键词提取。
func normalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
}

// keywords 把文本拆为小写关键词集合，丢弃过短的词
func keywords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	var b strings.Builder
	flush := func() {
		if b.Len() >= 3 {
			out[b.String()] = struct{}{}
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

// scoreElement 相关性评分：关键词重叠 + 新鲜度加权。
// visibility=always 的元素在此之上抬高到评分下限。
func scoreElement(el *entity.StoryElement, promptWords map[string]struct{}, now time.Time) float64 {
	elemWords := keywords(el.Name + " " + el.Text)

	overlap := 0
	for w := range promptWords {
		if _, ok := elemWords[w]; ok {
			overlap++
		}
	}

	score := float64(overlap)

	// 新鲜度：按半衰期衰减的加权项，最近更新的元素略占优
	age := now.Sub(el.UpdatedAt)
	if age < 0 {
		age = 0
	}
	recency := 1.0 / (1.0 + age.Hours()/recencyHalfLife.Hours())
	score += recency

	if el.Visibility == entity.VisibilityAlways && score < alwaysScoreFloor {
		score += alwaysScoreFloor
	}
	return score
}

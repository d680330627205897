// Package entity 定义领域实体
package entity

import "time"

// SelectedElement 选中的元素及其相关性评分
type SelectedElement struct {
	ElementID string  `json:"element_id"`
	Score     float64 `json:"score"`
	Tokens    int     `json:"tokens"`
}

// ContextSelection Token 预算内的上下文选择结果。可缓存，按内容哈希寻址。
type ContextSelection struct {
	// ContextHash 由 (project_id, 归一化 prompt, 元素最新 updated_at, 预算) 派生
	ContextHash string            `json:"context_hash"`
	ProjectID   string            `json:"project_id"`
	Elements    []SelectedElement `json:"elements"`
	TotalTokens int               `json:"total_tokens"`
	TokenBudget int               `json:"token_budget"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// ElementIDs 按选中顺序返回元素 ID 列表
func (s *ContextSelection) ElementIDs() []string {
	ids := make([]string, 0, len(s.Elements))
	for _, e := range s.Elements {
		ids = append(ids, e.ElementID)
	}
	return ids
}

// Expired 判断缓存条目是否已过期
func (s *ContextSelection) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

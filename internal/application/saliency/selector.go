package saliency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/token"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/metrics"
)

var tracer = otel.Tracer("saliency")

// DefaultCacheTTL 缓存默认有效期
const DefaultCacheTTL = 15 * time.Minute

// Selector 按相关性贪心装配 Token 预算内的故事上下文。
// 相同 context_hash 的并发请求通过 singleflight 合并为一次计算。
type Selector struct {
	elements repository.ElementRepository
	tokens   *token.Estimator
	cache    SelectionCache
	ttl      time.Duration

	group singleflight.Group
	now   func() time.Time

	// scoreCalls 评分执行次数，缓存幂等性的可观测口径
	scoreCalls atomic.Int64
}

// NewSelector 创建上下文选择器
func NewSelector(elements repository.ElementRepository, tokens *token.Estimator, cache SelectionCache, ttl time.Duration) *Selector {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Selector{
		elements: elements,
		tokens:   tokens,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
	}
}

// ScoreCalls 返回评分例程的累计执行次数
func (s *Selector) ScoreCalls() int64 {
	return s.scoreCalls.Load()
}

// Select 为 prompt 装配 Token 预算内的上下文选择。
// 空项目返回空选择（total_tokens=0）；预算不足不是错误，只会选中更少的元素。
func (s *Selector) Select(ctx context.Context, projectID, prompt string, tokenBudget int) (*entity.ContextSelection, error) {
	ctx, span := tracer.Start(ctx, "saliency.Select",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.Int("token_budget", tokenBudget),
		))
	defer span.End()

	elements, err := s.elements.GetByProject(ctx, projectID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load story elements: %w", err)
	}

	candidates := make([]*entity.StoryElement, 0, len(elements))
	var maxUpdated time.Time
	for _, el := range elements {
		if el.Visibility == entity.VisibilityNever {
			continue
		}
		candidates = append(candidates, el)
		if el.UpdatedAt.After(maxUpdated) {
			maxUpdated = el.UpdatedAt
		}
	}

	normalized := normalizePrompt(prompt)
	hash := ContextHash(projectID, normalized, maxUpdated, tokenBudget)

	// 缓存命中且未过期：直接返回，不重新评分
	if cached, err := s.cache.Get(ctx, hash); err == nil && cached != nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		metrics.SelectionCacheHits.WithLabelValues("hit").Inc()
		return cached, nil
	}

	// singleflight 合并同 hash 的在途计算
	result, err, shared := s.group.Do(hash, func() (interface{}, error) {
		// 再次检查缓存（可能已被其他请求填充）
		if cached, err := s.cache.Get(ctx, hash); err == nil && cached != nil {
			return cached, nil
		}

		sel := s.compute(hash, projectID, normalized, tokenBudget, candidates)
		if err := s.cache.Put(ctx, sel, s.ttl); err != nil {
			// 缓存写入失败不影响返回结果
			span.RecordError(err)
		}
		return sel, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if shared {
		metrics.SelectionCacheHits.WithLabelValues("shared").Inc()
	} else {
		metrics.SelectionCacheHits.WithLabelValues("miss").Inc()
	}
	return result.(*entity.ContextSelection), nil
}

// compute 评分 + 贪心装配。预算外的元素跳过而非终止，给后续更小的元素留机会。
func (s *Selector) compute(hash, projectID, normalizedPrompt string, tokenBudget int, candidates []*entity.StoryElement) *entity.ContextSelection {
	start := s.now()
	s.scoreCalls.Add(1)
	defer func() {
		metrics.SelectionDuration.Observe(time.Since(start).Seconds())
	}()

	promptWords := keywords(normalizedPrompt)

	type scored struct {
		el    *entity.StoryElement
		score float64
		size  int
	}
	list := make([]scored, 0, len(candidates))
	for _, el := range candidates {
		list = append(list, scored{
			el:    el,
			score: scoreElement(el, promptWords, start),
			size:  s.tokens.Estimate(el.Text),
		})
	}

	// 评分降序，同分时最近更新者优先
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].score != list[j].score {
			return list[i].score > list[j].score
		}
		return list[i].el.UpdatedAt.After(list[j].el.UpdatedAt)
	})

	sel := &entity.ContextSelection{
		ContextHash: hash,
		ProjectID:   projectID,
		TokenBudget: tokenBudget,
		CreatedAt:   start,
		ExpiresAt:   start.Add(s.ttl),
	}
	for _, c := range list {
		if sel.TotalTokens+c.size > tokenBudget {
			continue
		}
		sel.Elements = append(sel.Elements, entity.SelectedElement{
			ElementID: c.el.ID,
			Score:     c.score,
			Tokens:    c.size,
		})
		sel.TotalTokens += c.size
	}
	return sel
}

// ContextHash 由 (project_id, 归一化 prompt, 元素最新 updated_at, 预算) 派生选择键
func ContextHash(projectID, normalizedPrompt string, maxUpdated time.Time, tokenBudget int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%d", projectID, normalizedPrompt, maxUpdated.UnixNano(), tokenBudget)
	return hex.EncodeToString(h.Sum(nil))
}

// BuildPromptContext 把选中的元素渲染为提供商调用的上下文文本
func BuildPromptContext(sel *entity.ContextSelection, byID map[string]*entity.StoryElement) string {
	if sel == nil || len(sel.Elements) == 0 {
		return ""
	}
	var b []byte
	for _, se := range sel.Elements {
		el, ok := byID[se.ElementID]
		if !ok {
			continue
		}
		b = append(b, fmt.Sprintf("[%s] %s\n%s\n\n", el.Kind, el.Name, el.Text)...)
	}
	return string(b)
}

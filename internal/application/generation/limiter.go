package generation

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	apperrors "github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/errors"
)

// OverflowPolicy 超出并发上限时的处置策略
type OverflowPolicy string

const (
	// OverflowQueue FIFO 排队等待空位
	OverflowQueue OverflowPolicy = "queue"
	// OverflowReject 直接以 Busy 拒绝
	OverflowReject OverflowPolicy = "reject"
)

// ConcurrencyLimiter 项目级并发闸门。
// 每个项目最多 maxConcurrent 个在途生成请求，超出部分按策略排队或拒绝。
type ConcurrencyLimiter struct {
	maxConcurrent int64
	policy        OverflowPolicy

	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

// NewConcurrencyLimiter 创建并发限制器
func NewConcurrencyLimiter(maxConcurrent int, policy OverflowPolicy) *ConcurrencyLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}
	if policy != OverflowReject {
		policy = OverflowQueue
	}
	return &ConcurrencyLimiter{
		maxConcurrent: int64(maxConcurrent),
		policy:        policy,
		sems:          make(map[string]*semaphore.Weighted),
	}
}

func (l *ConcurrencyLimiter) sem(projectID string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sems[projectID]
	if !ok {
		s = semaphore.NewWeighted(l.maxConcurrent)
		l.sems[projectID] = s
	}
	return s
}

// Acquire 获取一个执行名额。queue 策略下阻塞等待（可被 ctx 取消），
// reject 策略下满载即返回 ErrBusy。成功后必须调用返回的 release。
func (l *ConcurrencyLimiter) Acquire(ctx context.Context, projectID string) (release func(), err error) {
	s := l.sem(projectID)

	switch l.policy {
	case OverflowReject:
		if !s.TryAcquire(1) {
			return nil, apperrors.ErrBusy.WithDetail(
				fmt.Sprintf("project %s has reached the concurrent generation limit", projectID))
		}
	default:
		if err := s.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("failed to acquire generation slot: %w", err)
		}
	}
	return func() { s.Release(1) }, nil
}

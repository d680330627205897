package saliency

import (
	"context"
	"sync"
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// SelectionCache 上下文选择结果的缓存端口。
// Get 对过期条目返回 (nil, nil)；实现可以是进程内或 Redis。
type SelectionCache interface {
	Get(ctx context.Context, contextHash string) (*entity.ContextSelection, error)
	Put(ctx context.Context, selection *entity.ContextSelection, ttl time.Duration) error
}

// MemoryCache 进程内缓存实现
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entity.ContextSelection
	now     func() time.Time
}

// NewMemoryCache 创建进程内缓存
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*entity.ContextSelection),
		now:     time.Now,
	}
}

// Get 读取缓存，条目过期时视为未命中并移除
func (c *MemoryCache) Get(_ context.Context, contextHash string) (*entity.ContextSelection, error) {
	c.mu.RLock()
	sel, ok := c.entries[contextHash]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if sel.Expired(c.now()) {
		c.mu.Lock()
		delete(c.entries, contextHash)
		c.mu.Unlock()
		return nil, nil
	}
	return sel, nil
}

// Put 写入缓存
func (c *MemoryCache) Put(_ context.Context, selection *entity.ContextSelection, _ time.Duration) error {
	c.mu.Lock()
	c.entries[selection.ContextHash] = selection
	c.mu.Unlock()
	return nil
}

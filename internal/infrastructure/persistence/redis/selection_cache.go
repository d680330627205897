// Package redis 提供 Redis 缓存实现
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

var cacheTracer = otel.Tracer("redis.cache")

const selectionKeyPrefix = "saliency:selection:"

// SelectionCache 上下文选择结果的 Redis 缓存。
// 多实例部署时共享缓存条目，TTL 由 Redis 过期机制兜底。
type SelectionCache struct {
	client *Client
}

// NewSelectionCache 创建选择缓存
func NewSelectionCache(client *Client) *SelectionCache {
	return &SelectionCache{client: client}
}

// Get 按 context_hash 读取缓存，未命中或已过期返回 (nil, nil)
func (c *SelectionCache) Get(ctx context.Context, contextHash string) (*entity.ContextSelection, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.SelectionGet",
		trace.WithAttributes(attribute.String("cache.key", contextHash)))
	defer span.End()

	val, err := c.client.rdb.Get(ctx, selectionKeyPrefix+contextHash).Bytes()
	if IsNil(err) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read selection cache: %w", err)
	}

	var sel entity.ContextSelection
	if err := json.Unmarshal(val, &sel); err != nil {
		// 旧格式或损坏条目：当作未命中，让上层重算覆盖
		span.RecordError(err)
		return nil, nil
	}
	if sel.Expired(time.Now()) {
		return nil, nil
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &sel, nil
}

// Put 写入缓存，Redis 侧过期时间与条目 TTL 一致
func (c *SelectionCache) Put(ctx context.Context, selection *entity.ContextSelection, ttl time.Duration) error {
	ctx, span := cacheTracer.Start(ctx, "cache.SelectionPut",
		trace.WithAttributes(
			attribute.String("cache.key", selection.ContextHash),
			attribute.Int64("cache.ttl_ms", ttl.Milliseconds()),
		))
	defer span.End()

	payload, err := json.Marshal(selection)
	if err != nil {
		return fmt.Errorf("failed to encode selection: %w", err)
	}
	if err := c.client.rdb.Set(ctx, selectionKeyPrefix+selection.ContextHash, payload, ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write selection cache: %w", err)
	}
	return nil
}

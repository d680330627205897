package generation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/logger"
)

// HistoryStore 生成审计记录服务。
// Append 以请求 ID 幂等：同一请求的第二次写入是无副作用的空操作，永不产生两行。
type HistoryStore struct {
	records repository.RecordRepository
}

// NewHistoryStore 创建历史记录服务
func NewHistoryStore(records repository.RecordRepository) *HistoryStore {
	return &HistoryStore{records: records}
}

// Append 写入一条不可变生成记录，返回本次是否实际插入
func (h *HistoryStore) Append(ctx context.Context, record *entity.GenerationRecord) (bool, error) {
	ctx, span := tracer.Start(ctx, "generation.HistoryStore.Append",
		trace.WithAttributes(attribute.String("request_id", record.ID)))
	defer span.End()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.ContextSchema = entity.ContextSchemaVersion

	inserted, err := h.records.Create(ctx, record)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("failed to append generation record: %w", err)
	}
	if !inserted {
		logger.Warn(ctx, "duplicate generation record ignored", "request_id", record.ID)
	}
	return inserted, nil
}

// Get 按请求 ID 查询记录
func (h *HistoryStore) Get(ctx context.Context, requestID string) (*entity.GenerationRecord, error) {
	return h.records.GetByID(ctx, requestID)
}

// ListByProject 按项目与可选的操作类型、时间窗口分页查询
func (h *HistoryStore) ListByProject(ctx context.Context, projectID string, filter *repository.RecordFilter, p repository.Pagination) (*repository.PagedResult[*entity.GenerationRecord], error) {
	result, err := h.records.ListByProject(ctx, projectID, filter, p)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation records: %w", err)
	}
	return result, nil
}

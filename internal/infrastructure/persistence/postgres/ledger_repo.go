// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
)

// LedgerRepository 信用点流水仓储实现。表只追加，余额取最近一条流水的快照。
type LedgerRepository struct {
	client *Client
}

// NewLedgerRepository 创建流水仓储
func NewLedgerRepository(client *Client) *LedgerRepository {
	return &LedgerRepository{client: client}
}

// Append 追加一条流水
func (r *LedgerRepository) Append(ctx context.Context, entry *entity.CreditLedgerEntry) error {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.Append")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(entry).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// GetBalance 返回项目当前余额，无流水时为 0
func (r *LedgerRepository) GetBalance(ctx context.Context, projectID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.GetBalance")
	defer span.End()

	var entry entity.CreditLedgerEntry
	err := getDB(ctx, r.client.db).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return entry.BalanceAfter, nil
}

// ListByProject 按项目分页查询流水，时间倒序
func (r *LedgerRepository) ListByProject(ctx context.Context, projectID string, p repository.Pagination) (*repository.PagedResult[*entity.CreditLedgerEntry], error) {
	ctx, span := tracer.Start(ctx, "postgres.LedgerRepository.ListByProject")
	defer span.End()

	query := getDB(ctx, r.client.db).
		Model(&entity.CreditLedgerEntry{}).
		Where("project_id = ?", projectID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	var entries []*entity.CreditLedgerEntry
	err := query.
		Order("created_at DESC").
		Offset(p.Offset()).
		Limit(p.Limit()).
		Find(&entries).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return repository.NewPagedResult(entries, total, p), nil
}

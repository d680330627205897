// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
)

// RecordRepository 生成审计记录仓储实现。记录不可变，主键冲突时静默跳过。
type RecordRepository struct {
	client *Client
}

// NewRecordRepository 创建生成记录仓储
func NewRecordRepository(client *Client) *RecordRepository {
	return &RecordRepository{client: client}
}

// Create 幂等写入：同 ID 已存在时不覆盖不报错，返回是否实际插入
func (r *RecordRepository) Create(ctx context.Context, record *entity.GenerationRecord) (bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.RecordRepository.Create")
	defer span.End()

	result := getDB(ctx, r.client.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		span.RecordError(result.Error)
		return false, fmt.Errorf("failed to create generation record: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetByID 根据请求 ID 获取记录，不存在时返回 (nil, nil)
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*entity.GenerationRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.RecordRepository.GetByID")
	defer span.End()

	var record entity.GenerationRecord
	err := getDB(ctx, r.client.db).Where("id = ?", id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get generation record: %w", err)
	}
	return &record, nil
}

// ListByProject 按项目与可选过滤条件分页查询，时间倒序
func (r *RecordRepository) ListByProject(ctx context.Context, projectID string, filter *repository.RecordFilter, p repository.Pagination) (*repository.PagedResult[*entity.GenerationRecord], error) {
	ctx, span := tracer.Start(ctx, "postgres.RecordRepository.ListByProject")
	defer span.End()

	query := getDB(ctx, r.client.db).
		Model(&entity.GenerationRecord{}).
		Where("project_id = ?", projectID)
	if filter != nil {
		if filter.Operation != "" {
			query = query.Where("operation = ?", filter.Operation)
		}
		if filter.From != nil {
			query = query.Where("created_at >= ?", *filter.From)
		}
		if filter.To != nil {
			query = query.Where("created_at < ?", *filter.To)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count generation records: %w", err)
	}

	var records []*entity.GenerationRecord
	err := query.
		Order("created_at DESC").
		Offset(p.Offset()).
		Limit(p.Limit()).
		Find(&records).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list generation records: %w", err)
	}
	return repository.NewPagedResult(records, total, p), nil
}

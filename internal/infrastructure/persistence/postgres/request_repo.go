// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// RequestRepository 生成请求仓储实现
type RequestRepository struct {
	client *Client
}

// NewRequestRepository 创建生成请求仓储
func NewRequestRepository(client *Client) *RequestRepository {
	return &RequestRepository{client: client}
}

// Create 写入生成请求
func (r *RequestRepository) Create(ctx context.Context, req *entity.GenerationRequest) error {
	ctx, span := tracer.Start(ctx, "postgres.RequestRepository.Create")
	defer span.End()

	if err := getDB(ctx, r.client.db).Create(req).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create generation request: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取请求，不存在时返回 (nil, nil)
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.GenerationRequest, error) {
	ctx, span := tracer.Start(ctx, "postgres.RequestRepository.GetByID")
	defer span.End()

	var req entity.GenerationRequest
	err := getDB(ctx, r.client.db).Where("id = ?", id).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get generation request: %w", err)
	}
	return &req, nil
}

// Update 保存请求的最新状态
func (r *RequestRepository) Update(ctx context.Context, req *entity.GenerationRequest) error {
	ctx, span := tracer.Start(ctx, "postgres.RequestRepository.Update")
	defer span.End()

	if err := getDB(ctx, r.client.db).Save(req).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update generation request: %w", err)
	}
	return nil
}

// CountActive 统计项目下处于非终态的请求数
func (r *RequestRepository) CountActive(ctx context.Context, projectID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.RequestRepository.CountActive")
	defer span.End()

	var count int64
	err := getDB(ctx, r.client.db).
		Model(&entity.GenerationRequest{}).
		Where("project_id = ? AND status NOT IN ?", projectID, []entity.RequestStatus{
			entity.StatusCompleted, entity.StatusFailed, entity.StatusCancelled,
		}).
		Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count active requests: %w", err)
	}
	return count, nil
}

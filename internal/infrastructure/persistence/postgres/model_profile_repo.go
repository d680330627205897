// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// ModelProfileRepository 模型档案仓储实现
type ModelProfileRepository struct {
	client *Client
}

// NewModelProfileRepository 创建模型档案仓储
func NewModelProfileRepository(client *Client) *ModelProfileRepository {
	return &ModelProfileRepository{client: client}
}

// Upsert 按 (provider, model_name) 写入或更新档案
func (r *ModelProfileRepository) Upsert(ctx context.Context, profile *entity.ModelProfile) error {
	ctx, span := tracer.Start(ctx, "postgres.ModelProfileRepository.Upsert")
	defer span.End()

	err := getDB(ctx, r.client.db).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider"}, {Name: "model_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"context_window", "cost_per_input_token", "cost_per_output_token",
				"supports_streaming", "active", "updated_at",
			}),
		}).
		Create(profile).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert model profile: %w", err)
	}
	return nil
}

// List 返回全部模型档案
func (r *ModelProfileRepository) List(ctx context.Context) ([]*entity.ModelProfile, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelProfileRepository.List")
	defer span.End()

	var profiles []*entity.ModelProfile
	err := getDB(ctx, r.client.db).
		Order("provider, model_name").
		Find(&profiles).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list model profiles: %w", err)
	}
	return profiles, nil
}

// GetByKey 按 (provider, model_name) 获取档案，不存在时返回 (nil, nil)
func (r *ModelProfileRepository) GetByKey(ctx context.Context, provider, modelName string) (*entity.ModelProfile, error) {
	ctx, span := tracer.Start(ctx, "postgres.ModelProfileRepository.GetByKey")
	defer span.End()

	var profile entity.ModelProfile
	err := getDB(ctx, r.client.db).
		Where("provider = ? AND model_name = ?", provider, modelName).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get model profile: %w", err)
	}
	return &profile, nil
}

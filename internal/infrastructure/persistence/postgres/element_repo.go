// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// ElementRepository 故事设定元素仓储实现。元素表由设定集子系统写入，这里只读。
type ElementRepository struct {
	client *Client
}

// NewElementRepository 创建元素仓储
func NewElementRepository(client *Client) *ElementRepository {
	return &ElementRepository{client: client}
}

// GetByProject 返回项目下全部元素
func (r *ElementRepository) GetByProject(ctx context.Context, projectID string) ([]*entity.StoryElement, error) {
	ctx, span := tracer.Start(ctx, "postgres.ElementRepository.GetByProject")
	defer span.End()

	var elements []*entity.StoryElement
	err := getDB(ctx, r.client.db).
		Where("project_id = ?", projectID).
		Order("updated_at DESC").
		Find(&elements).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list story elements: %w", err)
	}
	return elements, nil
}

// ProjectRepository 项目仓储实现
type ProjectRepository struct {
	client *Client
}

// NewProjectRepository 创建项目仓储
func NewProjectRepository(client *Client) *ProjectRepository {
	return &ProjectRepository{client: client}
}

// GetByID 根据 ID 获取项目，不存在时返回 (nil, nil)
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*entity.Project, error) {
	ctx, span := tracer.Start(ctx, "postgres.ProjectRepository.GetByID")
	defer span.End()

	var project entity.Project
	err := getDB(ctx, r.client.db).Where("id = ?", id).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

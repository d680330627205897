// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// ElementRepository 故事设定元素读取接口。元素由外部子系统写入，本服务只读。
type ElementRepository interface {
	// GetByProject 返回项目下全部元素（含 visibility=never，由调用方过滤）
	GetByProject(ctx context.Context, projectID string) ([]*entity.StoryElement, error)
}

// ProjectRepository 项目读取接口
type ProjectRepository interface {
	// GetByID 按 ID 获取项目，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id string) (*entity.Project, error)
}

// Package repository 定义数据访问层接口
package repository

import (
	"context"
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// RequestRepository 生成请求仓储接口
type RequestRepository interface {
	Create(ctx context.Context, req *entity.GenerationRequest) error
	GetByID(ctx context.Context, id string) (*entity.GenerationRequest, error)
	Update(ctx context.Context, req *entity.GenerationRequest) error
	// CountActive 统计项目下处于非终态的请求数
	CountActive(ctx context.Context, projectID string) (int64, error)
}

// RecordFilter 生成记录查询条件
type RecordFilter struct {
	Operation entity.OperationType
	From      *time.Time
	To        *time.Time
}

// RecordRepository 生成审计记录仓储接口
type RecordRepository interface {
	// Create 写入记录；同 ID 已存在时不重复写入，返回是否实际插入
	Create(ctx context.Context, record *entity.GenerationRecord) (bool, error)
	GetByID(ctx context.Context, id string) (*entity.GenerationRecord, error)
	// ListByProject 按项目与时间窗口查询记录
	ListByProject(ctx context.Context, projectID string, filter *RecordFilter, pagination Pagination) (*PagedResult[*entity.GenerationRecord], error)
}

// ModelProfileRepository 模型档案仓储接口
type ModelProfileRepository interface {
	Upsert(ctx context.Context, profile *entity.ModelProfile) error
	List(ctx context.Context) ([]*entity.ModelProfile, error)
	GetByKey(ctx context.Context, provider, modelName string) (*entity.ModelProfile, error)
}

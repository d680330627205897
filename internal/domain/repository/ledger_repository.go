// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// LedgerRepository 信用点流水仓储接口。
// 流水只追加；余额读取与追加必须在同一事务内完成（由应用层的 CreditLedger 保证串行化）。
type LedgerRepository interface {
	// Append 追加一条流水
	Append(ctx context.Context, entry *entity.CreditLedgerEntry) error
	// GetBalance 返回项目当前余额（最近一条流水的 balance_after，无流水时为 0）
	GetBalance(ctx context.Context, projectID string) (int64, error)
	// ListByProject 按项目查询流水
	ListByProject(ctx context.Context, projectID string, pagination Pagination) (*PagedResult[*entity.CreditLedgerEntry], error)
}

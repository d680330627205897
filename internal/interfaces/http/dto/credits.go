package dto

import (
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// BalanceResponse 余额响应
type BalanceResponse struct {
	ProjectID  string `json:"project_id"`
	Balance    int64  `json:"balance"`
	LowBalance bool   `json:"low_balance"`
}

// GrantRequest 发放信用点请求
type GrantRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// LedgerEntryResponse 流水条目响应
type LedgerEntryResponse struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Kind         string    `json:"kind"`
	Amount       int64     `json:"amount"`
	Operation    string    `json:"operation_type,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// FromLedgerEntry 实体转响应
func FromLedgerEntry(e *entity.CreditLedgerEntry) *LedgerEntryResponse {
	return &LedgerEntryResponse{
		ID:           e.ID,
		ProjectID:    e.ProjectID,
		Kind:         string(e.Kind),
		Amount:       e.Amount,
		Operation:    string(e.Operation),
		RequestID:    e.RequestID,
		BalanceAfter: e.BalanceAfter,
		CreatedAt:    e.CreatedAt,
	}
}

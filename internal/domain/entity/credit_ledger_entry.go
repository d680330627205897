// Package entity 定义领域实体
package entity

import "time"

// LedgerEntryKind 账目类型
type LedgerEntryKind string

const (
	LedgerEntryDebit  LedgerEntryKind = "debit"
	LedgerEntryRefund LedgerEntryKind = "refund"
	LedgerEntryGrant  LedgerEntryKind = "grant"
)

// CreditLedgerEntry 信用点流水。只追加，写入后不可变。
// Amount 符号约定：负数为扣减，正数为退款/发放；BalanceAfter 为写入后的余额快照。
type CreditLedgerEntry struct {
	ID           string          `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID    string          `json:"project_id" gorm:"type:uuid;index;not null"`
	Kind         LedgerEntryKind `json:"kind" gorm:"type:varchar(16);not null"`
	Amount       int64           `json:"amount" gorm:"not null"`
	Operation    OperationType   `json:"operation_type,omitempty" gorm:"type:varchar(32)"`
	RequestID    string          `json:"request_id,omitempty" gorm:"type:uuid;index"`
	BalanceAfter int64           `json:"balance_after" gorm:"not null"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (CreditLedgerEntry) TableName() string {
	return "credit_ledger_entries"
}

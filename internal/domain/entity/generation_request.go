// Package entity 定义领域实体
package entity

import (
	"time"
)

// OperationType 生成操作类型
type OperationType string

const (
	OperationWrite      OperationType = "write"
	OperationContinue   OperationType = "continue"
	OperationRewrite    OperationType = "rewrite"
	OperationImprove    OperationType = "improve"
	OperationSummarize  OperationType = "summarize"
	OperationQuickEdit  OperationType = "quickEdit"
	OperationExpand     OperationType = "expand"
	OperationBrainstorm OperationType = "brainstorm"
	OperationDescribe   OperationType = "describe"
)

// Valid 检查操作类型是否受支持
func (op OperationType) Valid() bool {
	switch op {
	case OperationWrite, OperationContinue, OperationRewrite, OperationImprove,
		OperationSummarize, OperationQuickEdit, OperationExpand,
		OperationBrainstorm, OperationDescribe:
		return true
	}
	return false
}

// RequestStatus 生成请求状态
type RequestStatus string

const (
	StatusPending          RequestStatus = "pending"
	StatusContextAssembled RequestStatus = "context_assembled"
	StatusProviderCalled   RequestStatus = "provider_called"
	StatusStreaming        RequestStatus = "streaming"
	StatusCompleted        RequestStatus = "completed"
	StatusFailed           RequestStatus = "failed"
	StatusCancelled        RequestStatus = "cancelled"
)

// Terminal 判断是否为终态
func (s RequestStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// GenerationRequest 一次生成请求的完整生命周期状态
type GenerationRequest struct {
	ID         string        `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID  string        `json:"project_id" gorm:"type:uuid;index;not null"`
	DocumentID string        `json:"document_id,omitempty" gorm:"type:uuid"`
	Operation  OperationType `json:"operation_type" gorm:"type:varchar(32);not null"`
	Prompt     string        `json:"prompt" gorm:"type:text;not null"`

	ContextHash string `json:"context_hash,omitempty" gorm:"type:varchar(64)"`
	Provider    string `json:"provider" gorm:"type:varchar(32);not null"`
	Model       string `json:"model" gorm:"type:varchar(64);not null"`

	EstimatedInputTokens  int   `json:"estimated_input_tokens" gorm:"not null;default:0"`
	EstimatedOutputTokens int   `json:"estimated_output_tokens" gorm:"not null;default:0"`
	EstimatedCredits      int64 `json:"estimated_credits" gorm:"not null;default:0"`

	Status       RequestStatus `json:"status" gorm:"type:varchar(32);not null;index"`
	ErrorMessage string        `json:"error_message,omitempty" gorm:"type:text"`
	RetryCount   int           `json:"retry_count" gorm:"not null;default:0"`

	// CreditWarning 余额不足但策略为软警告时置位
	CreditWarning bool `json:"credit_warning" gorm:"not null;default:false"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (GenerationRequest) TableName() string {
	return "generation_requests"
}

// NewGenerationRequest 创建新的生成请求
func NewGenerationRequest(id, projectID, documentID string, op OperationType, prompt string) *GenerationRequest {
	return &GenerationRequest{
		ID:         id,
		ProjectID:  projectID,
		DocumentID: documentID,
		Operation:  op,
		Prompt:     prompt,
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
}

// validTransitions 合法的状态迁移表
var validTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:          {StatusContextAssembled, StatusFailed, StatusCancelled},
	StatusContextAssembled: {StatusProviderCalled, StatusFailed, StatusCancelled},
	StatusProviderCalled:   {StatusStreaming, StatusFailed, StatusCancelled},
	StatusStreaming:        {StatusCompleted, StatusFailed, StatusCancelled},
	// Failed 可重新入队（retry 操作）
	StatusFailed: {StatusPending},
}

// CanTransition 检查状态迁移是否合法
func (r *GenerationRequest) CanTransition(to RequestStatus) bool {
	for _, s := range validTransitions[r.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition 执行状态迁移，非法迁移返回 false
func (r *GenerationRequest) Transition(to RequestStatus) bool {
	if !r.CanTransition(to) {
		return false
	}
	now := time.Now()
	r.Status = to
	r.UpdatedAt = now
	switch to {
	case StatusContextAssembled:
		if r.StartedAt == nil {
			r.StartedAt = &now
		}
	case StatusCompleted, StatusFailed, StatusCancelled:
		r.CompletedAt = &now
	}
	return true
}

// Fail 标记失败并记录错误信息
func (r *GenerationRequest) Fail(errMsg string) {
	now := time.Now()
	r.Status = StatusFailed
	r.ErrorMessage = errMsg
	r.UpdatedAt = now
	r.CompletedAt = &now
}

// PrepareRetry 重置为待执行，保留重试计数
func (r *GenerationRequest) PrepareRetry() bool {
	if r.Status != StatusFailed {
		return false
	}
	r.RetryCount++
	r.Status = StatusPending
	r.ErrorMessage = ""
	r.StartedAt = nil
	r.CompletedAt = nil
	r.UpdatedAt = time.Now()
	return true
}

// Package entity 定义领域实体
package entity

import (
	"time"

	"github.com/lib/pq"
)

// ContextSchemaVersion 生成记录中 context_used 负载的当前版本。
// 读取端按版本解释元素 ID 列表，便于后续演进格式。
const ContextSchemaVersion = 1

// GenerationRecord 生成审计记录。每个到达终态且消耗过资源的请求恰好一条，写入后不可变。
type GenerationRecord struct {
	// ID 与 GenerationRequest.ID 相同，天然幂等键
	ID         string        `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID  string        `json:"project_id" gorm:"type:uuid;index:idx_generation_records_project_created"`
	DocumentID string        `json:"document_id,omitempty" gorm:"type:uuid"`
	Operation  OperationType `json:"operation_type" gorm:"type:varchar(32);not null"`
	Provider   string        `json:"provider" gorm:"type:varchar(32);not null"`
	Model      string        `json:"model" gorm:"type:varchar(64);not null"`

	Prompt   string `json:"prompt" gorm:"type:text;not null"`
	Response string `json:"response" gorm:"type:text;not null"`

	ActualInputTokens  int   `json:"actual_input_tokens" gorm:"not null;default:0"`
	ActualOutputTokens int   `json:"actual_output_tokens" gorm:"not null;default:0"`
	ActualCredits      int64 `json:"actual_credits" gorm:"not null;default:0"`

	Status       RequestStatus `json:"status" gorm:"type:varchar(32);not null"`
	ErrorMessage string        `json:"error_message,omitempty" gorm:"type:text"`

	// ContextSchema + ContextUsed 构成带版本的结构化上下文负载
	ContextSchema int            `json:"context_schema" gorm:"not null;default:1"`
	ContextUsed   pq.StringArray `json:"context_used" gorm:"type:text[]"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_generation_records_project_created"`
}

func (GenerationRecord) TableName() string {
	return "generation_records"
}

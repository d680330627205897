package dto

import (
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// RecordResponse 生成记录响应
type RecordResponse struct {
	ID                 string    `json:"id"`
	ProjectID          string    `json:"project_id"`
	DocumentID         string    `json:"document_id,omitempty"`
	Operation          string    `json:"operation_type"`
	Provider           string    `json:"provider"`
	Model              string    `json:"model"`
	Prompt             string    `json:"prompt"`
	Response           string    `json:"response"`
	ActualInputTokens  int       `json:"actual_input_tokens"`
	ActualOutputTokens int       `json:"actual_output_tokens"`
	ActualCredits      int64     `json:"actual_credits"`
	Status             string    `json:"status"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	ContextSchema      int       `json:"context_schema"`
	ContextUsed        []string  `json:"context_used"`
	CreatedAt          time.Time `json:"created_at"`
}

// FromGenerationRecord 实体转响应
func FromGenerationRecord(rec *entity.GenerationRecord) *RecordResponse {
	return &RecordResponse{
		ID:                 rec.ID,
		ProjectID:          rec.ProjectID,
		DocumentID:         rec.DocumentID,
		Operation:          string(rec.Operation),
		Provider:           rec.Provider,
		Model:              rec.Model,
		Prompt:             rec.Prompt,
		Response:           rec.Response,
		ActualInputTokens:  rec.ActualInputTokens,
		ActualOutputTokens: rec.ActualOutputTokens,
		ActualCredits:      rec.ActualCredits,
		Status:             string(rec.Status),
		ErrorMessage:       rec.ErrorMessage,
		ContextSchema:      rec.ContextSchema,
		ContextUsed:        rec.ContextUsed,
		CreatedAt:          rec.CreatedAt,
	}
}

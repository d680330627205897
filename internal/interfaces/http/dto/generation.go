// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/credit"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/generation"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// GenerateRequest 创建生成请求
type GenerateRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Operation  string `json:"operation_type" binding:"required"`
	Prompt     string `json:"prompt" binding:"required"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	// write/continue 的卡片参数
	CardLength string `json:"card_length,omitempty"`
	CardCount  int    `json:"card_count,omitempty"`
	// quickEdit 的编辑指令
	Instruction string `json:"instruction,omitempty"`
	// expand 的输出倍率覆盖
	LengthMultiplier float64 `json:"length_multiplier,omitempty"`
}

// Params 转换为估价参数
func (r *GenerateRequest) Params() credit.EstimateParams {
	return credit.EstimateParams{
		CardLength:       r.CardLength,
		CardCount:        r.CardCount,
		Instruction:      r.Instruction,
		LengthMultiplier: r.LengthMultiplier,
	}
}

// GenerationResponse 生成请求响应
type GenerationResponse struct {
	ID                    string     `json:"id"`
	ProjectID             string     `json:"project_id"`
	DocumentID            string     `json:"document_id,omitempty"`
	Operation             string     `json:"operation_type"`
	Provider              string     `json:"provider"`
	Model                 string     `json:"model"`
	Status                string     `json:"status"`
	ContextHash           string     `json:"context_hash,omitempty"`
	EstimatedInputTokens  int        `json:"estimated_input_tokens"`
	EstimatedOutputTokens int        `json:"estimated_output_tokens"`
	EstimatedCredits      int64      `json:"estimated_credits"`
	CreditWarning         bool       `json:"credit_warning,omitempty"`
	ErrorMessage          string     `json:"error_message,omitempty"`
	RetryCount            int        `json:"retry_count,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	CompletedAt           *time.Time `json:"completed_at,omitempty"`
}

// FromGenerationRequest 实体转响应
func FromGenerationRequest(req *entity.GenerationRequest) *GenerationResponse {
	return &GenerationResponse{
		ID:                    req.ID,
		ProjectID:             req.ProjectID,
		DocumentID:            req.DocumentID,
		Operation:             string(req.Operation),
		Provider:              req.Provider,
		Model:                 req.Model,
		Status:                string(req.Status),
		ContextHash:           req.ContextHash,
		EstimatedInputTokens:  req.EstimatedInputTokens,
		EstimatedOutputTokens: req.EstimatedOutputTokens,
		EstimatedCredits:      req.EstimatedCredits,
		CreditWarning:         req.CreditWarning,
		ErrorMessage:          req.ErrorMessage,
		RetryCount:            req.RetryCount,
		CreatedAt:             req.CreatedAt,
		CompletedAt:           req.CompletedAt,
	}
}

// EstimateResponse 预估响应
type EstimateResponse struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	Credits      int64 `json:"credits"`
}

// SessionResponse 流式投递会话快照响应
type SessionResponse struct {
	SessionID      string `json:"session_id"`
	RequestID      string `json:"request_id"`
	State          string `json:"state"`
	WordsDelivered int    `json:"words_delivered"`
	TotalWords     int    `json:"total_words"`
}

// FromSession 会话快照转响应
func FromSession(s *entity.StreamingSession) *SessionResponse {
	return &SessionResponse{
		SessionID:      s.SessionID,
		RequestID:      s.GenerationRequestID,
		State:          string(s.State),
		WordsDelivered: s.WordsDelivered,
		TotalWords:     s.TotalWords,
	}
}

// ProgressEvent SSE 进度事件载荷
type ProgressEvent struct {
	State          string `json:"state"`
	Word           string `json:"word,omitempty"`
	WordsDelivered int    `json:"words_delivered"`
	TotalWords     int    `json:"total_words"`
	Error          string `json:"error,omitempty"`
}

// FromEvent 投递事件转 SSE 载荷
func FromEvent(ev generation.Event) ProgressEvent {
	out := ProgressEvent{
		State:          string(ev.State),
		Word:           ev.Word,
		WordsDelivered: ev.WordsDelivered,
		TotalWords:     ev.TotalWords,
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}

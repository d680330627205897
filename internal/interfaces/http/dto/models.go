package dto

import (
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// ModelProfileResponse 模型档案响应
type ModelProfileResponse struct {
	Provider           string    `json:"provider"`
	ModelName          string    `json:"model_name"`
	ContextWindow      int       `json:"context_window"`
	CostPerInputToken  float64   `json:"cost_per_input_token"`
	CostPerOutputToken float64   `json:"cost_per_output_token"`
	SupportsStreaming  bool      `json:"supports_streaming"`
	Active             bool      `json:"active"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// FromModelProfile 实体转响应
func FromModelProfile(p *entity.ModelProfile) *ModelProfileResponse {
	return &ModelProfileResponse{
		Provider:           p.Provider,
		ModelName:          p.ModelName,
		ContextWindow:      p.ContextWindow,
		CostPerInputToken:  p.CostPerInputToken,
		CostPerOutputToken: p.CostPerOutputToken,
		SupportsStreaming:  p.SupportsStreaming,
		Active:             p.Active,
		UpdatedAt:          p.UpdatedAt,
	}
}

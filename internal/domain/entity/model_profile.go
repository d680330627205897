// Package entity 定义领域实体
package entity

import "time"

// ModelProfile 模型能力与计价档案。参考数据，带外刷新，对请求流程只读。
type ModelProfile struct {
	ID                 string    `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Provider           string    `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:idx_model_profiles_provider_model"`
	ModelName          string    `json:"model_name" gorm:"type:varchar(64);not null;uniqueIndex:idx_model_profiles_provider_model"`
	ContextWindow      int       `json:"context_window" gorm:"not null"`
	CostPerInputToken  float64   `json:"cost_per_input_token" gorm:"not null"`
	CostPerOutputToken float64   `json:"cost_per_output_token" gorm:"not null"`
	SupportsStreaming  bool      `json:"supports_streaming" gorm:"not null;default:false"`
	Active             bool      `json:"active" gorm:"not null;default:true"`
	UpdatedAt          time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (ModelProfile) TableName() string {
	return "model_profiles"
}

// Key 返回 provider/model 形式的唯一键
func (p *ModelProfile) Key() string {
	return p.Provider + "/" + p.ModelName
}

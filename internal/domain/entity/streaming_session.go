// Package entity 定义领域实体
package entity

import "time"

// SessionState 流式投递会话状态
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionStreaming SessionState = "streaming"
	SessionPaused    SessionState = "paused"
	SessionCompleted SessionState = "completed"
	SessionStopped   SessionState = "stopped"
	SessionError     SessionState = "error"
)

// Terminal 判断是否为终态
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionStopped || s == SessionError
}

// StreamingSession 流式投递会话快照。
// WordsDelivered 在 Streaming/Paused 期间单调不减，进入终态后冻结。
type StreamingSession struct {
	SessionID           string       `json:"session_id"`
	GenerationRequestID string       `json:"generation_request_id"`
	State               SessionState `json:"state"`
	WordsDelivered      int          `json:"words_delivered"`
	TotalWords          int          `json:"total_words"`
	StartedAt           *time.Time   `json:"started_at,omitempty"`
	CompletedAt         *time.Time   `json:"completed_at,omitempty"`
}

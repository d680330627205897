// Package service 定义跨层稳定契约（port）
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
)

// ProviderErrorKind 提供商错误分类
type ProviderErrorKind string

const (
	// ProviderErrorTransient 瞬时错误（超时、5xx 等），可重试
	ProviderErrorTransient ProviderErrorKind = "transient"
	// ProviderErrorPermanent 永久错误（鉴权失败、请求非法等），不可重试
	ProviderErrorPermanent ProviderErrorKind = "permanent"
)

// ProviderError 提供商调用错误
type ProviderError struct {
	Kind ProviderErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewTransientError 创建瞬时提供商错误
func NewTransientError(err error) *ProviderError {
	return &ProviderError{Kind: ProviderErrorTransient, Err: err}
}

// NewPermanentError 创建永久提供商错误
func NewPermanentError(err error) *ProviderError {
	return &ProviderError{Kind: ProviderErrorPermanent, Err: err}
}

// IsTransient 判断错误是否为可重试的瞬时提供商错误
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == ProviderErrorTransient
	}
	return false
}

// TokenUsage 提供商返回的权威 Token 用量
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// GenerateInput 一次生成调用的输入
type GenerateInput struct {
	Prompt      string
	Context     string
	Temperature *float32
	MaxTokens   int
}

// GenerateResult 非流式调用结果。Usage 可能为 nil（提供商未报告用量）。
type GenerateResult struct {
	Text  string
	Usage *TokenUsage
}

// TextChunk 流式调用的文本增量
type TextChunk struct {
	Text string
	// Usage 仅在最后一个 chunk 上可能非 nil
	Usage *TokenUsage
	Err   error
}

// TextGenerator 可插拔的语言模型提供商端口。
// 实现应通过 ProviderError 区分瞬时/永久错误，并响应 ctx 取消以及时释放连接。
type TextGenerator interface {
	// Generate 非流式生成完整文本
	Generate(ctx context.Context, profile *entity.ModelProfile, in GenerateInput) (*GenerateResult, error)
	// GenerateStream 流式生成；返回的通道在完成或出错后关闭
	GenerateStream(ctx context.Context, profile *entity.ModelProfile, in GenerateInput) (<-chan TextChunk, error)
}

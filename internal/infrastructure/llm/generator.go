package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/service"
)

const systemPrompt = "You are a fiction writing assistant. Use the provided story context faithfully and continue in the established voice."

// Generator Eino ChatModel 之上的文本生成适配器，
// 把提供商错误归类为瞬时/永久，供上层决定是否重试。
type Generator struct {
	factory *EinoFactory
}

// NewGenerator 创建生成适配器
func NewGenerator(factory *EinoFactory) *Generator {
	return &Generator{factory: factory}
}

// Generate 非流式生成完整文本
func (g *Generator) Generate(ctx context.Context, profile *entity.ModelProfile, in service.GenerateInput) (*service.GenerateResult, error) {
	chatModel, err := g.factory.Get(ctx, profile.Provider)
	if err != nil {
		return nil, service.NewPermanentError(err)
	}

	out, err := chatModel.Generate(ctx, buildMessages(in), buildOptions(profile, in)...)
	if err != nil {
		return nil, classify(err)
	}

	result := &service.GenerateResult{Text: out.Content}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		result.Usage = &service.TokenUsage{
			InputTokens:  out.ResponseMeta.Usage.PromptTokens,
			OutputTokens: out.ResponseMeta.Usage.CompletionTokens,
		}
	}
	return result, nil
}

// GenerateStream 流式生成。返回的通道在流结束或出错后关闭，
// ctx 取消会中断底层读取并释放连接。
func (g *Generator) GenerateStream(ctx context.Context, profile *entity.ModelProfile, in service.GenerateInput) (<-chan service.TextChunk, error) {
	chatModel, err := g.factory.Get(ctx, profile.Provider)
	if err != nil {
		return nil, service.NewPermanentError(err)
	}

	reader, err := chatModel.Stream(ctx, buildMessages(in), buildOptions(profile, in)...)
	if err != nil {
		return nil, classify(err)
	}

	out := make(chan service.TextChunk)
	go func() {
		defer close(out)
		defer reader.Close()
		for {
			msg, err := reader.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case out <- service.TextChunk{Err: classify(err)}:
				case <-ctx.Done():
				}
				return
			}

			chunk := service.TextChunk{Text: msg.Content}
			if msg.ResponseMeta != nil && msg.ResponseMeta.Usage != nil {
				chunk.Usage = &service.TokenUsage{
					InputTokens:  msg.ResponseMeta.Usage.PromptTokens,
					OutputTokens: msg.ResponseMeta.Usage.CompletionTokens,
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// buildMessages 组装系统提示、故事上下文与用户 prompt
func buildMessages(in service.GenerateInput) []*schema.Message {
	system := systemPrompt
	if in.Context != "" {
		system = fmt.Sprintf("%s\n\nStory context:\n%s", systemPrompt, in.Context)
	}
	return []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(in.Prompt),
	}
}

func buildOptions(profile *entity.ModelProfile, in service.GenerateInput) []model.Option {
	opts := []model.Option{
		model.WithModel(strings.TrimSpace(profile.ModelName)),
	}
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(in.MaxTokens))
	}
	return opts
}

// classify 把提供商错误归类。超时、限流、连接问题与 5xx 视为瞬时，
// 认证失败与请求格式问题视为永久。
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return service.NewTransientError(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "429"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "temporarily unavailable"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "504"),
		strings.Contains(msg, "overloaded"):
		return service.NewTransientError(err)
	case strings.Contains(msg, "api key"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "401"),
		strings.Contains(msg, "403"),
		strings.Contains(msg, "invalid request"),
		strings.Contains(msg, "400"),
		strings.Contains(msg, "context length"),
		strings.Contains(msg, "model not found"):
		return service.NewPermanentError(err)
	default:
		// 未知错误按瞬时处理，给重试一次机会
		return service.NewTransientError(err)
	}
}

// Package handler 提供 HTTP 请求处理器
package handler

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/config"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/interfaces/http/dto"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/errors"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/pkg/logger"

	"github.com/gin-gonic/gin"
)

// resolveProviderModel 解析 LLM Provider 和 Model，空值回落到配置默认
func resolveProviderModel(cfg *config.Config, provider, model string) (string, string, error) {
	if cfg == nil {
		return "", "", fmt.Errorf("server config not configured")
	}

	p := strings.TrimSpace(provider)
	if p == "" {
		p = strings.TrimSpace(cfg.LLM.DefaultProvider)
	}
	if p == "" {
		return "", "", fmt.Errorf("llm provider not specified")
	}
	if len(p) > 32 {
		return "", "", fmt.Errorf("llm provider too long")
	}

	providerCfg, ok := cfg.LLM.Providers[p]
	if !ok {
		return "", "", fmt.Errorf("llm provider not found: %s", p)
	}

	m := strings.TrimSpace(model)
	if m == "" {
		m = strings.TrimSpace(providerCfg.Model)
	}
	if m == "" {
		return "", "", fmt.Errorf("llm model not specified")
	}
	if len(m) > 64 {
		return "", "", fmt.Errorf("llm model too long")
	}
	return p, m, nil
}

// respondError 将应用错误映射为 HTTP 响应，未知错误统一 500
func respondError(c *gin.Context, err error, fallbackMsg string) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		detail := &dto.ErrorDetail{ErrorCode: string(appErr.Code)}
		if appErr.Detail != "" {
			detail.Details = appErr.Detail
		}
		dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
		return
	}
	logger.Error(c.Request.Context(), fallbackMsg, err)
	dto.InternalError(c, fallbackMsg)
}

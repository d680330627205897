package handler

import (
	"io"
	"sync"
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/generation"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/config"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/interfaces/http/dto"

	"github.com/gin-gonic/gin"
)

// streamClaimTTL 事件通道等待认领的保留时长，超时条目在下次 stash 时清掉
const streamClaimTTL = 10 * time.Minute

type pendingStream struct {
	events    <-chan generation.Event
	stashedAt time.Time
}

// GenerationHandler 生成请求处理器。
// 请求创建后立即在后台执行，投递事件通过 SSE 端点消费；
// 每次执行的事件通道只允许一个订阅者认领。
type GenerationHandler struct {
	coord *generation.Coordinator
	cfg   *config.Config

	mu      sync.Mutex
	streams map[string]pendingStream
}

// NewGenerationHandler 创建生成请求处理器
func NewGenerationHandler(coord *generation.Coordinator, cfg *config.Config) *GenerationHandler {
	return &GenerationHandler{
		coord:   coord,
		cfg:     cfg,
		streams: make(map[string]pendingStream),
	}
}

func (h *GenerationHandler) stashStream(requestID string, events <-chan generation.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := time.Now()
	for id, s := range h.streams {
		if now.Sub(s.stashedAt) > streamClaimTTL {
			delete(h.streams, id)
		}
	}
	h.streams[requestID] = pendingStream{events: events, stashedAt: now}
}

// claimStream 认领事件通道，认领后移除，避免重复订阅
func (h *GenerationHandler) claimStream(requestID string) (<-chan generation.Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.streams[requestID]
	if ok {
		delete(h.streams, requestID)
	}
	return s.events, ok
}

// CreateGeneration 创建并启动生成请求
// @Summary 创建生成请求
// @Description 校验余额并预扣信用点后启动生成，通过事件端点获取进度
// @Tags Generations
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.GenerateRequest true "生成参数"
// @Success 202 {object} dto.Response[dto.GenerationResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 402 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/generations [post]
func (h *GenerationHandler) CreateGeneration(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	genReq, err := h.coord.Create(ctx, generation.CreateInput{
		ProjectID:  projectID,
		DocumentID: req.DocumentID,
		Operation:  entity.OperationType(req.Operation),
		Prompt:     req.Prompt,
		Provider:   provider,
		Model:      model,
		Params:     req.Params(),
	})
	if err != nil {
		respondError(c, err, "failed to create generation")
		return
	}

	events, err := h.coord.Run(ctx, genReq.ID)
	if err != nil {
		respondError(c, err, "failed to start generation")
		return
	}
	h.stashStream(genReq.ID, events)

	dto.Accepted(c, dto.FromGenerationRequest(genReq))
}

// Estimate 预估一次生成的 token 与信用点消耗
// @Summary 预估生成成本
// @Tags Generations
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.GenerateRequest true "生成参数"
// @Success 200 {object} dto.Response[dto.EstimateResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/generations/estimate [post]
func (h *GenerationHandler) Estimate(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	provider, model, err := resolveProviderModel(h.cfg, req.Provider, req.Model)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	est, err := h.coord.Estimate(ctx, generation.CreateInput{
		ProjectID:  projectID,
		DocumentID: req.DocumentID,
		Operation:  entity.OperationType(req.Operation),
		Prompt:     req.Prompt,
		Provider:   provider,
		Model:      model,
		Params:     req.Params(),
	})
	if err != nil {
		respondError(c, err, "failed to estimate generation cost")
		return
	}

	dto.Success(c, dto.EstimateResponse{
		InputTokens:  est.InputTokens,
		OutputTokens: est.OutputTokens,
		Credits:      est.Credits,
	})
}

// GetGeneration 获取生成请求详情
// @Summary 获取生成请求
// @Tags Generations
// @Produce json
// @Param gid path string true "生成请求 ID"
// @Success 200 {object} dto.Response[dto.GenerationResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{gid} [get]
func (h *GenerationHandler) GetGeneration(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := dto.BindGenerationID(c)

	req, err := h.coord.Get(ctx, requestID)
	if err != nil {
		respondError(c, err, "failed to get generation")
		return
	}

	dto.Success(c, dto.FromGenerationRequest(req))
}

// StreamEvents 通过 SSE 订阅生成进度事件
// @Summary 订阅生成事件
// @Description 逐词推送投递进度，直到会话进入终态
// @Tags Generations
// @Produce text/event-stream
// @Param gid path string true "生成请求 ID"
// @Success 200 "SSE stream"
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{gid}/events [get]
func (h *GenerationHandler) StreamEvents(c *gin.Context) {
	requestID := dto.BindGenerationID(c)

	events, ok := h.claimStream(requestID)
	if !ok {
		dto.NotFound(c, "no active event stream for generation")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-events:
			if !open {
				return false
			}
			c.SSEvent("progress", dto.FromEvent(ev))
			// 终态事件后关闭流
			return !ev.State.Terminal()

		case <-c.Request.Context().Done():
			// 客户端断开，生成在后台继续
			return false
		}
	})
}

// CancelGeneration 取消生成请求
// @Summary 取消生成
// @Description 未产生内容时全额退还预扣信用点
// @Tags Generations
// @Produce json
// @Param gid path string true "生成请求 ID"
// @Success 200 {object} dto.Response[dto.GenerationResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/generations/{gid}/cancel [post]
func (h *GenerationHandler) CancelGeneration(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := dto.BindGenerationID(c)

	if err := h.coord.Cancel(ctx, requestID); err != nil {
		respondError(c, err, "failed to cancel generation")
		return
	}

	req, err := h.coord.Get(ctx, requestID)
	if err != nil {
		respondError(c, err, "failed to get generation")
		return
	}
	dto.Success(c, dto.FromGenerationRequest(req))
}

// RetryGeneration 重试失败的生成请求
// @Summary 重试生成
// @Description 仅失败态可重试，重新预扣信用点后重新执行
// @Tags Generations
// @Produce json
// @Param gid path string true "生成请求 ID"
// @Success 202 {object} dto.Response[dto.GenerationResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/generations/{gid}/retry [post]
func (h *GenerationHandler) RetryGeneration(c *gin.Context) {
	ctx := c.Request.Context()
	requestID := dto.BindGenerationID(c)

	events, err := h.coord.Retry(ctx, requestID)
	if err != nil {
		respondError(c, err, "failed to retry generation")
		return
	}
	h.stashStream(requestID, events)

	req, err := h.coord.Get(ctx, requestID)
	if err != nil {
		respondError(c, err, "failed to get generation")
		return
	}
	dto.Accepted(c, dto.FromGenerationRequest(req))
}

// PauseDelivery 暂停流式投递
// @Summary 暂停投递
// @Tags Generations
// @Produce json
// @Param gid path string true "生成请求 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{gid}/pause [post]
func (h *GenerationHandler) PauseDelivery(c *gin.Context) {
	h.deliveryCommand(c, h.coord.Pause)
}

// ResumeDelivery 恢复流式投递
// @Summary 恢复投递
// @Tags Generations
// @Produce json
// @Param gid path string true "生成请求 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{gid}/resume [post]
func (h *GenerationHandler) ResumeDelivery(c *gin.Context) {
	h.deliveryCommand(c, h.coord.Resume)
}

// StopDelivery 停止流式投递，已投递前缀作为最终结果提交
// @Summary 停止投递
// @Tags Generations
// @Produce json
// @Param gid path string true "生成请求 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{gid}/stop [post]
func (h *GenerationHandler) StopDelivery(c *gin.Context) {
	h.deliveryCommand(c, h.coord.Stop)
}

// GetSession 获取流式投递会话快照
// @Summary 获取投递会话
// @Tags Generations
// @Produce json
// @Param gid path string true "生成请求 ID"
// @Success 200 {object} dto.Response[dto.SessionResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/generations/{gid}/session [get]
func (h *GenerationHandler) GetSession(c *gin.Context) {
	requestID := dto.BindGenerationID(c)

	session, err := h.coord.Session(requestID)
	if err != nil {
		respondError(c, err, "failed to get delivery session")
		return
	}
	dto.Success(c, dto.FromSession(session))
}

func (h *GenerationHandler) deliveryCommand(c *gin.Context, cmd func(string) error) {
	requestID := dto.BindGenerationID(c)

	if err := cmd(requestID); err != nil {
		respondError(c, err, "failed to control delivery")
		return
	}

	session, err := h.coord.Session(requestID)
	if err != nil {
		respondError(c, err, "failed to get delivery session")
		return
	}
	dto.Success(c, dto.FromSession(session))
}

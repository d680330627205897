package handler

import (
	"time"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/generation"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/entity"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/interfaces/http/dto"

	"github.com/gin-gonic/gin"
)

// HistoryHandler 生成历史处理器
type HistoryHandler struct {
	history *generation.HistoryStore
}

// NewHistoryHandler 创建生成历史处理器
func NewHistoryHandler(history *generation.HistoryStore) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ListHistory 查询项目生成记录
// @Summary 查询生成历史
// @Description 按项目查询，可选按操作类型与时间窗口过滤
// @Tags History
// @Produce json
// @Param pid path string true "项目 ID"
// @Param operation_type query string false "操作类型"
// @Param from query string false "起始时间 (RFC3339)"
// @Param to query string false "结束时间 (RFC3339)"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[[]dto.RecordResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/history [get]
func (h *HistoryHandler) ListHistory(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)
	pageReq := dto.BindPage(c)

	filter, err := buildRecordFilter(c)
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}

	result, err := h.history.ListByProject(ctx, projectID, filter, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		respondError(c, err, "failed to list generation history")
		return
	}

	items := make([]*dto.RecordResponse, 0, len(result.Items))
	for _, rec := range result.Items {
		items = append(items, dto.FromGenerationRecord(rec))
	}
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, items, meta)
}

// GetRecord 获取单条生成记录
// @Summary 获取生成记录
// @Tags History
// @Produce json
// @Param rid path string true "生成记录 ID"
// @Success 200 {object} dto.Response[dto.RecordResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/history/{rid} [get]
func (h *HistoryHandler) GetRecord(c *gin.Context) {
	ctx := c.Request.Context()
	recordID := dto.BindRecordID(c)

	rec, err := h.history.Get(ctx, recordID)
	if err != nil {
		respondError(c, err, "failed to get generation record")
		return
	}
	if rec == nil {
		dto.NotFound(c, "generation record not found")
		return
	}

	dto.Success(c, dto.FromGenerationRecord(rec))
}

// buildRecordFilter 从查询参数构建记录过滤条件
func buildRecordFilter(c *gin.Context) (*repository.RecordFilter, error) {
	filter := &repository.RecordFilter{}
	hasAny := false

	if op := c.Query("operation_type"); op != "" {
		filter.Operation = entity.OperationType(op)
		hasAny = true
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, err
		}
		filter.From = &t
		hasAny = true
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, err
		}
		filter.To = &t
		hasAny = true
	}

	if !hasAny {
		return nil, nil
	}
	return filter, nil
}

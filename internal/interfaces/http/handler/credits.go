package handler

import (
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/credit"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/interfaces/http/dto"

	"github.com/gin-gonic/gin"
)

// CreditsHandler 信用点处理器
type CreditsHandler struct {
	ledger *credit.Ledger
}

// NewCreditsHandler 创建信用点处理器
func NewCreditsHandler(ledger *credit.Ledger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

// GetBalance 获取项目余额
// @Summary 获取信用点余额
// @Tags Credits
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.BalanceResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/credits [get]
func (h *CreditsHandler) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	balance, err := h.ledger.GetBalance(ctx, projectID)
	if err != nil {
		respondError(c, err, "failed to get credit balance")
		return
	}

	dto.Success(c, dto.BalanceResponse{
		ProjectID:  projectID,
		Balance:    balance.Credits,
		LowBalance: balance.LowBalance,
	})
}

// ListLedger 获取项目信用点流水
// @Summary 获取信用点流水
// @Tags Credits
// @Produce json
// @Param pid path string true "项目 ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[[]dto.LedgerEntryResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/credits/ledger [get]
func (h *CreditsHandler) ListLedger(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)
	pageReq := dto.BindPage(c)

	result, err := h.ledger.ListEntries(ctx, projectID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		respondError(c, err, "failed to list ledger entries")
		return
	}

	items := make([]*dto.LedgerEntryResponse, 0, len(result.Items))
	for _, e := range result.Items {
		items = append(items, dto.FromLedgerEntry(e))
	}
	meta := dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total))
	dto.SuccessWithPage(c, items, meta)
}

// GrantCredits 发放信用点
// @Summary 发放信用点
// @Tags Credits
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.GrantRequest true "发放数量"
// @Success 200 {object} dto.Response[dto.BalanceResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/credits/grant [post]
func (h *CreditsHandler) GrantCredits(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	var req dto.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	balance, err := h.ledger.Grant(ctx, projectID, req.Amount)
	if err != nil {
		respondError(c, err, "failed to grant credits")
		return
	}

	dto.Success(c, dto.BalanceResponse{
		ProjectID: projectID,
		Balance:   balance,
	})
}

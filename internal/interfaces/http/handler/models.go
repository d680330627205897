package handler

import (
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/credit"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/interfaces/http/dto"

	"github.com/gin-gonic/gin"
)

// ModelsHandler 模型档案处理器
type ModelsHandler struct {
	catalog *credit.ModelCatalog
}

// NewModelsHandler 创建模型档案处理器
func NewModelsHandler(catalog *credit.ModelCatalog) *ModelsHandler {
	return &ModelsHandler{catalog: catalog}
}

// ListModels 列出已注册的模型档案
// @Summary 列出模型档案
// @Description 返回内存目录中的全部模型能力与计价信息
// @Tags Models
// @Produce json
// @Success 200 {object} dto.Response[[]dto.ModelProfileResponse]
// @Router /v1/models [get]
func (h *ModelsHandler) ListModels(c *gin.Context) {
	profiles := h.catalog.List()

	items := make([]*dto.ModelProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		items = append(items, dto.FromModelProfile(p))
	}
	dto.Success(c, items)
}

// RefreshModels 从数据库重载模型目录
// @Summary 刷新模型档案
// @Tags Models
// @Produce json
// @Success 200 {object} dto.Response[[]dto.ModelProfileResponse]
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/models/refresh [post]
func (h *ModelsHandler) RefreshModels(c *gin.Context) {
	if err := h.catalog.Refresh(c.Request.Context()); err != nil {
		respondError(c, err, "failed to refresh model catalog")
		return
	}
	h.ListModels(c)
}

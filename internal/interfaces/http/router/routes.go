// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	generationHandler *handler.GenerationHandler,
	creditsHandler *handler.CreditsHandler,
	historyHandler *handler.HistoryHandler,
	modelsHandler *handler.ModelsHandler,
) {
	// 项目下的生成请求
	projects := v1.Group("/projects")
	{
		projects.POST("/:pid/generations", generationHandler.CreateGeneration)
		projects.POST("/:pid/generations/estimate", generationHandler.Estimate)

		// 项目信用点
		projects.GET("/:pid/credits", creditsHandler.GetBalance)
		projects.GET("/:pid/credits/ledger", creditsHandler.ListLedger)
		projects.POST("/:pid/credits/grant", creditsHandler.GrantCredits)

		// 项目生成历史
		projects.GET("/:pid/history", historyHandler.ListHistory)
	}

	// 生成请求管理
	generations := v1.Group("/generations")
	{
		generations.GET("/:gid", generationHandler.GetGeneration)
		generations.GET("/:gid/events", generationHandler.StreamEvents) // SSE
		generations.GET("/:gid/session", generationHandler.GetSession)
		generations.POST("/:gid/cancel", generationHandler.CancelGeneration)
		generations.POST("/:gid/retry", generationHandler.RetryGeneration)
		generations.POST("/:gid/pause", generationHandler.PauseDelivery)
		generations.POST("/:gid/resume", generationHandler.ResumeDelivery)
		generations.POST("/:gid/stop", generationHandler.StopDelivery)
	}

	// 生成记录
	history := v1.Group("/history")
	{
		history.GET("/:rid", historyHandler.GetRecord)
	}

	// 模型档案
	models := v1.Group("/models")
	{
		models.GET("", modelsHandler.ListModels)
		models.POST("/refresh", modelsHandler.RefreshModels)
	}
}

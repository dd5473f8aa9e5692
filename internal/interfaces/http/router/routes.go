// Package router 提供 HTTP 路由配置
package router

import (
	"neurotext/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(v1 *gin.RouterGroup, expansionHandler *handler.ExpansionHandler) {
	// 扩写任务管理
	expansions := v1.Group("/expansions")
	{
		expansions.POST("", expansionHandler.Create)
		expansions.GET("/:id", expansionHandler.Get)
		expansions.GET("/:id/events", expansionHandler.Events) // SSE
	}
}

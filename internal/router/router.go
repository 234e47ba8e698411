// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"mentor_chat_server/internal/handler"
	"mentor_chat_server/internal/infrastructure/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router 路由管理器，持有 Handler 聚合
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// 在 https_server.Init() 中调用
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	// 公开路由：探活与指标
	r.GET("/health", rt.handlers.Health.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 需要认证的路由
	authed := r.Group("/")
	authed.Use(middleware.JWTAuth())
	rt.RegisterChatRoutes(authed)      // 聊天记录、发送、已读
	rt.RegisterWebSocketRoutes(authed) // WebSocket 入口
}

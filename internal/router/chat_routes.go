// Package router 提供 HTTP 路由注册
// 本文件定义聊天消息相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterChatRoutes 注册聊天相关路由（需要认证）
// 当前用户身份取自 Token，路径中只携带对端身份
func (rt *Router) RegisterChatRoutes(rg *gin.RouterGroup) {
	chatGroup := rg.Group("/chat")
	{
		chatGroup.GET("/history/:otherId", rt.handlers.Message.GetHistory)     // 获取与对端的聊天记录
		chatGroup.POST("/send", rt.handlers.Message.SendMessage)               // 发送消息
		chatGroup.POST("/seen/:otherId", rt.handlers.Message.MarkSeen)         // 标记对端消息已读
		chatGroup.GET("/conversations", rt.handlers.Message.ListConversations) // 会话列表
	}
}

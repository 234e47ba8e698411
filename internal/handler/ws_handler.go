// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 连接相关的 API 请求
package handler

import (
	"mentor_chat_server/internal/infrastructure/middleware"
	"mentor_chat_server/internal/service/chat"

	"github.com/gin-gonic/gin"
)

// WsHandler WebSocket 处理器
type WsHandler struct {
	chatServer *chat.ChatServer
}

func NewWsHandler(chatServer *chat.ChatServer) *WsHandler {
	return &WsHandler{chatServer: chatServer}
}

// Connect 升级为 WebSocket 连接
// GET /wss?token=xxx
// 身份来自 JWT 中间件；连接建立后第一帧必须是 join
func (h *WsHandler) Connect(c *gin.Context) {
	h.chatServer.ServeWs(c.Writer, c.Request, c.GetString(middleware.ContextUserIDKey))
}

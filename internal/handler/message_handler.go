// Package handler 提供 HTTP 请求处理器
// 本文件处理聊天消息相关的 API 请求
package handler

import (
	"context"
	"time"

	"mentor_chat_server/internal/dto/request"
	"mentor_chat_server/internal/dto/respond"
	"mentor_chat_server/internal/infrastructure/middleware"
	"mentor_chat_server/internal/service"
	"mentor_chat_server/pkg/chatproto"

	"github.com/gin-gonic/gin"
)

// ChatOperator 会触发实时投递的写操作，由 chat.ChatServer 实现
// REST 接口与 WebSocket 共用同一套“先持久化再投递”的逻辑
type ChatOperator interface {
	Send(ctx context.Context, senderId, receiverId, text, clientRef string) (*chatproto.Message, error)
	Seen(ctx context.Context, readerId, otherId string) (int64, time.Time, error)
}

// MessageHandler 消息请求处理器
type MessageHandler struct {
	messageSvc service.MessageService
	chat       ChatOperator
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageSvc service.MessageService, chat ChatOperator) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc, chat: chat}
}

// GetHistory 获取与对端的全部聊天记录
// GET /chat/history/:otherId
// 响应: []chatproto.Message，按时间升序
func (h *MessageHandler) GetHistory(c *gin.Context) {
	var req request.PeerUriRequest
	if err := c.ShouldBindUri(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.FetchHistory(c.Request.Context(), c.GetString(middleware.ContextUserIDKey), req.OtherId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// SendMessage 通过 REST 发送消息，对端在线时实时收到
// POST /chat/send
// 请求体: request.SendMessageRequest
// 响应: chatproto.Message
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	msg, err := h.chat.Send(c.Request.Context(), c.GetString(middleware.ContextUserIDKey), req.ReceiverId, req.Text, "")
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, msg)
}

// MarkSeen 将对端发来的消息全部标记为已读，并通知对端
// POST /chat/seen/:otherId
// 响应: respond.MarkSeenRespond
func (h *MessageHandler) MarkSeen(c *gin.Context) {
	var req request.PeerUriRequest
	if err := c.ShouldBindUri(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	updated, _, err := h.chat.Seen(c.Request.Context(), c.GetString(middleware.ContextUserIDKey), req.OtherId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, respond.MarkSeenRespond{Updated: updated})
}

// ListConversations 获取会话列表
// GET /chat/conversations
// 响应: []respond.ConversationRespond，最近的会话在前
func (h *MessageHandler) ListConversations(c *gin.Context) {
	data, err := h.messageSvc.ListConversations(c.Request.Context(), c.GetString(middleware.ContextUserIDKey))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
// 遵循依赖倒置原则，通过构造函数注入 Service 依赖
package handler

import (
	"mentor_chat_server/internal/service"
	"mentor_chat_server/internal/service/chat"
)

// Handlers 聚合所有 Handler 实例
// 作为依赖注入的入口，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Message *MessageHandler
	Ws      *WsHandler
	Health  *HealthHandler
}

// NewHandlers 创建并注入所有 Handler 实例
// ping 为数据库探活函数，可为 nil
func NewHandlers(svc *service.Services, chatServer *chat.ChatServer, ping func() error) *Handlers {
	return &Handlers{
		Message: NewMessageHandler(svc.Message, chatServer),
		Ws:      NewWsHandler(chatServer),
		Health:  NewHealthHandler(chatServer.Registry(), ping),
	}
}

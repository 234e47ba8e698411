// Package service 定义业务层接口
// 接口设计遵循依赖倒置原则，Handler 层和实时通道核心只依赖这些接口
package service

import (
	"context"
	"time"

	"mentor_chat_server/internal/dto/respond"
	"mentor_chat_server/pkg/chatproto"
)

// MessageService 消息持久化网关
// 所有方法并发安全；写入成功即对后续读取可见
type MessageService interface {
	// AppendMessage 校验并写入一条消息，返回带服务端 ID 和时间戳的消息
	AppendMessage(ctx context.Context, senderId, receiverId, text string) (*chatproto.Message, error)
	// FetchHistory 获取两人之间的全部消息，升序
	FetchHistory(ctx context.Context, userOneId, userTwoId string) ([]chatproto.Message, error)
	// MarkSeen 将 other 发给 reader 的未读消息全部标记为已读，幂等
	MarkSeen(ctx context.Context, readerId, otherId string) (int64, time.Time, error)
	// ListConversations 获取用户的会话列表
	ListConversations(ctx context.Context, userId string) ([]respond.ConversationRespond, error)
}

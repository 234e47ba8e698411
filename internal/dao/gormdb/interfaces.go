// Package gormdb 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
package gormdb

import (
	"context"
	"time"

	"mentor_chat_server/internal/model"
)

// MessageRepository 消息数据访问接口
// 管理两人私聊消息的存取
type MessageRepository interface {
	// Create 创建新消息，ID / CreatedAt 由数据库层填充
	Create(ctx context.Context, message *model.Message) error
	// FindByUserIds 根据两个用户ID查找私聊消息，按 (created_at, id) 升序
	FindByUserIds(ctx context.Context, userOneId, userTwoId string) ([]model.Message, error)
	// MarkSeen 将 other 发给 reader 的未读消息标记为已读，返回更新行数
	MarkSeen(ctx context.Context, readerId, otherId string, at time.Time) (int64, error)
	// FindConversations 查询用户的会话摘要列表
	FindConversations(ctx context.Context, userId string) ([]model.ConversationSummary, error)
}

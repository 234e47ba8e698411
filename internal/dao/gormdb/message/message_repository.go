// Package message 提供消息数据访问层的具体实现
// 本文件实现 MessageRepository 接口，处理消息相关的数据库操作
package message

import (
	"context"
	"time"

	"mentor_chat_server/internal/dao/gormdb/internal"
	"mentor_chat_server/internal/model"

	"gorm.io/gorm"
)

// messageRepository MessageRepository 接口的实现
type messageRepository struct {
	db *gorm.DB // GORM 数据库实例
}

// NewMessageRepository 创建 MessageRepository 实例
func NewMessageRepository(db *gorm.DB) *messageRepository {
	return &messageRepository{db: db}
}

// Create 创建新消息
// 单条 INSERT，要么整行写入成功，要么无任何副作用
func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return internal.WrapDBErrorf(err, "创建消息 send=%s receive=%s", message.SendId, message.ReceiveId)
	}
	return nil
}

// FindByUserIds 查找两个用户之间的全部消息（双向）
// 按创建时间升序，同一时间按雪花 ID 升序，与客户端的排序规则一致
func (r *messageRepository) FindByUserIds(ctx context.Context, userOneId, userTwoId string) ([]model.Message, error) {
	messages := make([]model.Message, 0)
	err := r.db.WithContext(ctx).
		Where("(send_id = ? AND receive_id = ?) OR (send_id = ? AND receive_id = ?)",
			userOneId, userTwoId, userTwoId, userOneId).
		Order("created_at ASC").
		Order("uuid ASC").
		Find(&messages).Error
	if err != nil {
		return nil, internal.WrapDBErrorf(err, "查询消息 user1=%s user2=%s", userOneId, userTwoId)
	}
	return messages, nil
}

// MarkSeen 将 other 发给 reader 的所有未读消息标记为已读
// 只更新 read_at IS NULL 的行，重复调用不会改写已读时间
// 返回: 本次实际更新的行数
func (r *messageRepository) MarkSeen(ctx context.Context, readerId, otherId string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("send_id = ? AND receive_id = ? AND read_at IS NULL", otherId, readerId).
		Update("read_at", at)
	if res.Error != nil {
		return 0, internal.WrapDBErrorf(res.Error, "标记已读 reader=%s other=%s", readerId, otherId)
	}
	return res.RowsAffected, nil
}

// conversationRow 分组查询的中间结果
type conversationRow struct {
	OtherId string
	LastId  uint
}

// unreadRow 未读统计的中间结果
type unreadRow struct {
	OtherId string
	Unread  int64
}

// FindConversations 查询用户参与的所有会话摘要，按最后一条消息时间倒序
// 三次查询：每个对端的最大主键 -> 批量加载最后一条消息 -> 按发送者统计未读
func (r *messageRepository) FindConversations(ctx context.Context, userId string) ([]model.ConversationSummary, error) {
	db := r.db.WithContext(ctx)

	var rows []conversationRow
	err := db.Model(&model.Message{}).
		Select("CASE WHEN send_id = ? THEN receive_id ELSE send_id END AS other_id, MAX(id) AS last_id", userId).
		Where("send_id = ? OR receive_id = ?", userId, userId).
		Group("other_id").
		Scan(&rows).Error
	if err != nil {
		return nil, internal.WrapDBErrorf(err, "查询会话列表 user=%s", userId)
	}
	if len(rows) == 0 {
		return []model.ConversationSummary{}, nil
	}

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.LastId)
	}
	var lastMessages []model.Message
	if err := db.Where("id IN ?", ids).
		Order("created_at DESC").
		Order("id DESC").
		Find(&lastMessages).Error; err != nil {
		return nil, internal.WrapDBErrorf(err, "查询会话最后消息 user=%s", userId)
	}

	var unreadRows []unreadRow
	if err := db.Model(&model.Message{}).
		Select("send_id AS other_id, COUNT(*) AS unread").
		Where("receive_id = ? AND read_at IS NULL", userId).
		Group("send_id").
		Scan(&unreadRows).Error; err != nil {
		return nil, internal.WrapDBErrorf(err, "统计未读消息 user=%s", userId)
	}
	unread := make(map[string]int64, len(unreadRows))
	for _, row := range unreadRows {
		unread[row.OtherId] = row.Unread
	}

	summaries := make([]model.ConversationSummary, 0, len(lastMessages))
	for _, m := range lastMessages {
		otherId := m.SendId
		if otherId == userId {
			otherId = m.ReceiveId
		}
		summaries = append(summaries, model.ConversationSummary{
			OtherId:     otherId,
			LastMessage: m,
			Unread:      unread[otherId],
		})
	}
	return summaries, nil
}

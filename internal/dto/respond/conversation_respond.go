package respond

import "mentor_chat_server/pkg/chatproto"

// ConversationRespond 会话列表中的一项
// 使用位置:
//   - internal/service/message/service.go: ListConversations
type ConversationRespond struct {
	OtherUserId string            `json:"other_user_id"`
	LastMessage chatproto.Message `json:"last_message"`
	Unread      int64             `json:"unread"`
}

// MarkSeenRespond 标记已读结果
type MarkSeenRespond struct {
	Updated int64 `json:"updated"`
}

// HealthRespond 健康检查结果
type HealthRespond struct {
	Status      string `json:"status"`
	OnlineUsers int    `json:"online_users"`
	Sessions    int    `json:"sessions"`
}

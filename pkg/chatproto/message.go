// Package chatproto 定义实时聊天通道的线上协议
// 服务端与 Go 客户端共用：消息结构、事件名、事件载荷以及 JSON 帧编解码
package chatproto

import (
	"strconv"
	"time"
)

// Message 一条已持久化的消息
// ID 为服务端分配的雪花 ID，JSON 中使用字符串表示
type Message struct {
	ID         string     `json:"id"`
	SenderID   string     `json:"sender_id"`
	ReceiverID string     `json:"receiver_id"`
	Text       string     `json:"text"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at"`
}

// Involves 消息是否属于 (a, b) 这对用户之间的会话（无序）
func (m Message) Involves(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

// Less 按 (created_at, id) 全序比较
// created_at 精确到毫秒；同一毫秒内按雪花 ID 比较，服务端查询历史使用同样的规则
func (m Message) Less(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt) {
		return m.CreatedAt.Before(o.CreatedAt)
	}
	a, errA := strconv.ParseInt(m.ID, 10, 64)
	b, errB := strconv.ParseInt(o.ID, 10, 64)
	if errA == nil && errB == nil {
		return a < b
	}
	return m.ID < o.ID
}

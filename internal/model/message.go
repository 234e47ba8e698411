// Package model 定义数据库实体模型
// 本文件定义消息模型，用于存储两人之间的聊天消息
package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// Message 消息模型
// 对应数据库 message 表
// 除 ReadAt 从 NULL 变为已读时间这一次单向更新外，消息写入后不可变
type Message struct {
	// gorm.Model 提供自增主键 ID（即插入顺序）和 CreatedAt
	// 同一 CreatedAt 的消息按 ID 排序，保证全序
	gorm.Model

	// Uuid 消息唯一标识
	// 持久化时由服务端使用雪花算法生成，对外暴露为字符串
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID"`

	// SendId 发送者身份标识
	SendId string `gorm:"column:send_id;type:varchar(64);not null;index:idx_pair,priority:1;comment:发送者id"`

	// ReceiveId 接收者身份标识
	// 单独建索引用于会话列表和未读统计
	ReceiveId string `gorm:"column:receive_id;type:varchar(64);not null;index:idx_pair,priority:2;index:idx_receive;comment:接收者id"`

	// Content 消息文本，已去除首尾空白，非空
	Content string `gorm:"column:content;type:TEXT;not null;comment:消息内容"`

	// ReadAt 接收者已读时间，NULL 表示未读
	ReadAt sql.NullTime `gorm:"column:read_at;index;comment:已读时间"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}

// PairOf 返回无序二元组的规范顺序，用作缓存 key 等场景
func PairOf(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}

// ConversationSummary 会话摘要（查询结果，不对应数据表）
// 每个对端一行：最后一条消息 + 发给当前用户的未读数
type ConversationSummary struct {
	OtherId     string
	LastMessage Message
	Unread      int64
}

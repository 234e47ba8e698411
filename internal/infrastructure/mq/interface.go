// Package mq 封装实例间的消息转发通道
// 多实例部署时，用户的会话可能分布在不同实例上；实时事件先发布到 Kafka / Redis，
// 每个实例都订阅全量事件，再投递给本机在线的会话
package mq

import (
	"context"
	"encoding/json"
)

// Envelope 跨实例投递的信封：目标身份 + 已编码好的协议帧
type Envelope struct {
	UserID string          `json:"user_id"`
	Frame  json.RawMessage `json:"frame"`
}

// Handler 处理从通道中消费到的一个信封
type Handler func(env Envelope)

// Transport 实例间转发通道
// Publish 并发安全；Consume 阻塞直到 ctx 取消或通道关闭
type Transport interface {
	Publish(ctx context.Context, env Envelope) error
	Consume(ctx context.Context, handle Handler) error
	Close() error
}

func encodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func decodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(b, &env)
	return env, err
}

package mq

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTransport 基于 Redis Pub/Sub 的实例间转发
// 所有实例订阅同一个频道；Pub/Sub 不持久化，订阅建立前发布的事件会丢失
type RedisTransport struct {
	client  *redis.Client
	channel string

	mu     sync.Mutex
	pubsub *redis.PubSub
}

// NewRedisTransport 创建 Redis 转发通道，client 由调用方管理生命周期
func NewRedisTransport(client *redis.Client, channel string) *RedisTransport {
	return &RedisTransport{client: client, channel: channel}
}

// Subscribe 建立订阅并等待服务端确认
// Consume 会在需要时自动调用；提前调用可保证此后发布的事件一定能收到
func (r *RedisTransport) Subscribe(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub != nil {
		return nil
	}
	ps := r.client.Subscribe(ctx, r.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	r.pubsub = ps
	return nil
}

func (r *RedisTransport) Publish(ctx context.Context, env Envelope) error {
	payload, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Consume 读取订阅频道直到 ctx 取消或 Close
func (r *RedisTransport) Consume(ctx context.Context, handle Handler) error {
	if err := r.Subscribe(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	ch := r.pubsub.Channel()
	r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			env, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				zap.L().Error("redis envelope decode failed", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			handle(env)
		}
	}
}

func (r *RedisTransport) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub == nil {
		return nil
	}
	err := r.pubsub.Close()
	r.pubsub = nil
	return err
}

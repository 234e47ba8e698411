// Package chat 实现实时聊天通道的核心
// broker.go 定义消息代理：把编码好的事件帧送到目标身份的所有会话
// 单机模式直接查本地在线表；kafka / redis 模式先发布到消息通道，再由每个实例投递给本机会话
package chat

import (
	"context"
	"fmt"
	"sync"

	myconfig "mentor_chat_server/internal/config"
	"mentor_chat_server/internal/infrastructure/mq"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// 消息模式，对应 kafkaConfig.messageMode
const (
	ModeChannel = "channel"
	ModeKafka   = "kafka"
	ModeRedis   = "redis"
)

// MessageBroker 消息代理接口
// Deliver 只在持久化成功之后调用；目标身份不在线不是错误
type MessageBroker interface {
	// Deliver 把一帧投递给 userId 的所有会话
	Deliver(ctx context.Context, userId string, frame []byte) error
	// Start 启动消费循环（单机模式为空操作）
	Start()
	// Close 关闭代理资源
	Close()
}

// NewBroker 根据消息模式创建代理
// redis 模式需要传入 Redis 客户端
func NewBroker(mode string, registry *Registry, kafkaConf myconfig.KafkaConfig, redisClient *redis.Client) (MessageBroker, error) {
	switch mode {
	case "", ModeChannel:
		return NewChannelBroker(registry), nil
	case ModeKafka:
		transport := mq.NewKafkaTransport(kafkaConf)
		if err := transport.CreateTopic(); err != nil {
			zap.L().Warn("kafka dial failed, topic must already exist", zap.Error(err))
		}
		return NewTransportBroker(registry, transport), nil
	case ModeRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("message mode %q requires redisConfig", mode)
		}
		return NewTransportBroker(registry, mq.NewRedisTransport(redisClient, kafkaConf.RedisChannel)), nil
	default:
		return nil, fmt.Errorf("unknown message mode %q", mode)
	}
}

// ChannelBroker 单机模式：同步写入本地会话的发送缓冲区
type ChannelBroker struct {
	registry *Registry
}

func NewChannelBroker(registry *Registry) *ChannelBroker {
	return &ChannelBroker{registry: registry}
}

func (b *ChannelBroker) Deliver(_ context.Context, userId string, frame []byte) error {
	b.registry.Deliver(userId, frame)
	return nil
}

func (b *ChannelBroker) Start() {}

func (b *ChannelBroker) Close() {}

// TransportBroker 分布式模式：经 mq.Transport 广播到所有实例
type TransportBroker struct {
	registry  *Registry
	transport mq.Transport

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTransportBroker(registry *Registry, transport mq.Transport) *TransportBroker {
	return &TransportBroker{registry: registry, transport: transport}
}

func (b *TransportBroker) Deliver(ctx context.Context, userId string, frame []byte) error {
	return b.transport.Publish(ctx, mq.Envelope{UserID: userId, Frame: frame})
}

// subscriber 需要先建立订阅才能收到事件的通道（Redis Pub/Sub）
type subscriber interface {
	Subscribe(ctx context.Context) error
}

// Start 启动消费协程，消费到的信封投递给本机会话
// 对需要订阅的通道，Start 返回时订阅已经生效
func (b *TransportBroker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	if sub, ok := b.transport.(subscriber); ok {
		if err := sub.Subscribe(ctx); err != nil {
			zap.L().Error("broker subscribe failed", zap.Error(err))
		}
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				zap.L().Error("broker consume panic", zap.Any("panic", r))
			}
		}()
		err := b.transport.Consume(ctx, func(env mq.Envelope) {
			b.registry.Deliver(env.UserID, env.Frame)
		})
		if err != nil {
			zap.L().Error("broker consume stopped", zap.Error(err))
		}
	}()
}

func (b *TransportBroker) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if err := b.transport.Close(); err != nil {
		zap.L().Error("close broker transport", zap.Error(err))
	}
	b.wg.Wait()
}

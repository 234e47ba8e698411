package mq

import (
	"context"
	"errors"
	"io"
	"time"

	myconfig "mentor_chat_server/internal/config"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaTransport 基于 Kafka 的实例间转发
// 生产者按目标身份做 Hash 分区，同一用户的事件保持顺序；
// 每个实例使用独立的消费者组，从而每个实例都能读到全量事件
type KafkaTransport struct {
	Producer *kafka.Writer // 生产者：负责写入消息
	Consumer *kafka.Reader // 消费者：负责读取消息
	conf     myconfig.KafkaConfig
}

// NewKafkaTransport 创建 Kafka 转发通道
// 消费者从最新位点开始读，离线期间的实时事件无需补发（客户端重连时会重新拉取历史）
func NewKafkaTransport(conf myconfig.KafkaConfig) *KafkaTransport {
	timeout := conf.Timeout * time.Second
	return &KafkaTransport{
		conf: conf,
		Producer: &kafka.Writer{
			Addr:                   kafka.TCP(conf.HostPort),
			Topic:                  conf.ChatTopic,
			Balancer:               &kafka.Hash{},
			BatchSize:              1, // 同步写入会等批次刷出才返回，实时事件逐条发送
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           timeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
		Consumer: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        []string{conf.HostPort},
			Topic:          conf.ChatTopic,
			CommitInterval: timeout,
			GroupID:        "mentor_chat_" + uuid.NewString(),
			StartOffset:    kafka.LastOffset,
		}),
	}
}

// CreateTopic 创建主题，已存在时 Kafka 返回错误，仅记录日志
func (k *KafkaTransport) CreateTopic() error {
	conn, err := kafka.Dial("tcp", k.conf.HostPort)
	if err != nil {
		return err
	}
	defer conn.Close()

	partitions := k.conf.Partition
	if partitions <= 0 {
		partitions = 1
	}
	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             k.conf.ChatTopic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		zap.L().Warn("kafka create topic", zap.String("topic", k.conf.ChatTopic), zap.Error(err))
	}
	return nil
}

// Publish 写入一条信封，key 为目标身份
func (k *KafkaTransport) Publish(ctx context.Context, env Envelope) error {
	value, err := encodeEnvelope(env)
	if err != nil {
		return err
	}
	return k.Producer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.UserID),
		Value: value,
	})
}

// Consume 循环读取直到 ctx 取消或 Reader 关闭
func (k *KafkaTransport) Consume(ctx context.Context, handle Handler) error {
	for {
		msg, err := k.Consumer.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		env, err := decodeEnvelope(msg.Value)
		if err != nil {
			zap.L().Error("kafka envelope decode failed",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}
		handle(env)
	}
}

func (k *KafkaTransport) Close() error {
	return errors.Join(k.Producer.Close(), k.Consumer.Close())
}

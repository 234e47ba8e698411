package mq

import (
	"testing"
	"time"

	myconfig "mentor_chat_server/internal/config"
)

// 构造时不连接 broker，只检查生产者不会按默认 1s 攒批
func TestKafkaProducerFlushesEveryEvent(t *testing.T) {
	k := NewKafkaTransport(myconfig.KafkaConfig{HostPort: "127.0.0.1:9092", ChatTopic: "mentor_chat", Timeout: 1})
	t.Cleanup(func() { _ = k.Close() })

	if k.Producer.BatchSize != 1 {
		t.Fatalf("batch size=%d want 1", k.Producer.BatchSize)
	}
	if k.Producer.BatchTimeout <= 0 || k.Producer.BatchTimeout > 10*time.Millisecond {
		t.Fatalf("batch timeout=%v", k.Producer.BatchTimeout)
	}
	if k.Producer.Async {
		t.Fatal("producer must stay synchronous so publish errors reach the caller")
	}
}

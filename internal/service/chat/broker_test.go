package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	myconfig "mentor_chat_server/internal/config"
	"mentor_chat_server/internal/infrastructure/mq"
	"mentor_chat_server/pkg/chatproto"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestNewBrokerModes(t *testing.T) {
	r := NewRegistry()
	conf := myconfig.KafkaConfig{RedisChannel: "mentor_chat:test"}

	b, err := NewBroker(ModeChannel, r, conf, nil)
	if err != nil {
		t.Fatalf("channel mode: %v", err)
	}
	if _, ok := b.(*ChannelBroker); !ok {
		t.Fatalf("channel mode built %T", b)
	}
	if _, err := NewBroker(ModeRedis, r, conf, nil); err == nil {
		t.Fatal("redis mode without a client must fail")
	}
	if _, err := NewBroker("carrier-pigeon", r, conf, nil); err == nil {
		t.Fatal("unknown mode must fail")
	}
}

// 两个实例共用数据库和 Redis 频道：在实例 1 上发送，连在实例 2 上的接收方也能收到
func TestRedisBrokerDeliversAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	conf := myconfig.KafkaConfig{RedisChannel: "mentor_chat:deliver"}

	_, msgs := newTestServer(t)

	newInstance := func() *ChatServer {
		registry := NewRegistry()
		broker, err := NewBroker(ModeRedis, registry, conf, client)
		if err != nil {
			t.Fatalf("new broker: %v", err)
		}
		srv := NewChatServer(ChatServerConfig{Messages: msgs, Registry: registry, Broker: broker})
		srv.Start()
		t.Cleanup(srv.Close)
		return srv
	}
	one, two := newInstance(), newInstance()

	sender := newFakeSession("mentor")
	receiver := newFakeSession("mentee")
	_ = one.Join(sender, "")
	_ = two.Join(receiver, "")

	msg, err := one.Send(context.Background(), "mentor", "mentee", "across the wire", "r1")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	waitFor(t, func() bool { return len(receiver.Frames()) == 1 }, "cross-instance receive")
	rm, ok := receiver.Events(t)[0].(chatproto.ReceiveMessage)
	if !ok || rm.ID != msg.ID {
		t.Fatalf("receiver got %#v", receiver.Events(t))
	}
	waitFor(t, func() bool { return len(sender.Frames()) == 1 }, "sender echo")
	if sent, ok := sender.Events(t)[0].(chatproto.MessageSent); !ok || sent.ClientRef != "r1" {
		t.Fatalf("sender got %#v", sender.Events(t))
	}
}

// loopbackTransport 记录每次发布，并把信封原样交回给消费方
type loopbackTransport struct {
	mu        sync.Mutex
	published []mq.Envelope
	ch        chan mq.Envelope
}

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{ch: make(chan mq.Envelope, 64)}
}

func (l *loopbackTransport) Publish(_ context.Context, env mq.Envelope) error {
	l.mu.Lock()
	l.published = append(l.published, env)
	l.mu.Unlock()
	l.ch <- env
	return nil
}

func (l *loopbackTransport) Consume(ctx context.Context, handle mq.Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-l.ch:
			handle(env)
		}
	}
}

func (l *loopbackTransport) Close() error { return nil }

func (l *loopbackTransport) Targets() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.published))
	for _, env := range l.published {
		out = append(out, env.UserID)
	}
	return out
}

// 每个目标只发布一次，且代理本身不引入等待
func TestTransportBrokerPublishesOncePerTarget(t *testing.T) {
	_, msgs := newTestServer(t)
	registry := NewRegistry()
	transport := newLoopbackTransport()
	srv := NewChatServer(ChatServerConfig{Messages: msgs, Registry: registry, Broker: NewTransportBroker(registry, transport)})
	srv.Start()
	t.Cleanup(srv.Close)

	sender := newFakeSession("mentor")
	receiver := newFakeSession("mentee")
	_ = srv.Join(sender, "")
	_ = srv.Join(receiver, "")

	start := time.Now()
	if _, err := srv.Send(context.Background(), "mentor", "mentee", "hello", "r1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	srv.Typing(context.Background(), "mentor", "mentee", true)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("send + typing took %v", elapsed)
	}

	got := transport.Targets()
	want := []string{"mentee", "mentor", "mentee"}
	if len(got) != len(want) {
		t.Fatalf("published to %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("published to %v want %v", got, want)
		}
	}
	waitFor(t, func() bool { return len(receiver.Frames()) == 2 && len(sender.Frames()) == 1 }, "local delivery")
}

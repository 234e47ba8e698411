package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	myconfig "mentor_chat_server/internal/config"
	"mentor_chat_server/internal/dao/gormdb"
	"mentor_chat_server/internal/service"
	"mentor_chat_server/internal/service/message"
	"mentor_chat_server/pkg/chatproto"
	"mentor_chat_server/pkg/errorx"

	"github.com/google/uuid"
)

// fakeSession 记录推送到它的帧
type fakeSession struct {
	id     string
	userId string

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeSession(userId string) *fakeSession {
	return &fakeSession{id: uuid.NewString(), userId: userId}
}

func (f *fakeSession) Id() string     { return f.id }
func (f *fakeSession) UserId() string { return f.userId }

func (f *fakeSession) Push(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

func (f *fakeSession) Frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func (f *fakeSession) Events(t *testing.T) []chatproto.Event {
	t.Helper()
	var out []chatproto.Event
	for _, raw := range f.Frames() {
		ev, err := chatproto.Decode(raw)
		if err != nil {
			t.Fatalf("decode pushed frame %s: %v", raw, err)
		}
		out = append(out, ev)
	}
	return out
}

// countingMessages 包装真实的消息服务，统计调用次数并可注入持久化失败
type countingMessages struct {
	service.MessageService
	calls atomic.Int32
	fail  atomic.Bool
}

var errInjected = errorx.Wrap(errors.New("disk full"), errorx.CodeDBError, "消息保存失败")

func (c *countingMessages) AppendMessage(ctx context.Context, senderId, receiverId, text string) (*chatproto.Message, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return nil, errInjected
	}
	return c.MessageService.AppendMessage(ctx, senderId, receiverId, text)
}

func (c *countingMessages) MarkSeen(ctx context.Context, readerId, otherId string) (int64, time.Time, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return 0, time.Time{}, errInjected
	}
	return c.MessageService.MarkSeen(ctx, readerId, otherId)
}

func newTestServer(t *testing.T) (*ChatServer, *countingMessages) {
	t.Helper()
	return newTestServerWithConf(t, myconfig.ChatConfig{})
}

func newTestServerWithConf(t *testing.T, conf myconfig.ChatConfig) (*ChatServer, *countingMessages) {
	t.Helper()
	repos, err := gormdb.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repos.Close() })
	msgs := &countingMessages{MessageService: message.NewMessageService(repos, nil)}
	srv := NewChatServer(ChatServerConfig{Messages: msgs, Conn: conf})
	srv.Start()
	t.Cleanup(srv.Close)
	return srv, msgs
}

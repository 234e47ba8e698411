package chatclient_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mentor_chat_server/internal/testenv"
	"mentor_chat_server/pkg/chatclient"
	"mentor_chat_server/pkg/chatproto"
	"mentor_chat_server/pkg/constants"
	"mentor_chat_server/pkg/errorx"
)

func newClient(t *testing.T, env *testenv.Env, self string) *chatclient.Client {
	t.Helper()
	c, err := chatclient.New(chatclient.Config{
		BaseURL:       env.URL,
		Token:         env.Token(t, self),
		Self:          self,
		TypingTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func open(t *testing.T, c *chatclient.Client, peer string) *chatclient.Conversation {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conv, err := c.Open(ctx, peer)
	if err != nil {
		t.Fatalf("open %s -> %s: %v", c.Self(), peer, err)
	}
	t.Cleanup(func() { _ = conv.Close() })
	return conv
}

// eventually 轮询直到条件成立
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func texts(ms []chatproto.Message) []string {
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Text)
	}
	return out
}

func TestOpenLoadsHistory(t *testing.T) {
	env := testenv.Start(t)
	ctx := context.Background()
	if _, err := env.Services.Message.AppendMessage(ctx, "mentor", "mentee", "welcome"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	conv := open(t, newClient(t, env, "mentee"), "mentor")
	if conv.Status() != chatclient.StatusReady {
		t.Fatalf("status=%s", conv.Status())
	}
	got := texts(conv.Messages())
	if len(got) != 1 || got[0] != "welcome" {
		t.Fatalf("messages=%v", got)
	}
}

func TestSendReceiveAndSeen(t *testing.T) {
	env := testenv.Start(t)
	alice := open(t, newClient(t, env, "alice"), "bob")
	bob := open(t, newClient(t, env, "bob"), "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sent, err := alice.Send(ctx, "  hi bob ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if sent.ID == "" || sent.Text != "hi bob" || sent.SenderID != "alice" {
		t.Fatalf("sent=%+v", sent)
	}

	eventually(t, "bob receives", func() bool {
		ms := bob.Messages()
		return len(ms) == 1 && ms[0].ID == sent.ID
	})
	// bob 的会话处于打开状态，自动发送已读
	eventually(t, "alice sees read receipt", func() bool {
		ms := alice.Messages()
		return len(ms) == 1 && ms[0].ReadAt != nil
	})

	// 回显与握手后的补拉不能产生重复消息
	if n := len(alice.Messages()); n != 1 {
		t.Fatalf("alice has %d messages, want 1", n)
	}
}

func TestTypingRelay(t *testing.T) {
	env := testenv.Start(t)
	alice := open(t, newClient(t, env, "alice"), "bob")
	bob := open(t, newClient(t, env, "bob"), "alice")

	alice.Keystroke("h")
	eventually(t, "bob sees typing", bob.PeerTyping)

	alice.Blur()
	eventually(t, "typing stops on blur", func() bool { return !bob.PeerTyping() })

	alice.Keystroke("he")
	eventually(t, "bob sees typing again", bob.PeerTyping)
	// 超时后自动停止
	eventually(t, "typing stops after idle", func() bool { return !bob.PeerTyping() })
}

func TestForeignConversationFiltered(t *testing.T) {
	env := testenv.Start(t)
	alice := open(t, newClient(t, env, "alice"), "bob")

	ctx := context.Background()
	if _, err := env.Chat.Send(ctx, "carol", "alice", "psst", ""); err != nil {
		t.Fatalf("carol send: %v", err)
	}
	if _, err := env.Chat.Send(ctx, "bob", "alice", "hello", ""); err != nil {
		t.Fatalf("bob send: %v", err)
	}

	eventually(t, "bob's message", func() bool { return len(alice.Messages()) > 0 })
	got := texts(alice.Messages())
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("messages=%v", got)
	}
}

func TestFailedSendKeepsDraft(t *testing.T) {
	env := testenv.Start(t)
	alice := open(t, newClient(t, env, "alice"), "bob")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	draft := strings.Repeat("长", constants.MESSAGE_MAX_LENGTH+1)
	_, err := alice.Send(ctx, draft)
	var sendErr *chatclient.SendError
	if !errors.As(err, &sendErr) || sendErr.Text != draft {
		t.Fatalf("want SendError with draft, got %v", err)
	}
	var apiErr *chatclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != errorx.CodeInvalidParam {
		t.Fatalf("want invalid param, got %v", err)
	}

	_, err = alice.Send(ctx, "   ")
	if !errors.Is(err, chatclient.ErrEmptyMessage) {
		t.Fatalf("want ErrEmptyMessage, got %v", err)
	}
	if n := len(alice.Messages()); n != 0 {
		t.Fatalf("failed sends must not appear, got %d", n)
	}

	// 会话仍然可用
	if _, err := alice.Send(ctx, "ok"); err != nil {
		t.Fatalf("send after failure: %v", err)
	}
}

func TestOpenWithBadTokenReportsHistoryError(t *testing.T) {
	env := testenv.Start(t)
	c, err := chatclient.New(chatclient.Config{BaseURL: env.URL, Token: "garbage", Self: "alice"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	conv, err := c.Open(context.Background(), "bob")
	if conv != nil {
		t.Fatal("conversation must not be returned on failure")
	}
	var histErr *chatclient.HistoryError
	if !errors.As(err, &histErr) || histErr.Peer != "bob" {
		t.Fatalf("want HistoryError, got %v", err)
	}
	var apiErr *chatclient.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != errorx.CodeUnauthorized {
		t.Fatalf("want unauthorized, got %v", err)
	}
}

func TestOpenRejectsSelfPeer(t *testing.T) {
	env := testenv.Start(t)
	if _, err := newClient(t, env, "alice").Open(context.Background(), "alice"); err == nil {
		t.Fatal("opening a conversation with yourself should fail")
	}
}

func TestCloseIsIdempotentAndStopsSend(t *testing.T) {
	env := testenv.Start(t)
	conv := open(t, newClient(t, env, "alice"), "bob")

	_ = conv.Close()
	_ = conv.Close()
	if conv.Status() != chatclient.StatusClosed {
		t.Fatalf("status=%s", conv.Status())
	}
	_, err := conv.Send(context.Background(), "late")
	if !errors.Is(err, chatclient.ErrClosed) {
		t.Fatalf("want ErrClosed, got %v", err)
	}
}

func TestReconnectAfterServerDropsSession(t *testing.T) {
	env := testenv.Start(t)
	alice := open(t, newClient(t, env, "alice"), "bob")
	if _, err := env.Chat.Send(context.Background(), "bob", "alice", "before", ""); err != nil {
		t.Fatalf("send before: %v", err)
	}
	eventually(t, "first message", func() bool { return len(alice.Messages()) == 1 })

	// 断开所有本地连接；单机代理不受影响，客户端应自动重连
	env.Chat.Close()
	eventually(t, "alice re-registered", func() bool { return env.Chat.Registry().IsOnline("alice") })
	eventually(t, "status ready", func() bool { return alice.Status() == chatclient.StatusReady })

	if _, err := env.Chat.Send(context.Background(), "bob", "alice", "after", ""); err != nil {
		t.Fatalf("send after: %v", err)
	}
	eventually(t, "message after reconnect", func() bool { return len(alice.Messages()) == 2 })
	got := texts(alice.Messages())
	if got[0] != "before" || got[1] != "after" {
		t.Fatalf("messages=%v", got)
	}
}

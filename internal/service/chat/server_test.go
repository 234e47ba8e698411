package chat

import (
	"context"
	"testing"

	"mentor_chat_server/pkg/chatproto"
	"mentor_chat_server/pkg/errorx"
)

func TestSendDeliversToReceiverAndEchoesToSender(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	mentor, mentorTab2 := newFakeSession("mentor"), newFakeSession("mentor")
	mentee1, mentee2 := newFakeSession("mentee"), newFakeSession("mentee")
	for _, s := range []*fakeSession{mentor, mentorTab2, mentee1, mentee2} {
		if err := srv.Join(s, ""); err != nil {
			t.Fatalf("join: %v", err)
		}
	}

	srv.Dispatch(ctx, mentor, chatproto.SendMessage{ReceiverID: "mentee", Text: "Hello", ClientRef: "r1"})

	for _, s := range []*fakeSession{mentee1, mentee2} {
		evs := s.Events(t)
		if len(evs) != 1 {
			t.Fatalf("receiver session got %d events want 1", len(evs))
		}
		rm, ok := evs[0].(chatproto.ReceiveMessage)
		if !ok || rm.Text != "Hello" || rm.SenderID != "mentor" {
			t.Fatalf("receiver got %#v", evs[0])
		}
	}
	for _, s := range []*fakeSession{mentor, mentorTab2} {
		evs := s.Events(t)
		if len(evs) != 1 {
			t.Fatalf("sender session got %d events want 1", len(evs))
		}
		sent, ok := evs[0].(chatproto.MessageSent)
		if !ok || sent.ClientRef != "r1" || sent.Text != "Hello" {
			t.Fatalf("sender got %#v", evs[0])
		}
	}
}

func TestSendWithoutDurabilityDeliversNothing(t *testing.T) {
	srv, msgs := newTestServer(t)
	msgs.fail.Store(true)

	origin, otherTab := newFakeSession("a"), newFakeSession("a")
	receiver := newFakeSession("b")
	for _, s := range []*fakeSession{origin, otherTab, receiver} {
		_ = srv.Join(s, "")
	}

	srv.Dispatch(context.Background(), origin, chatproto.SendMessage{ReceiverID: "b", Text: "lost", ClientRef: "r9"})

	if n := len(receiver.Frames()) + len(otherTab.Frames()); n != 0 {
		t.Fatalf("%d live events fired after persistence failure", n)
	}
	evs := origin.Events(t)
	if len(evs) != 1 {
		t.Fatalf("origin got %d events want one error", len(evs))
	}
	e, ok := evs[0].(chatproto.Error)
	if !ok || e.Code != errorx.CodeDBError || e.ClientRef != "r9" || e.Event != chatproto.EventSendMessage {
		t.Fatalf("origin got %#v", evs[0])
	}
}

func TestSendToOfflineIsPersistedSilently(t *testing.T) {
	srv, msgs := newTestServer(t)
	ctx := context.Background()

	msg, err := srv.Send(ctx, "a", "nobody-online", "later", "")
	if err != nil {
		t.Fatalf("send to offline: %v", err)
	}
	history, err := msgs.FetchHistory(ctx, "a", "nobody-online")
	if err != nil || len(history) != 1 || history[0].ID != msg.ID {
		t.Fatalf("history=%v err=%v", history, err)
	}
}

func TestSelfMessageRejected(t *testing.T) {
	srv, msgs := newTestServer(t)
	self := newFakeSession("a")
	_ = srv.Join(self, "")

	srv.Dispatch(context.Background(), self, chatproto.SendMessage{ReceiverID: "a", Text: "hi"})

	evs := self.Events(t)
	if len(evs) != 1 {
		t.Fatalf("got %d events", len(evs))
	}
	if e, ok := evs[0].(chatproto.Error); !ok || e.Code != errorx.CodeInvalidParam {
		t.Fatalf("want validation error frame, got %#v", evs[0])
	}
	history, _ := msgs.FetchHistory(context.Background(), "a", "b")
	if len(history) != 0 {
		t.Fatal("self message must not be stored")
	}
}

func TestTypingIsRelayedWithoutPersistence(t *testing.T) {
	srv, msgs := newTestServer(t)
	a, b := newFakeSession("a"), newFakeSession("b")
	_ = srv.Join(a, "")
	_ = srv.Join(b, "")

	srv.Dispatch(context.Background(), a, chatproto.Typing{Start: true, ReceiverID: "b"})
	srv.Dispatch(context.Background(), a, chatproto.Typing{Start: false, ReceiverID: "b"})
	srv.Dispatch(context.Background(), a, chatproto.Typing{Start: true, ReceiverID: "offline"})

	evs := b.Events(t)
	if len(evs) != 2 {
		t.Fatalf("b got %d events want 2", len(evs))
	}
	start, ok1 := evs[0].(chatproto.Typing)
	stop, ok2 := evs[1].(chatproto.Typing)
	if !ok1 || !ok2 || !start.Start || stop.Start || start.SenderID != "a" {
		t.Fatalf("typing relay wrong: %#v", evs)
	}
	if len(a.Frames()) != 0 {
		t.Fatal("typing toward an offline peer must be dropped silently")
	}
	if msgs.calls.Load() != 0 {
		t.Fatalf("typing touched persistence %d times", msgs.calls.Load())
	}
}

func TestSeenMarksAndRelaysReceipt(t *testing.T) {
	srv, msgs := newTestServer(t)
	ctx := context.Background()
	a, b := newFakeSession("a"), newFakeSession("b")
	_ = srv.Join(a, "")
	_ = srv.Join(b, "")

	srv.Dispatch(ctx, a, chatproto.SendMessage{ReceiverID: "b", Text: "Hello"})
	srv.Dispatch(ctx, b, chatproto.Seen{OtherID: "a"})

	var seen *chatproto.Seen
	for _, ev := range a.Events(t) {
		if s, ok := ev.(chatproto.Seen); ok {
			seen = &s
		}
	}
	if seen == nil || seen.From != "b" || seen.ReadAt == nil {
		t.Fatalf("a did not get the read receipt: %#v", a.Events(t))
	}

	history, _ := msgs.FetchHistory(ctx, "a", "b")
	if len(history) != 1 || history[0].ReadAt == nil {
		t.Fatalf("history not marked read: %+v", history)
	}
}

func TestSeenFailureGoesToOriginOnly(t *testing.T) {
	srv, msgs := newTestServer(t)
	a, b := newFakeSession("a"), newFakeSession("b")
	_ = srv.Join(a, "")
	_ = srv.Join(b, "")
	msgs.fail.Store(true)

	srv.Dispatch(context.Background(), b, chatproto.Seen{OtherID: "a"})

	if len(a.Frames()) != 0 {
		t.Fatal("receipt relayed despite persistence failure")
	}
	evs := b.Events(t)
	if len(evs) != 1 {
		t.Fatalf("origin got %d events", len(evs))
	}
	if e, ok := evs[0].(chatproto.Error); !ok || e.Event != chatproto.EventMessageSeen {
		t.Fatalf("origin got %#v", evs[0])
	}
}

func TestJoinIdentityMismatchRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	s := newFakeSession("mentor")

	err := srv.Join(s, "someone-else")
	if !errorx.Is(err, errorx.CodeUnauthorized) {
		t.Fatalf("want unauthorized, got %v", err)
	}
	if srv.Registry().SessionCount() != 0 {
		t.Fatal("rejected session must not be registered")
	}

	if err := srv.Join(s, "mentor"); err != nil {
		t.Fatalf("matching join: %v", err)
	}
	srv.Dispatch(context.Background(), s, chatproto.Join{UserID: "mentor"})
	evs := s.Events(t)
	if e, ok := evs[len(evs)-1].(chatproto.Error); !ok || e.Event != chatproto.EventJoin {
		t.Fatalf("second join should be refused, got %#v", evs)
	}

	srv.Leave(s)
	srv.Leave(s)
	if srv.Registry().SessionCount() != 0 {
		t.Fatal("leave did not unregister")
	}
}

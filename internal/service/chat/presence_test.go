package chat

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistryKeepsEverySession(t *testing.T) {
	r := NewRegistry()
	a1 := newFakeSession("a")
	a2 := newFakeSession("a")
	b := newFakeSession("b")
	r.Register("a", a1)
	r.Register("a", a2)
	r.Register("b", b)

	if got := len(r.SessionsFor("a")); got != 2 {
		t.Fatalf("sessions for a = %d want 2", got)
	}
	if r.OnlineUsers() != 2 || r.SessionCount() != 3 {
		t.Fatalf("online=%d sessions=%d", r.OnlineUsers(), r.SessionCount())
	}

	if !r.Unregister(a1) {
		t.Fatal("unregister a1 should report removal")
	}
	if r.Unregister(a1) {
		t.Fatal("second unregister must be a no-op")
	}
	left := r.SessionsFor("a")
	if len(left) != 1 || left[0].Id() != a2.Id() {
		t.Fatalf("unregister removed the wrong session: %v", left)
	}

	r.Unregister(a2)
	if r.IsOnline("a") || len(r.SessionsFor("a")) != 0 {
		t.Fatal("a should be offline")
	}
	if len(r.SessionsFor("nobody")) != 0 {
		t.Fatal("unknown identity must give an empty snapshot")
	}
}

func TestRegistryDeliverFansOut(t *testing.T) {
	r := NewRegistry()
	x1, x2 := newFakeSession("x"), newFakeSession("x")
	r.Register("x", x1)
	r.Register("x", x2)

	if n := r.Deliver("x", []byte("frame")); n != 2 {
		t.Fatalf("delivered to %d sessions want 2", n)
	}
	if len(x1.Frames()) != 1 || len(x2.Frames()) != 1 {
		t.Fatal("each session must receive the frame exactly once")
	}
	if n := r.Deliver("offline", []byte("frame")); n != 0 {
		t.Fatalf("offline delivery = %d", n)
	}
}

func TestRegistryConcurrentRegisterUnregister(t *testing.T) {
	r := NewRegistry()
	const workers, perWorker = 16, 200

	var wg sync.WaitGroup
	kept := make([][]Session, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			identity := fmt.Sprintf("user-%d", w%4)
			for i := 0; i < perWorker; i++ {
				s := newFakeSession(identity)
				r.Register(identity, s)
				_ = r.SessionsFor(identity)
				if i%2 == 0 {
					r.Unregister(s)
				} else {
					kept[w] = append(kept[w], s)
				}
			}
		}(w)
	}
	wg.Wait()

	want := workers * perWorker / 2
	if got := r.SessionCount(); got != want {
		t.Fatalf("session count = %d want %d", got, want)
	}
	for _, list := range kept {
		for _, s := range list {
			r.Unregister(s)
		}
	}
	if r.SessionCount() != 0 || r.OnlineUsers() != 0 {
		t.Fatalf("registry not empty: sessions=%d users=%d", r.SessionCount(), r.OnlineUsers())
	}
}

package chatclient

import (
	"sync"
	"testing"
	"time"
)

type emitLog struct {
	mu    sync.Mutex
	calls []bool
}

func (l *emitLog) emit(start bool) {
	l.mu.Lock()
	l.calls = append(l.calls, start)
	l.mu.Unlock()
}

func (l *emitLog) snapshot() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.calls...)
}

func equalCalls(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTypingStartOnceAndStopAfterIdle(t *testing.T) {
	var log emitLog
	d := newTypingDebouncer(80*time.Millisecond, log.emit)

	d.Keystroke("h")
	d.Keystroke("he")
	d.Keystroke("hel")
	if got := log.snapshot(); !equalCalls(got, []bool{true}) {
		t.Fatalf("calls=%v want [true]", got)
	}

	time.Sleep(200 * time.Millisecond)
	if got := log.snapshot(); !equalCalls(got, []bool{true, false}) {
		t.Fatalf("calls=%v want [true false]", got)
	}
	if d.Typing() {
		t.Fatal("still typing after timeout")
	}
}

func TestTypingKeystrokeRearmsTimer(t *testing.T) {
	var log emitLog
	d := newTypingDebouncer(150*time.Millisecond, log.emit)

	d.Keystroke("a")
	for i := 0; i < 4; i++ {
		time.Sleep(60 * time.Millisecond)
		d.Keystroke("ab")
	}
	// 最后一次按键之后不足一个超时周期，不能已经发出 stop
	if got := log.snapshot(); !equalCalls(got, []bool{true}) {
		t.Fatalf("stop emitted while still typing: %v", got)
	}
	time.Sleep(300 * time.Millisecond)
	if got := log.snapshot(); !equalCalls(got, []bool{true, false}) {
		t.Fatalf("calls=%v", got)
	}
}

func TestTypingBlurAndClearStopImmediately(t *testing.T) {
	var log emitLog
	d := newTypingDebouncer(time.Hour, log.emit)

	d.Keystroke("x")
	d.Stop()
	if got := log.snapshot(); !equalCalls(got, []bool{true, false}) {
		t.Fatalf("blur: calls=%v", got)
	}

	d.Keystroke("y")
	d.Keystroke("")
	if got := log.snapshot(); !equalCalls(got, []bool{true, false, true, false}) {
		t.Fatalf("clear: calls=%v", got)
	}

	// 空闲状态下 Stop 不发任何事件
	d.Stop()
	if got := log.snapshot(); len(got) != 4 {
		t.Fatalf("idle stop emitted: %v", got)
	}
}

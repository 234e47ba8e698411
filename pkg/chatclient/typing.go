package chatclient

import (
	"sync"
	"time"
)

// typingDebouncer 输入状态防抖
// 空闲 -> 输入 的边沿发出 start；每次按键重置计时器，超时、失焦或输入框清空时立即发出 stop
// gen 为代数计数器：被取消或重置的计时器到期时代数已变化，不会误发 stop
type typingDebouncer struct {
	timeout time.Duration
	emit    func(start bool)

	mu     sync.Mutex
	typing bool
	gen    uint64
	timer  *time.Timer
}

func newTypingDebouncer(timeout time.Duration, emit func(start bool)) *typingDebouncer {
	return &typingDebouncer{timeout: timeout, emit: emit}
}

// Keystroke 输入框内容变化；text 为空等同于 Stop
func (d *typingDebouncer) Keystroke(text string) {
	if text == "" {
		d.Stop()
		return
	}
	d.mu.Lock()
	d.gen++
	gen := d.gen
	rising := !d.typing
	d.typing = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.timeout, func() { d.expire(gen) })
	d.mu.Unlock()

	if rising {
		d.emit(true)
	}
}

// Stop 取消计时器，如果处于输入状态则立即发出 stop
func (d *typingDebouncer) Stop() {
	d.mu.Lock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	was := d.typing
	d.typing = false
	d.mu.Unlock()

	if was {
		d.emit(false)
	}
}

func (d *typingDebouncer) expire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || !d.typing {
		d.mu.Unlock()
		return
	}
	d.typing = false
	d.timer = nil
	d.mu.Unlock()

	d.emit(false)
}

func (d *typingDebouncer) Typing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typing
}

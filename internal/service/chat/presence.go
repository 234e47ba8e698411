package chat

import (
	"sync"
)

// Session 一个已完成 join 的实时会话
// Push 不阻塞：返回 false 表示会话已关闭或因缓冲区写满被断开
type Session interface {
	Id() string
	UserId() string
	Push(frame []byte) bool
}

// Registry 在线状态表：身份 -> 会话集合
// 同一身份可以有多个会话（多标签页、多设备），注册新会话不会挤掉旧会话
// 两张表由同一把读写锁保护，不会出现并发丢失更新
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]map[string]Session // identity -> sessionId -> session
	owners   map[string]string             // sessionId -> identity
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]map[string]Session),
		owners:   make(map[string]string),
	}
}

// Register 将会话加入 identity 的会话集合
// 同一会话重复注册时以最后一次的身份为准
func (r *Registry) Register(identity string, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.owners[s.Id()]; ok {
		r.removeLocked(old, s.Id())
	}
	set, ok := r.sessions[identity]
	if !ok {
		set = make(map[string]Session)
		r.sessions[identity] = set
	}
	set[s.Id()] = s
	r.owners[s.Id()] = identity
}

// Unregister 只移除这一个会话；会话不存在时返回 false
func (r *Registry) Unregister(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.owners[s.Id()]
	if !ok {
		return false
	}
	r.removeLocked(identity, s.Id())
	return true
}

func (r *Registry) removeLocked(identity, sessionId string) {
	delete(r.owners, sessionId)
	set := r.sessions[identity]
	delete(set, sessionId)
	if len(set) == 0 {
		delete(r.sessions, identity)
	}
}

// SessionsFor 返回 identity 当前所有会话的快照，可能为空
// 快照在锁外使用，向其中的会话推送时不持有锁
func (r *Registry) SessionsFor(identity string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.sessions[identity]
	out := make([]Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// Deliver 把一帧推送给 identity 的所有本地会话，返回推送成功的会话数
func (r *Registry) Deliver(identity string, frame []byte) int {
	n := 0
	for _, s := range r.SessionsFor(identity) {
		if s.Push(frame) {
			n++
		}
	}
	return n
}

func (r *Registry) IsOnline(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[identity]) > 0
}

// OnlineUsers 至少有一个会话的身份数
func (r *Registry) OnlineUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SessionCount 会话总数
func (r *Registry) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// All 所有会话的快照
func (r *Registry) All() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.owners))
	for _, set := range r.sessions {
		for _, s := range set {
			out = append(out, s)
		}
	}
	return out
}

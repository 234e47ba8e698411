package chatclient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"mentor_chat_server/pkg/chatproto"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Status 会话状态
type Status int

const (
	StatusLoading      Status = iota // 正在拉取历史 / 建立连接
	StatusReady                      // 实时通道可用
	StatusReconnecting               // 连接断开，正在重连
	StatusError                      // 不可恢复的错误，见 Err()
	StatusClosed                     // 已调用 Close
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	case StatusClosed:
		return "closed"
	}
	return "unknown"
}

const (
	joinTimeout = 10 * time.Second
	writeWait   = 10 * time.Second
)

type sendResult struct {
	msg *chatproto.Message
	err error
}

// Conversation 与一个对端的会话
// 由 Client.Open 获取，Close 释放；所有方法并发安全
type Conversation struct {
	client *Client
	peer   string
	log    *zap.Logger
	typing *typingDebouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeMu sync.Mutex // gorilla 连接同一时刻只允许一个写者

	mu         sync.Mutex
	status     Status
	err        error
	conn       *websocket.Conn
	messages   []chatproto.Message
	index      map[string]int // message id -> messages 下标
	peerTyping bool
	pending    map[string]chan sendResult // client_ref -> 等待者

	updates   chan struct{}
	closeOnce sync.Once
}

// Open 打开与 peer 的会话：
//  1. 拉取历史；失败时返回 *HistoryError，不会给出一个空列表
//  2. 建立 WebSocket，发送 join 并等待 joined
//  3. 向对端发送已读
//
// 成功返回后会话处于 StatusReady，调用方负责 Close
func (c *Client) Open(ctx context.Context, peer string) (*Conversation, error) {
	if peer == "" || peer == c.conf.Self {
		return nil, fmt.Errorf("chatclient: invalid peer %q", peer)
	}
	connCtx, cancel := context.WithCancel(context.Background())
	conv := &Conversation{
		client:  c,
		peer:    peer,
		log:     c.log.With(zap.String("peer", peer)),
		ctx:     connCtx,
		cancel:  cancel,
		status:  StatusLoading,
		index:   make(map[string]int),
		pending: make(map[string]chan sendResult),
		updates: make(chan struct{}, 1),
	}
	conv.typing = newTypingDebouncer(c.conf.TypingTimeout, conv.emitTyping)

	if err := conv.establish(ctx); err != nil {
		conv.setStatus(StatusError, err)
		cancel()
		return nil, err
	}
	return conv, nil
}

// establish 拉取历史并建立实时通道，成功后启动读协程
// 握手完成后再拉取一次历史，补上“首次拉取”与“注册在线”之间到达的消息
func (c *Conversation) establish(ctx context.Context) error {
	history, err := c.client.History(ctx, c.peer)
	if err != nil {
		return &HistoryError{Peer: c.peer, Err: err}
	}
	c.merge(history)

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	if catchUp, err := c.client.History(ctx, c.peer); err == nil {
		c.merge(catchUp)
	} else {
		c.log.Warn("catch-up history fetch failed", zap.Error(err))
	}

	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.status = StatusReady
	c.err = nil
	c.mu.Unlock()
	c.notify()

	c.emitSeen()

	c.wg.Add(1)
	go c.readLoop(conn)
	return nil
}

// dial 建立连接并完成 join 握手
// joined 之前到达的其他事件照常处理
func (c *Conversation) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := c.client.conf.Dialer.DialContext(ctx, c.client.wsURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial chat channel: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, chatproto.MustEncode(chatproto.Join{UserID: c.client.conf.Self})); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send join: %w", err)
	}

	deadline := time.Now().Add(joinTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)
	for {
		ev, err := readEvent(conn)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("wait for joined: %w", err)
		}
		switch e := ev.(type) {
		case chatproto.Joined:
			_ = conn.SetReadDeadline(time.Time{})
			c.log.Debug("joined", zap.String("session", e.SessionID))
			return conn, nil
		case chatproto.Error:
			_ = conn.Close()
			return nil, &APIError{Code: e.Code, Msg: e.Msg}
		default:
			c.dispatch(ev)
		}
	}
}

func readEvent(conn *websocket.Conn) (chatproto.Event, error) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		ev, err := chatproto.Decode(raw)
		if err != nil {
			// 未知事件或无法解析的帧直接跳过，不影响连接
			continue
		}
		return ev, nil
	}
}

func (c *Conversation) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		ev, err := readEvent(conn)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.log.Warn("chat channel lost", zap.Error(err))
			c.lost(conn, err)
			c.reconnect()
			return
		}
		c.dispatch(ev)
	}
}

// lost 连接断开：进入重连状态，所有等待中的发送以失败返回
func (c *Conversation) lost(conn *websocket.Conn, cause error) {
	_ = conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	if c.status != StatusClosed {
		c.status = StatusReconnecting
		c.err = cause
	}
	c.peerTyping = false
	pending := c.pending
	c.pending = make(map[string]chan sendResult)
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- sendResult{err: fmt.Errorf("%w: %v", ErrNotConnected, cause)}
	}
	c.notify()
}

// reconnect 按指数退避重试，直到成功、会话关闭或遇到认证失败
// 重连成功后历史与本地状态按 id 合并，再按 (created_at, id) 排序
func (c *Conversation) reconnect() {
	conf := c.client.conf
	delay := conf.ReconnectDelay
	for {
		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := c.establish(c.ctx)
		if err == nil {
			c.log.Info("chat channel restored")
			return
		}
		if c.ctx.Err() != nil {
			return
		}
		if isPermanent(err) {
			c.log.Error("reconnect rejected", zap.Error(err))
			c.setStatus(StatusError, err)
			return
		}
		c.log.Warn("reconnect failed", zap.Duration("retry_in", delay), zap.Error(err))
		c.setStatus(StatusReconnecting, err)

		delay *= 2
		if delay > conf.MaxReconnectDelay {
			delay = conf.MaxReconnectDelay
		}
	}
}

// dispatch 处理一个下行事件；不属于 (self, peer) 的事件直接忽略
func (c *Conversation) dispatch(ev chatproto.Event) {
	self := c.client.conf.Self
	switch e := ev.(type) {
	case chatproto.ReceiveMessage:
		if !e.Involves(self, c.peer) {
			return
		}
		c.mu.Lock()
		c.upsertLocked(e.Message)
		if e.SenderID == c.peer {
			c.peerTyping = false
		}
		c.mu.Unlock()
		c.notify()
		if e.SenderID == c.peer && !c.client.conf.DisableAutoSeen {
			c.emitSeen()
		}
	case chatproto.MessageSent:
		if !e.Involves(self, c.peer) {
			return
		}
		c.mu.Lock()
		c.upsertLocked(e.Message)
		waiter := c.takePendingLocked(e.ClientRef)
		c.mu.Unlock()
		if waiter != nil {
			msg := e.Message
			waiter <- sendResult{msg: &msg}
		}
		c.notify()
	case chatproto.Typing:
		if e.SenderID != c.peer {
			return
		}
		c.mu.Lock()
		c.peerTyping = e.Start
		c.mu.Unlock()
		c.notify()
	case chatproto.Seen:
		if e.From != c.peer || e.ReadAt == nil {
			return
		}
		c.mu.Lock()
		for i := range c.messages {
			m := &c.messages[i]
			if m.SenderID == self && m.ReceiverID == c.peer && m.ReadAt == nil {
				at := *e.ReadAt
				m.ReadAt = &at
			}
		}
		c.mu.Unlock()
		c.notify()
	case chatproto.Error:
		c.mu.Lock()
		waiter := c.takePendingLocked(e.ClientRef)
		c.mu.Unlock()
		if waiter != nil {
			waiter <- sendResult{err: &APIError{Code: e.Code, Msg: e.Msg}}
			return
		}
		c.log.Warn("chat error event", zap.Int("code", e.Code), zap.String("msg", e.Msg), zap.String("event", string(e.Event)))
	}
}

func (c *Conversation) takePendingLocked(ref string) chan sendResult {
	if ref == "" {
		return nil
	}
	ch, ok := c.pending[ref]
	if ok {
		delete(c.pending, ref)
	}
	return ch
}

// upsertLocked 按 id 去重；已存在时只补充已读时间
func (c *Conversation) upsertLocked(m chatproto.Message) {
	if i, ok := c.index[m.ID]; ok {
		if c.messages[i].ReadAt == nil && m.ReadAt != nil {
			c.messages[i].ReadAt = m.ReadAt
		}
		return
	}
	n := len(c.messages)
	c.messages = append(c.messages, m)
	c.index[m.ID] = n
	if n > 0 && m.Less(c.messages[n-1]) {
		c.sortLocked()
	}
}

func (c *Conversation) sortLocked() {
	sort.SliceStable(c.messages, func(i, j int) bool { return c.messages[i].Less(c.messages[j]) })
	for i, m := range c.messages {
		c.index[m.ID] = i
	}
}

// merge 合并一批历史消息
func (c *Conversation) merge(history []chatproto.Message) {
	c.mu.Lock()
	for _, m := range history {
		if m.Involves(c.client.conf.Self, c.peer) {
			c.upsertLocked(m)
		}
	}
	c.mu.Unlock()
	c.notify()
}

// Send 发送一条消息并等待服务端确认（message_sent）或拒绝（error）
// 失败时返回 *SendError，其中保留草稿；不会自动重试
func (c *Conversation) Send(ctx context.Context, text string) (*chatproto.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &SendError{Text: text, Err: ErrEmptyMessage}
	}
	c.typing.Stop()

	ref := uuid.NewString()
	waiter := make(chan sendResult, 1)
	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return nil, &SendError{Text: text, Err: ErrClosed}
	}
	c.pending[ref] = waiter
	c.mu.Unlock()

	err := c.write(chatproto.SendMessage{ReceiverID: c.peer, Text: text, ClientRef: ref})
	if err != nil {
		c.mu.Lock()
		delete(c.pending, ref)
		c.mu.Unlock()
		return nil, &SendError{Text: text, Err: err}
	}

	select {
	case res := <-waiter:
		if res.err != nil {
			return nil, &SendError{Text: text, Err: res.err}
		}
		return res.msg, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, ref)
		c.mu.Unlock()
		return nil, &SendError{Text: text, Err: ctx.Err()}
	case <-c.ctx.Done():
		return nil, &SendError{Text: text, Err: ErrClosed}
	}
}

// Keystroke 输入框内容变化时调用
func (c *Conversation) Keystroke(text string) {
	c.typing.Keystroke(text)
}

// Blur 输入框失去焦点，立即结束输入状态
func (c *Conversation) Blur() {
	c.typing.Stop()
}

// MarkSeen 主动向对端发送已读
func (c *Conversation) MarkSeen() error {
	return c.write(chatproto.Seen{OtherID: c.peer})
}

func (c *Conversation) emitTyping(start bool) {
	if err := c.write(chatproto.Typing{Start: start, ReceiverID: c.peer}); err != nil {
		c.log.Debug("typing event dropped", zap.Bool("start", start), zap.Error(err))
	}
}

func (c *Conversation) emitSeen() {
	if err := c.MarkSeen(); err != nil {
		c.log.Debug("seen event dropped", zap.Error(err))
	}
}

func (c *Conversation) write(ev chatproto.Event) error {
	c.mu.Lock()
	conn := c.conn
	closed := c.status == StatusClosed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}
	frame, err := chatproto.Encode(ev)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Close 释放会话：结束输入状态、关闭连接、停止重连；可重复调用
func (c *Conversation) Close() error {
	c.closeOnce.Do(func() {
		c.typing.Stop()

		c.mu.Lock()
		c.status = StatusClosed
		conn := c.conn
		c.conn = nil
		pending := c.pending
		c.pending = make(map[string]chan sendResult)
		c.mu.Unlock()

		c.cancel()
		if conn != nil {
			c.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			c.writeMu.Unlock()
			_ = conn.Close()
		}
		for _, ch := range pending {
			ch <- sendResult{err: ErrClosed}
		}
		c.wg.Wait()
		c.notify()
	})
	return nil
}

func (c *Conversation) setStatus(s Status, err error) {
	c.mu.Lock()
	if c.status != StatusClosed {
		c.status = s
		c.err = err
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Conversation) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}

// Peer 对端身份
func (c *Conversation) Peer() string { return c.peer }

// Messages 当前消息列表的快照，按 (created_at, id) 升序
func (c *Conversation) Messages() []chatproto.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chatproto.Message(nil), c.messages...)
}

func (c *Conversation) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// PeerTyping 对端是否正在输入
func (c *Conversation) PeerTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerTyping
}

// Err 最近一次错误；StatusReady 时为 nil
func (c *Conversation) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Updates 状态变化通知，多次变化可能合并为一次
func (c *Conversation) Updates() <-chan struct{} {
	return c.updates
}

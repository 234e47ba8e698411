package chat

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	myconfig "mentor_chat_server/internal/config"
	"mentor_chat_server/internal/infrastructure/metrics"
	"mentor_chat_server/pkg/chatproto"
	"mentor_chat_server/pkg/errorx"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ConnState 连接状态
// Connecting -> Authenticated -> Active -> Closed，只前进不回退
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// CheckOrigin 放行跨域握手，前端与后端通常不同源；鉴权由 JWT 中间件负责
var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UserConn 一条 WebSocket 连接
// 读协程依次处理上行事件，写协程独占连接的写操作
type UserConn struct {
	Conn     *websocket.Conn
	SendBack chan []byte // 下行缓冲，写满视为慢连接

	id      string
	userId  string // 鉴权得到的身份
	server  *ChatServer
	conf    myconfig.ChatConfig
	limiter *rate.Limiter

	state     atomic.Int32
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// ServeWs 升级 HTTP 连接并阻塞运行，直到连接关闭
// userId 为鉴权中间件得到的身份
func (s *ChatServer) ServeWs(w http.ResponseWriter, r *http.Request, userId string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 失败时已向客户端写入 HTTP 错误
		zap.L().Warn("websocket upgrade failed", zap.String("user_id", userId), zap.Error(err))
		return
	}
	NewUserConn(conn, userId, s).Run()
}

// NewUserConn 包装一条已升级的连接，初始状态为 Connecting
func NewUserConn(conn *websocket.Conn, userId string, server *ChatServer) *UserConn {
	conf := server.connConf
	ctx, cancel := context.WithCancel(context.Background())
	return &UserConn{
		Conn:     conn,
		SendBack: make(chan []byte, conf.SendBufferSize),
		id:       uuid.NewString(),
		userId:   userId,
		server:   server,
		conf:     conf,
		limiter:  rate.NewLimiter(rate.Limit(conf.EventsPerSecond), conf.EventBurst),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (c *UserConn) Id() string { return c.id }

func (c *UserConn) UserId() string { return c.userId }

func (c *UserConn) State() ConnState { return ConnState(c.state.Load()) }

// Push 非阻塞地把一帧放入下行缓冲
// 连接已关闭返回 false；缓冲区写满说明客户端读得太慢，直接断开，客户端重连后会重新拉取历史
func (c *UserConn) Push(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.SendBack <- frame:
		return true
	default:
		zap.L().Warn("send buffer full, closing slow session",
			zap.String("user_id", c.userId),
			zap.String("session", c.id))
		c.Close()
		return false
	}
}

// Close 注销会话并关闭连接，可重复调用
func (c *UserConn) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		c.server.Leave(c)
		c.cancel()
		close(c.done)
		_ = c.Conn.Close()
	})
}

// Done 连接关闭时关闭
func (c *UserConn) Done() <-chan struct{} {
	return c.done
}

// Run 完成 join 握手后启动写协程，然后在当前协程中处理上行事件
func (c *UserConn) Run() {
	defer c.Close()

	c.Conn.SetReadLimit(c.conf.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	if !c.authenticate() {
		return
	}
	go c.writePump()
	c.readPump()
}

// authenticate 读取第一帧，必须是 join 且身份与鉴权身份一致
// 失败时直接写回 error 帧（此时写协程尚未启动）并关闭，不注册会话
func (c *UserConn) authenticate() bool {
	_, raw, err := c.Conn.ReadMessage()
	if err != nil {
		zap.L().Debug("connection closed before join", zap.String("session", c.id), zap.Error(err))
		return false
	}
	ev, err := chatproto.Decode(raw)
	join, ok := ev.(chatproto.Join)
	if err != nil || !ok {
		c.reject(errorx.New(errorx.CodeUnauthorized, "第一帧必须是 join"))
		return false
	}
	if err := c.server.Join(c, join.UserID); err != nil {
		c.reject(err)
		return false
	}
	c.state.Store(int32(StateAuthenticated))
	c.Push(chatproto.MustEncode(chatproto.Joined{UserID: c.userId, SessionID: c.id}))
	c.state.Store(int32(StateActive))
	return true
}

func (c *UserConn) reject(err error) {
	deadline := time.Now().Add(c.writeWait())
	_ = c.Conn.SetWriteDeadline(deadline)
	if werr := c.Conn.WriteMessage(websocket.TextMessage, errorFrame(chatproto.EventJoin, "", err)); werr != nil {
		zap.L().Debug("write join rejection", zap.Error(werr))
	}
	_ = c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "join rejected"), deadline)
}

func (c *UserConn) readPump() {
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				zap.L().Warn("websocket read error", zap.String("session", c.id), zap.Error(err))
			}
			return
		}
		ev, err := chatproto.Decode(raw)
		if err != nil {
			c.Push(errorFrame("", "", errorx.Wrap(err, errorx.CodeInvalidParam, "无法解析的事件")))
			continue
		}
		if !c.allow(ev) {
			continue
		}
		c.server.Dispatch(c.ctx, c, ev)
	}
}

// allow 令牌桶限流：超限的 send_message / message:seen 回 error 帧，超限的 typing 直接丢弃
func (c *UserConn) allow(ev chatproto.Event) bool {
	if c.limiter.Allow() {
		return true
	}
	metrics.RateLimited.WithLabelValues(string(ev.Name())).Inc()
	switch e := ev.(type) {
	case chatproto.SendMessage:
		c.Push(errorFrame(e.Name(), e.ClientRef, errorx.ErrTooManyRequests))
	case chatproto.Seen:
		c.Push(errorFrame(e.Name(), "", errorx.ErrTooManyRequests))
	}
	return false
}

func (c *UserConn) writePump() {
	ticker := time.NewTicker(c.pongWait() * 9 / 10)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case frame := <-c.SendBack:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Debug("websocket write failed", zap.String("session", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *UserConn) pongWait() time.Duration {
	return time.Duration(c.conf.PongWait) * time.Second
}

func (c *UserConn) writeWait() time.Duration {
	return time.Duration(c.conf.WriteWait) * time.Second
}

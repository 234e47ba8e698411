// Package chatclient 是实时聊天通道的 Go 客户端
// 一个 Client 代表一个已登录身份；Client.Open 打开与某个对端的会话（Conversation），
// 会话负责拉取历史、建立 WebSocket、维护消息列表 / 输入状态 / 已读状态，并在断线后自动重连
package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mentor_chat_server/pkg/chatproto"
	"mentor_chat_server/pkg/constants"
	"mentor_chat_server/pkg/errorx"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Config 客户端配置，零值字段使用默认值
type Config struct {
	BaseURL string // 服务地址，如 http://127.0.0.1:8000
	Token   string // Access Token
	Self    string // 当前用户身份，须与 Token 中的身份一致

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     *zap.Logger

	TypingTimeout     time.Duration // 停止输入多久后发出 typing:stop，默认 1.5s
	ReconnectDelay    time.Duration // 首次重连等待，默认 500ms，之后指数增长
	MaxReconnectDelay time.Duration // 重连等待上限，默认 30s
	DisableAutoSeen   bool          // 关闭“会话打开期间收到对端消息自动发已读”
}

// Client 一个已登录身份的聊天客户端，可同时打开多个会话
type Client struct {
	conf Config
	base *url.URL
	log  *zap.Logger
}

// New 创建客户端
func New(conf Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(conf.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("chatclient: bad base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("chatclient: base url must be http(s), got %q", conf.BaseURL)
	}
	if conf.Self == "" {
		return nil, errors.New("chatclient: Self is required")
	}
	if conf.HTTPClient == nil {
		conf.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if conf.Dialer == nil {
		conf.Dialer = websocket.DefaultDialer
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}
	if conf.TypingTimeout <= 0 {
		conf.TypingTimeout = constants.TYPING_TIMEOUT_MILLIS * time.Millisecond
	}
	if conf.ReconnectDelay <= 0 {
		conf.ReconnectDelay = 500 * time.Millisecond
	}
	if conf.MaxReconnectDelay < conf.ReconnectDelay {
		conf.MaxReconnectDelay = 30 * time.Second
	}
	return &Client{
		conf: conf,
		base: base,
		log:  conf.Logger.With(zap.String("self", conf.Self)),
	}, nil
}

// Self 当前身份
func (c *Client) Self() string {
	return c.conf.Self
}

// envelope 服务端 HTTP 响应信封
type envelope struct {
	Code int             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// History 拉取与 peer 的全部聊天记录，按时间升序
func (c *Client) History(ctx context.Context, peer string) ([]chatproto.Message, error) {
	var out []chatproto.Message
	if err := c.call(ctx, http.MethodGet, "/chat/history/"+url.PathEscape(peer), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Conversations 拉取会话列表
func (c *Client) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	var out []ConversationSummary
	if err := c.call(ctx, http.MethodGet, "/chat/conversations", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ConversationSummary 会话列表中的一项
type ConversationSummary struct {
	OtherUserId string            `json:"other_user_id"`
	LastMessage chatproto.Message `json:"last_message"`
	Unread      int64             `json:"unread"`
}

func (c *Client) call(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.conf.Token)
	resp, err := c.conf.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s (status %d): %w", method, path, resp.StatusCode, err)
	}
	if env.Code != errorx.CodeSuccess {
		return &APIError{Code: env.Code, Msg: messageText(env.Msg)}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// messageText msg 可能是字符串，也可能是字段 -> 提示的对象（参数校验错误）
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// wsURL /wss 地址，Token 通过查询参数传递
func (c *Client) wsURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/wss"
	u.RawQuery = url.Values{"token": {c.conf.Token}}.Encode()
	return u.String()
}

package chatproto

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventName 线上事件名
type EventName string

// 客户端 -> 服务端
const (
	EventJoin        EventName = "join"
	EventSendMessage EventName = "send_message"
)

// 服务端 -> 客户端
const (
	EventJoined         EventName = "joined"
	EventReceiveMessage EventName = "receive_message"
	EventMessageSent    EventName = "message_sent"
	EventError          EventName = "error"
)

// 双向：客户端发出时携带 receiver_id / other_id，服务端转发时携带 sender_id / from
const (
	EventTypingStart EventName = "typing:start"
	EventTypingStop  EventName = "typing:stop"
	EventMessageSeen EventName = "message:seen"
)

// ErrUnknownEvent 帧中的事件名不在协议内
var ErrUnknownEvent = errors.New("chatproto: unknown event")

// Event 协议事件的封闭集合
// 只有本包内的类型能实现该接口，接收方对其做一次类型分派即可覆盖全部事件
type Event interface {
	Name() EventName
	isEvent()
}

// Join 连接建立后的第一帧，声明本连接的身份
// UserID 为空表示使用鉴权得到的身份
type Join struct {
	UserID string `json:"user_id,omitempty"`
}

// Joined 服务端确认身份绑定完成，连接进入 Active
type Joined struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// SendMessage 发送一条消息
// ClientRef 由客户端生成，服务端在 message_sent / error 中原样带回，用于关联请求
type SendMessage struct {
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
	ClientRef  string `json:"client_ref,omitempty"`
}

// ReceiveMessage 推送给接收方的新消息
type ReceiveMessage struct {
	Message
}

// MessageSent 推送给发送方所有会话的回显
type MessageSent struct {
	Message
	ClientRef string `json:"client_ref,omitempty"`
}

// Typing 输入状态
// 上行填写 ReceiverID，下行由服务端填写 SenderID
type Typing struct {
	Start      bool   `json:"-"`
	ReceiverID string `json:"receiver_id,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
}

// Seen 已读回执
// 上行填写 OtherID（对端），下行由服务端填写 From（读者）和 ReadAt
type Seen struct {
	OtherID string     `json:"other_id,omitempty"`
	From    string     `json:"from,omitempty"`
	ReadAt  *time.Time `json:"read_at,omitempty"`
}

// Error 只发给触发错误的那个连接
type Error struct {
	Code      int       `json:"code"`
	Msg       string    `json:"msg"`
	Event     EventName `json:"event,omitempty"`
	ClientRef string    `json:"client_ref,omitempty"`
}

func (Join) Name() EventName           { return EventJoin }
func (Joined) Name() EventName         { return EventJoined }
func (SendMessage) Name() EventName    { return EventSendMessage }
func (ReceiveMessage) Name() EventName { return EventReceiveMessage }
func (MessageSent) Name() EventName    { return EventMessageSent }
func (Seen) Name() EventName           { return EventMessageSeen }
func (Error) Name() EventName          { return EventError }

func (t Typing) Name() EventName {
	if t.Start {
		return EventTypingStart
	}
	return EventTypingStop
}

func (Join) isEvent()           {}
func (Joined) isEvent()         {}
func (SendMessage) isEvent()    {}
func (ReceiveMessage) isEvent() {}
func (MessageSent) isEvent()    {}
func (Typing) isEvent()         {}
func (Seen) isEvent()           {}
func (Error) isEvent()          {}

func (e Error) Error() string {
	return fmt.Sprintf("chat error %d: %s", e.Code, e.Msg)
}

// frame 线上 JSON 帧：{"event": "...", "data": {...}}
type frame struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode 将事件编码为一帧 JSON
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Event: ev.Name(), Data: data})
}

// MustEncode 用于载荷必然可编码的场景（服务端构造的事件）
func MustEncode(ev Event) []byte {
	b, err := Encode(ev)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode 解析一帧 JSON 为具体事件
func Decode(b []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("chatproto: malformed frame: %w", err)
	}

	var ev Event
	switch f.Event {
	case EventJoin:
		ev = decodeInto[Join](f.Data)
	case EventJoined:
		ev = decodeInto[Joined](f.Data)
	case EventSendMessage:
		ev = decodeInto[SendMessage](f.Data)
	case EventReceiveMessage:
		ev = decodeInto[ReceiveMessage](f.Data)
	case EventMessageSent:
		ev = decodeInto[MessageSent](f.Data)
	case EventTypingStart, EventTypingStop:
		ev = decodeInto[Typing](f.Data)
	case EventMessageSeen:
		ev = decodeInto[Seen](f.Data)
	case EventError:
		ev = decodeInto[Error](f.Data)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, f.Event)
	}

	if d, ok := ev.(decodeFailure); ok {
		return nil, fmt.Errorf("chatproto: bad %s payload: %w", f.Event, d.err)
	}
	if t, ok := ev.(Typing); ok {
		t.Start = f.Event == EventTypingStart
		ev = t
	}
	return ev, nil
}

// decodeFailure 载荷解析失败时的占位，仅在 Decode 内部使用
type decodeFailure struct{ err error }

func (decodeFailure) Name() EventName { return "" }
func (decodeFailure) isEvent()        {}

func decodeInto[T Event](data json.RawMessage) Event {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return decodeFailure{err: err}
	}
	return v
}

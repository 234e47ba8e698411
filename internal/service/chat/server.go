package chat

import (
	"context"
	"time"

	myconfig "mentor_chat_server/internal/config"
	"mentor_chat_server/internal/infrastructure/metrics"
	"mentor_chat_server/internal/service"
	"mentor_chat_server/pkg/chatproto"
	"mentor_chat_server/pkg/errorx"

	"go.uber.org/zap"
)

// deliverTimeout 单次投递（发布到 Kafka / Redis）的超时
const deliverTimeout = 5 * time.Second

// ChatServer 实时通道核心
// 负责会话的加入 / 离开，以及上行事件的处理：先持久化，再投递
type ChatServer struct {
	messages service.MessageService
	registry *Registry
	broker   MessageBroker
	connConf myconfig.ChatConfig
}

// ChatServerConfig 聊天服务器依赖
type ChatServerConfig struct {
	Messages service.MessageService
	Registry *Registry
	Broker   MessageBroker       // 为 nil 时使用单机 ChannelBroker
	Conn     myconfig.ChatConfig // 连接参数，零值字段使用默认值
}

// NewChatServer 创建聊天服务器实例
func NewChatServer(cfg ChatServerConfig) *ChatServer {
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	broker := cfg.Broker
	if broker == nil {
		broker = NewChannelBroker(registry)
	}
	defaults := myconfig.Config{ChatConfig: cfg.Conn}
	defaults.ApplyDefaults()
	return &ChatServer{
		messages: cfg.Messages,
		registry: registry,
		broker:   broker,
		connConf: defaults.ChatConfig,
	}
}

// Registry 在线状态表
func (s *ChatServer) Registry() *Registry {
	return s.registry
}

// Start 启动消息代理
func (s *ChatServer) Start() {
	s.broker.Start()
}

// Close 关闭消息代理并断开所有本地连接
func (s *ChatServer) Close() {
	s.broker.Close()
	for _, sess := range s.registry.All() {
		if c, ok := sess.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// Join 绑定会话身份并注册
// declared 为 join 帧中声明的身份，为空表示使用鉴权得到的身份；与鉴权身份不一致时拒绝
func (s *ChatServer) Join(sess Session, declared string) error {
	if declared != "" && declared != sess.UserId() {
		zap.L().Warn("join identity mismatch",
			zap.String("session", sess.Id()),
			zap.String("authenticated", sess.UserId()),
			zap.String("declared", declared))
		return errorx.New(errorx.CodeUnauthorized, "join 身份与登录身份不一致")
	}
	s.registry.Register(sess.UserId(), sess)
	metrics.OnlineSessions.Set(float64(s.registry.SessionCount()))
	zap.L().Info("session joined", zap.String("user_id", sess.UserId()), zap.String("session", sess.Id()))
	return nil
}

// Leave 注销会话，重复调用无副作用
func (s *ChatServer) Leave(sess Session) {
	if !s.registry.Unregister(sess) {
		return
	}
	metrics.OnlineSessions.Set(float64(s.registry.SessionCount()))
	zap.L().Info("session left", zap.String("user_id", sess.UserId()), zap.String("session", sess.Id()))
}

// Send 持久化一条消息，然后投递：
// receive_message 给接收方所有会话，message_sent 给发送方所有会话（包括发起的那个）
// 持久化失败时不投递任何事件，错误由调用方回给发起方
// 持久化使用脱离连接生命周期的 ctx，已被接受的发送即使连接断开也会完成写入
func (s *ChatServer) Send(ctx context.Context, senderId, receiverId, text, clientRef string) (*chatproto.Message, error) {
	ctx = context.WithoutCancel(ctx)
	msg, err := s.messages.AppendMessage(ctx, senderId, receiverId, text)
	if err != nil {
		return nil, err
	}
	s.deliver(ctx, receiverId, chatproto.ReceiveMessage{Message: *msg})
	s.deliver(ctx, senderId, chatproto.MessageSent{Message: *msg, ClientRef: clientRef})
	return msg, nil
}

// Typing 转发输入状态，不持久化；接收方离线时静默丢弃
func (s *ChatServer) Typing(ctx context.Context, senderId, receiverId string, start bool) {
	if receiverId == "" || receiverId == senderId {
		return
	}
	s.deliver(ctx, receiverId, chatproto.Typing{Start: start, SenderID: senderId})
}

// Seen 将 other 发给 reader 的消息标记为已读，并把回执转发给 other 的所有会话
// 持久化失败时不转发
func (s *ChatServer) Seen(ctx context.Context, readerId, otherId string) (int64, time.Time, error) {
	ctx = context.WithoutCancel(ctx)
	updated, at, err := s.messages.MarkSeen(ctx, readerId, otherId)
	if err != nil {
		return 0, time.Time{}, err
	}
	s.deliver(ctx, otherId, chatproto.Seen{From: readerId, ReadAt: &at})
	return updated, at, nil
}

// Dispatch 处理 Active 会话的一个上行事件
// 同一会话的事件在其读协程中依次执行；错误只回给发起的会话
func (s *ChatServer) Dispatch(ctx context.Context, origin Session, ev chatproto.Event) {
	switch e := ev.(type) {
	case chatproto.SendMessage:
		if _, err := s.Send(ctx, origin.UserId(), e.ReceiverID, e.Text, e.ClientRef); err != nil {
			replyError(origin, chatproto.EventSendMessage, e.ClientRef, err)
		}
	case chatproto.Typing:
		s.Typing(ctx, origin.UserId(), e.ReceiverID, e.Start)
	case chatproto.Seen:
		if _, _, err := s.Seen(ctx, origin.UserId(), e.OtherID); err != nil {
			replyError(origin, chatproto.EventMessageSeen, "", err)
		}
	case chatproto.Join:
		replyError(origin, chatproto.EventJoin, "", errorx.New(errorx.CodeInvalidParam, "连接已加入，不能重复 join"))
	default:
		replyError(origin, ev.Name(), "", errorx.Newf(errorx.CodeInvalidParam, "不支持的上行事件 %s", ev.Name()))
	}
}

func (s *ChatServer) deliver(ctx context.Context, userId string, ev chatproto.Event) {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	if err := s.broker.Deliver(ctx, userId, chatproto.MustEncode(ev)); err != nil {
		zap.L().Error("deliver event failed",
			zap.String("event", string(ev.Name())),
			zap.String("user_id", userId),
			zap.Error(err))
		return
	}
	metrics.EventsDelivered.WithLabelValues(string(ev.Name())).Inc()
}

// errorFrame 将业务错误转换为 error 帧
// 非 CodeError 的内部错误不暴露细节
func errorFrame(event chatproto.EventName, clientRef string, err error) []byte {
	code, msg := errorx.Public(err)
	return chatproto.MustEncode(chatproto.Error{Code: code, Msg: msg, Event: event, ClientRef: clientRef})
}

func replyError(origin Session, event chatproto.EventName, clientRef string, err error) {
	if origin == nil {
		return
	}
	origin.Push(errorFrame(event, clientRef, err))
}

package chatclient

import (
	"errors"
	"fmt"

	"mentor_chat_server/pkg/errorx"
)

var (
	// ErrClosed 会话已关闭
	ErrClosed = errors.New("chatclient: conversation closed")
	// ErrNotConnected 实时通道尚未建立或正在重连
	ErrNotConnected = errors.New("chatclient: not connected")
	// ErrEmptyMessage 去除首尾空白后内容为空，不会发往服务端
	ErrEmptyMessage = errors.New("chatclient: empty message")
)

// APIError 服务端返回的业务错误（HTTP 信封或 error 帧）
type APIError struct {
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api error %d: %s", e.Code, e.Msg)
}

// HistoryError 拉取历史失败，会话处于错误状态而不是显示空列表
type HistoryError struct {
	Peer string
	Err  error
}

func (e *HistoryError) Error() string {
	return fmt.Sprintf("load history with %s: %v", e.Peer, e.Err)
}

func (e *HistoryError) Unwrap() error { return e.Err }

// SendError 发送失败，Text 保留原始草稿供用户重试；客户端不会自动重发
type SendError struct {
	Text string
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send message: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// isPermanent 身份认证失败时重连没有意义
func isPermanent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == errorx.CodeUnauthorized
}

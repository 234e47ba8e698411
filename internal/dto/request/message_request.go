package request

// SendMessageRequest 通过 REST 发送消息
// 使用位置:
//   - internal/handler/message_handler.go: SendMessage
type SendMessageRequest struct {
	ReceiverId string `json:"receiver_id" binding:"required,max=64,identity"`
	Text       string `json:"text" binding:"required"`
}

// PeerUriRequest 路径中携带对端身份的请求，如 /chat/history/:otherId
// 使用位置:
//   - internal/handler/message_handler.go: GetHistory, MarkSeen
type PeerUriRequest struct {
	OtherId string `uri:"otherId" binding:"required,max=64,identity"`
}

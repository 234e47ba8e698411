package handler

import (
	"net/http"

	"mentor_chat_server/internal/dto/respond"
	"mentor_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Presence 在线状态统计，由 chat.Registry 实现
type Presence interface {
	OnlineUsers() int
	SessionCount() int
}

// HealthHandler 健康检查
type HealthHandler struct {
	presence Presence
	ping     func() error // 数据库探活
}

func NewHealthHandler(presence Presence, ping func() error) *HealthHandler {
	return &HealthHandler{presence: presence, ping: ping}
}

// Health GET /health，无需认证
// 数据库不可用时返回 503，便于负载均衡摘除实例
func (h *HealthHandler) Health(c *gin.Context) {
	rsp := respond.HealthRespond{
		Status:      "ok",
		OnlineUsers: h.presence.OnlineUsers(),
		Sessions:    h.presence.SessionCount(),
	}
	if h.ping != nil {
		if err := h.ping(); err != nil {
			zap.L().Error("health check: database unreachable", zap.Error(err))
			rsp.Status = "degraded"
			reply(c, http.StatusServiceUnavailable, errorx.CodeDBError, "database unreachable", rsp)
			return
		}
	}
	HandleSuccess(c, rsp)
}

// Package testenv 为集成测试启动完整的聊天服务：内存 SQLite + 单机消息代理 + Gin 引擎
// 只应被 _test.go 文件引用
package testenv

import (
	"net/http/httptest"
	"strings"
	"testing"

	"mentor_chat_server/internal/config"
	"mentor_chat_server/internal/dao/gormdb"
	"mentor_chat_server/internal/handler"
	"mentor_chat_server/internal/https_server"
	"mentor_chat_server/internal/service"
	"mentor_chat_server/internal/service/chat"
	"mentor_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// Secret 测试用 JWT 密钥
const Secret = "testenv-secret-0123456789abcdef"

// Env 一个运行中的测试服务
type Env struct {
	URL      string // http://127.0.0.1:port
	Chat     *chat.ChatServer
	Services *service.Services
}

// Start 启动服务，测试结束时自动关闭
func Start(t testing.TB) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	jwt.Init(Secret, 15)
	if err := handler.InitTrans("en"); err != nil {
		t.Fatalf("init translator: %v", err)
	}

	repos, err := gormdb.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	services := service.NewServices(repos, nil)
	chatServer := chat.NewChatServer(chat.ChatServerConfig{Messages: services.Message})
	chatServer.Start()

	conf := &config.Config{}
	conf.ApplyDefaults()
	engine := https_server.Init(handler.NewHandlers(services, chatServer, repos.Ping), conf)
	srv := httptest.NewServer(engine)

	t.Cleanup(func() {
		srv.Close()
		chatServer.Close()
		_ = repos.Close()
	})
	return &Env{URL: srv.URL, Chat: chatServer, Services: services}
}

// Token 为 userId 签发 Access Token
func (e *Env) Token(t testing.TB, userId string) string {
	t.Helper()
	token, err := jwt.GenerateAccessToken(userId)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

// WsURL WebSocket 入口地址（不含 token）
func (e *Env) WsURL() string {
	return "ws" + strings.TrimPrefix(e.URL, "http") + "/wss"
}

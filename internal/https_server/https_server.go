// Package https_server 组装 Gin 引擎：全局中间件 + 路由
package https_server

import (
	"net/http"

	"mentor_chat_server/internal/config"
	"mentor_chat_server/internal/handler"
	"mentor_chat_server/internal/infrastructure/logger"
	"mentor_chat_server/internal/infrastructure/middleware"
	"mentor_chat_server/internal/router"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Init 创建 Gin 引擎
// 中间件顺序：访问日志 -> panic 恢复 -> 指标 -> CORS -> TLS 重定向（可选），之后注册路由
func Init(handlers *handler.Handlers, conf *config.Config) *gin.Engine {
	if conf.MainConfig.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	// 不使用 gin.Default()，日志和恢复由 zap 接管
	engine := gin.New()
	engine.Use(
		logger.GinLogger(),
		logger.GinRecovery(true),
		middleware.Metrics(),
		cors.New(corsConfig(conf.MainConfig.AllowOrigins)),
	)

	// 由 Nginx 终结 TLS 时保持关闭
	if conf.MainConfig.TlsRedirect {
		engine.Use(middleware.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))
	}

	router.NewRouter(handlers).RegisterRoutes(engine)
	return engine
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	return c
}

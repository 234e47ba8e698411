package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mentor_chat_server/internal/config"
	"mentor_chat_server/internal/dao/gormdb"
	myredis "mentor_chat_server/internal/dao/redis"
	"mentor_chat_server/internal/handler"
	"mentor_chat_server/internal/https_server"
	"mentor_chat_server/internal/infrastructure/logger"
	"mentor_chat_server/internal/service"
	"mentor_chat_server/internal/service/chat"
	"mentor_chat_server/pkg/util/jwt"
	"mentor_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.MainConfig.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()
	zap.L().Info("日志初始化成功")

	// 3. 初始化雪花算法和 JWT
	snowflake.Init(conf.SnowflakeConfig.MachineID)
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
	zap.L().Info("JWT 初始化成功")

	// 4. 初始化数据库
	repos := gormdb.Init()
	zap.L().Info("数据库初始化成功", zap.String("driver", conf.DatabaseConfig.Driver))

	// 5. 初始化 Redis（可选），不可用时不启用历史缓存
	var cache myredis.AsyncCacheService
	if myredis.Enabled(&conf.RedisConfig) {
		if err := myredis.Init(); err != nil {
			zap.L().Warn("Redis 不可用，历史缓存已关闭", zap.Error(err))
		} else {
			cache = myredis.GetCacheService()
			zap.L().Info("Redis 初始化成功")
		}
	}

	// 6. 初始化 Service 层 (依赖注入)
	services := service.NewServices(repos, cache)
	zap.L().Info("Service 层初始化成功")

	// 7. 初始化 ChatServer 和消息代理
	registry := chat.NewRegistry()
	broker, err := chat.NewBroker(conf.KafkaConfig.MessageMode, registry, conf.KafkaConfig, myredis.GetClient())
	if err != nil {
		zap.L().Fatal("消息代理初始化失败", zap.Error(err))
	}
	chatServer := chat.NewChatServer(chat.ChatServerConfig{
		Messages: services.Message,
		Registry: registry,
		Broker:   broker,
		Conn:     conf.ChatConfig,
	})
	chatServer.Start()
	zap.L().Info("ChatServer 初始化成功", zap.String("mode", conf.KafkaConfig.MessageMode))

	// 8. 初始化 HTTPS 服务器
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("初始化翻译器失败", zap.Error(err))
	}
	engine := https_server.Init(handler.NewHandlers(services, chatServer, repos.Ping), conf)
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler: engine,
	}

	// 9. 启动服务
	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("http shutdown", zap.Error(err))
	}
	// WebSocket 连接已被劫持，Shutdown 不会等待，由 ChatServer 负责关闭
	chatServer.Close()
	myredis.Close()
	if err := repos.Close(); err != nil {
		zap.L().Error("close database", zap.Error(err))
	}

	zap.L().Info("服务器已关闭")
}

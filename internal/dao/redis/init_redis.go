// Package redis 提供 Redis 缓存操作的封装
// 本文件仅包含 Redis 连接初始化逻辑
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"strconv"
	"time"

	"mentor_chat_server/internal/config"
	"mentor_chat_server/pkg/constants"

	"github.com/redis/go-redis/v9"
)

// redisClient 全局 Redis 客户端实例（包内可见）
var redisClient *redis.Client

// cacheService 全局缓存服务实例
var cacheService *RedisCache

// Enabled 是否配置了 Redis
func Enabled(cfg *config.RedisConfig) bool {
	return cfg.Host != ""
}

// NewClient 根据配置创建客户端，不做连通性检查
func NewClient(cfg *config.RedisConfig) *redis.Client {
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + strconv.Itoa(port),
		Password: cfg.Password,
		DB:       cfg.Db,
		// 连接池配置
		PoolSize:     50,                         // 最大连接数
		MinIdleConns: constants.CACHE_WORKER_NUM, // 最小空闲连接，与 Worker 数量匹配
	})
}

// Init 初始化 Redis 连接和缓存 Worker Pool
// 连接失败返回错误，由调用方决定是否降级为无缓存运行
func Init() error {
	client := NewClient(&config.GetConfig().RedisConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}

	redisClient = client
	cacheService = NewRedisCache(client, constants.CACHE_WORKER_NUM, constants.CACHE_TASK_BUFFER)
	return nil
}

// GetClient 获取底层客户端（供 pub/sub 消息投递使用），未初始化时为 nil
func GetClient() *redis.Client {
	return redisClient
}

// GetCacheService 获取缓存服务实例，未初始化时为 nil
func GetCacheService() *RedisCache {
	return cacheService
}

// Close 停止 Worker 并关闭连接
func Close() {
	if cacheService != nil {
		cacheService.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

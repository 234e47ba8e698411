// Package redis 定义缓存服务接口
// 遵循依赖倒置原则，Service 层依赖此接口而非具体 Redis 实现
package redis

import (
	"context"
	"time"
)

// CacheService 缓存服务接口
type CacheService interface {
	// Set 设置键值对并指定过期时间
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get 获取键对应的值（键不存在返回空字符串和 nil）
	Get(ctx context.Context, key string) (string, error)
	// Incr 原子自增并返回自增后的值，键不存在时从 0 开始
	Incr(ctx context.Context, key string) (int64, error)
	// DeleteByPattern 删除匹配模式的所有键，用于代数递增失败时的兜底失效
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AsyncCacheService 在 CacheService 基础上提供异步任务能力
// 缓存回填等不影响主流程的写操作通过 SubmitTask 交给后台 Worker
type AsyncCacheService interface {
	CacheService
	// SubmitTask 提交异步任务，队列已满时同步执行
	SubmitTask(action func())
}

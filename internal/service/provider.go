// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"mentor_chat_server/internal/dao/gormdb"
	myredis "mentor_chat_server/internal/dao/redis"
	"mentor_chat_server/internal/service/message"
)

// Services 聚合所有 Service 实例
type Services struct {
	Message MessageService // 消息持久化网关
}

// NewServices 创建并注入所有 Service 实例
// cache 为 nil 时不启用历史缓存
func NewServices(repos *gormdb.Repositories, cache myredis.AsyncCacheService) *Services {
	return &Services{
		Message: message.NewMessageService(repos, cache),
	}
}

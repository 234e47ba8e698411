package gormdb

import (
	"gorm.io/gorm"

	"mentor_chat_server/internal/dao/gormdb/message"
)

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db      *gorm.DB          // GORM 数据库实例
	Message MessageRepository // 消息 Repository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:      db,
		Message: message.NewMessageRepository(db),
	}
}

// Ping 检查数据库连接是否可用，供健康检查使用
func (r *Repositories) Ping() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close 关闭底层连接池
func (r *Repositories) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

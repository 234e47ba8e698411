package gormdb

import (
	"fmt"

	"mentor_chat_server/internal/config"
	"mentor_chat_server/internal/model"

	"github.com/glebarez/sqlite"       // 纯 Go SQLite 驱动（基于 modernc.org/sqlite）
	"go.uber.org/zap"                  // 日志库
	mysqldriver "gorm.io/driver/mysql" // GORM MySQL 驱动
	"gorm.io/driver/postgres"          // GORM PostgreSQL 驱动（pgx）
	"gorm.io/gorm"                     // GORM ORM 框架
	gormlogger "gorm.io/gorm/logger"   // GORM 日志级别
)

// Init 初始化数据库连接并返回 Repository 层实例
// 失败时直接退出进程，只应在 main 中调用
func Init() *Repositories {
	repos, err := Open(&config.GetConfig().DatabaseConfig)
	if err != nil {
		zap.L().Fatal("数据库初始化失败", zap.Error(err))
	}
	return repos
}

// Open 按配置的驱动建立连接、迁移表结构并返回 Repository 实例
// 执行步骤：
//  1. 根据 driver 构建 Dialector
//  2. 使用 GORM 建立数据库连接
//  3. 执行 AutoMigrate 自动迁移表结构
//  4. 创建并返回 Repository 实例
func Open(cfg *config.DatabaseConfig) (*Repositories, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite 只允许单个写者，串行化连接避免 "database is locked"
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// 如果表不存在则创建，如果字段变更则更新结构，不会删除已有字段或数据
	if err := db.AutoMigrate(&model.Message{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return NewRepositories(db), nil
}

// dialectorFor 根据驱动名构建 GORM Dialector
func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		// 格式：user:password@tcp(host:port)/database?params
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DatabaseName)
		return mysqldriver.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DatabaseName)
		return postgres.Open(dsn), nil
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite driver requires databaseConfig.path")
		}
		return sqlite.Open(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenInMemory 打开一个以 name 区分的内存 SQLite 库，用于测试和本地体验
func OpenInMemory(name string) (*Repositories, error) {
	return Open(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", sanitizeName(name)),
	})
}

func sanitizeName(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' {
			out = append(out, ch)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找，敏感字段可由环境变量 / .env 覆盖
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
	"github.com/joho/godotenv"   // .env 文件加载
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName     string `toml:"appName"`     // 应用名称，用于日志标识等
	Host        string `toml:"host"`        // 服务器监听地址，如 "0.0.0.0"
	Port        int    `toml:"port"`        // 服务器监听端口，如 8000
	Mode        string `toml:"mode"`        // 运行模式："dev" 或 "release"
	TlsRedirect bool   `toml:"tlsRedirect"` // 是否启用 HTTP -> HTTPS 重定向（由 Nginx 处理 SSL 时关闭）

	AllowOrigins []string `toml:"allowOrigins"` // CORS 允许的来源，留空表示允许所有来源
}

// DatabaseConfig 数据库连接配置
type DatabaseConfig struct {
	Driver       string `toml:"driver"`       // 驱动："mysql"（默认）、"postgres"、"sqlite"
	Host         string `toml:"host"`         // 数据库服务器地址
	Port         int    `toml:"port"`         // 端口，mysql 默认 3306，postgres 默认 5432
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
	Path         string `toml:"path"`         // sqlite 文件路径或 DSN，如 "data/chat.db"
}

// RedisConfig Redis 连接配置
// Host 留空表示不启用 Redis（不使用历史缓存，也不能使用 redis 消息模式）
type RedisConfig struct {
	Host     string `toml:"host"`     // Redis 服务器地址
	Port     int    `toml:"port"`     // Redis 端口，默认 6379
	Password string `toml:"password"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`       // Redis 数据库编号，默认 0
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig 消息投递配置
// MessageMode 决定实时事件如何在实例之间分发
type KafkaConfig struct {
	MessageMode  string        `toml:"messageMode"`  // 消息模式："channel"（单机）、"kafka" 或 "redis"
	HostPort     string        `toml:"hostPort"`     // Kafka 服务器地址，如 "localhost:9092"
	ChatTopic    string        `toml:"chatTopic"`    // 聊天事件主题
	Partition    int           `toml:"partition"`    // 分区数
	Timeout      time.Duration `toml:"timeout"`      // 超时时间（秒）
	RedisChannel string        `toml:"redisChannel"` // redis 模式下的 pub/sub 频道名
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，须与签发令牌的认证服务一致
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Access Token 有效期（分钟），仅影响本地签发
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 雪花算法节点 ID，范围 0-1023，分布式部署时每台机器需唯一
}

// ChatConfig 实时通道配置
type ChatConfig struct {
	WriteWait       int     `toml:"writeWait"`       // 单次写超时（秒）
	PongWait        int     `toml:"pongWait"`        // 等待 pong 的超时（秒），ping 周期为其 9/10
	MaxMessageSize  int64   `toml:"maxMessageSize"`  // 单帧最大字节数
	SendBufferSize  int     `toml:"sendBufferSize"`  // 每个连接的下行缓冲区大小，写满视为慢连接并断开
	EventsPerSecond float64 `toml:"eventsPerSecond"` // 每个连接每秒允许的上行事件数
	EventBurst      int     `toml:"eventBurst"`      // 令牌桶突发容量
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`      // 主配置
	DatabaseConfig  `toml:"databaseConfig"`  // 数据库配置
	RedisConfig     `toml:"redisConfig"`     // Redis 配置
	LogConfig       `toml:"logConfig"`       // 日志配置
	KafkaConfig     `toml:"kafkaConfig"`     // 消息投递配置
	JWTConfig       `toml:"jwtConfig"`       // JWT 配置
	SnowflakeConfig `toml:"snowflakeConfig"` // 雪花算法配置
	ChatConfig      `toml:"chatConfig"`      // 实时通道配置
}

// 可覆盖配置文件的环境变量
const (
	EnvJWTSecret     = "MENTOR_CHAT_JWT_SECRET"
	EnvDBPassword    = "MENTOR_CHAT_DB_PASSWORD"
	EnvRedisPassword = "MENTOR_CHAT_REDIS_PASSWORD"
)

// config 全局配置单例，延迟加载
var config *Config

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
// 返回值：加载成功返回 nil，否则返回错误
func LoadConfig() error {
	// 候选配置文件路径（优先加载本地配置）
	paths := []string{
		"configs/config_local.toml",
		"configs/config.toml",
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",
	}

	for _, path := range paths {
		if _, err := toml.DecodeFile(path, config); err == nil {
			return nil
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// applyEnv 使用环境变量覆盖敏感配置
// .env 文件不存在时忽略，已存在的环境变量不会被 .env 覆盖
func applyEnv(c *Config) {
	_ = godotenv.Load()
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.JWTConfig.Secret = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		c.DatabaseConfig.Password = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		c.RedisConfig.Password = v
	}
}

// ApplyDefaults 为未配置的字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.MainConfig.AppName == "" {
		c.MainConfig.AppName = "mentor_chat_server"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.MainConfig.Mode == "" {
		c.MainConfig.Mode = "dev"
	}
	if c.DatabaseConfig.Driver == "" {
		c.DatabaseConfig.Driver = "mysql"
	}
	if c.KafkaConfig.MessageMode == "" {
		c.KafkaConfig.MessageMode = "channel"
	}
	if c.KafkaConfig.ChatTopic == "" {
		c.KafkaConfig.ChatTopic = "mentor_chat"
	}
	if c.KafkaConfig.Timeout == 0 {
		c.KafkaConfig.Timeout = 1
	}
	if c.KafkaConfig.RedisChannel == "" {
		c.KafkaConfig.RedisChannel = "mentor_chat:deliver"
	}
	if c.JWTConfig.AccessTokenExpiry == 0 {
		c.JWTConfig.AccessTokenExpiry = 15
	}
	if c.ChatConfig.WriteWait == 0 {
		c.ChatConfig.WriteWait = 10
	}
	if c.ChatConfig.PongWait == 0 {
		c.ChatConfig.PongWait = 60
	}
	if c.ChatConfig.MaxMessageSize == 0 {
		c.ChatConfig.MaxMessageSize = 16 * 1024
	}
	if c.ChatConfig.SendBufferSize == 0 {
		c.ChatConfig.SendBufferSize = 256
	}
	if c.ChatConfig.EventsPerSecond == 0 {
		c.ChatConfig.EventsPerSecond = 20
	}
	if c.ChatConfig.EventBurst == 0 {
		c.ChatConfig.EventBurst = 40
	}
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件
func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig() // 忽略加载错误，使用默认值
		applyEnv(config)
		config.ApplyDefaults()
	}
	return config
}

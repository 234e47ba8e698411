package constants

const (
	REDIS_TIMEOUT         = 1    // 历史缓存过期时间（分钟）
	MESSAGE_MAX_LENGTH    = 4000 // 单条消息最大字符数（按 rune 计）
	IDENTITY_MAX_LENGTH   = 64   // 身份标识最大长度
	TYPING_TIMEOUT_MILLIS = 1500 // 输入状态自动停止的防抖时长（毫秒）
	CACHE_WORKER_NUM      = 15   // Redis 缓存 Worker 数量
	CACHE_TASK_BUFFER     = 3000 // Redis 缓存任务缓冲区大小
)

// Package message 实现消息持久化网关
// 负责消息校验、写入、历史查询、已读标记，以及可选的 Redis 历史缓存
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"mentor_chat_server/internal/dao/gormdb"
	myredis "mentor_chat_server/internal/dao/redis"
	"mentor_chat_server/internal/dto/respond"
	"mentor_chat_server/internal/infrastructure/metrics"
	"mentor_chat_server/internal/model"
	"mentor_chat_server/pkg/chatproto"
	"mentor_chat_server/pkg/constants"
	"mentor_chat_server/pkg/errorx"
	"mentor_chat_server/pkg/util/snowflake"
)

// identityRule 身份标识的校验规则，空白字符另行检查
var identityRule = fmt.Sprintf("required,max=%d", constants.IDENTITY_MAX_LENGTH)

// messageService 消息业务逻辑实现
type messageService struct {
	repo     gormdb.MessageRepository
	cache    myredis.AsyncCacheService // 可为 nil，表示不启用缓存
	validate *validator.Validate
	now      func() time.Time
}

// NewMessageService 构造函数
// cache 传 nil 时所有读写直接走数据库
func NewMessageService(repos *gormdb.Repositories, cache myredis.AsyncCacheService) *messageService {
	return &messageService{
		repo:     repos.Message,
		cache:    cache,
		validate: validator.New(),
		now:      time.Now,
	}
}

// AppendMessage 校验并持久化一条消息
// 校验失败返回 CodeInvalidParam，写库失败返回 CodeDBError；成功后消息已可被 FetchHistory 读到
// 调用方不应在超时后盲目重试，否则可能产生重复消息
func (m *messageService) AppendMessage(ctx context.Context, senderId, receiverId, text string) (*chatproto.Message, error) {
	if err := m.checkIdentity("sender_id", senderId); err != nil {
		return nil, err
	}
	if err := m.checkIdentity("receiver_id", receiverId); err != nil {
		return nil, err
	}
	if senderId == receiverId {
		return nil, errorx.New(errorx.CodeInvalidParam, "不能给自己发送消息")
	}
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
	}
	if utf8.RuneCountInString(content) > constants.MESSAGE_MAX_LENGTH {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "消息内容不能超过 %d 个字符", constants.MESSAGE_MAX_LENGTH)
	}

	message := model.Message{
		// 截断到毫秒：mysql 的 datetime(3) 只保存到毫秒，实时推送与历史记录必须一致
		Model:     gorm.Model{CreatedAt: m.now().Truncate(time.Millisecond)},
		Uuid:      snowflake.GenerateID(),
		SendId:    senderId,
		ReceiveId: receiverId,
		Content:   content,
	}
	if err := m.repo.Create(ctx, &message); err != nil {
		metrics.PersistenceFailures.WithLabelValues("append").Inc()
		zap.L().Error("persist message failed",
			zap.String("send_id", senderId),
			zap.String("receive_id", receiverId),
			zap.Error(err))
		return nil, err
	}
	metrics.MessagesPersisted.Inc()

	// 缓存失效必须在返回前完成，保证写后读一致
	m.invalidateHistory(ctx, senderId, receiverId)

	out := toProto(message)
	return &out, nil
}

// FetchHistory 获取两人之间的全部消息，按 (created_at, id) 升序
func (m *messageService) FetchHistory(ctx context.Context, userOneId, userTwoId string) ([]chatproto.Message, error) {
	if err := m.checkIdentity("user_id", userOneId); err != nil {
		return nil, err
	}
	if err := m.checkIdentity("other_id", userTwoId); err != nil {
		return nil, err
	}

	cacheKey := m.historyCacheKey(ctx, userOneId, userTwoId)
	if cacheKey != "" {
		if cached, ok := m.readCachedHistory(ctx, cacheKey); ok {
			return cached, nil
		}
	}

	rows, err := m.repo.FindByUserIds(ctx, userOneId, userTwoId)
	if err != nil {
		zap.L().Error("find messages by user ids error", zap.Error(err))
		return nil, err
	}
	history := make([]chatproto.Message, 0, len(rows))
	for _, row := range rows {
		history = append(history, toProto(row))
	}

	if cacheKey != "" {
		m.fillHistoryCache(cacheKey, history)
	}
	return history, nil
}

// MarkSeen 将 other 发给 reader 的未读消息标记为已读
// 返回本次更新的行数和使用的已读时间；重复调用更新 0 行，不改写已有的已读时间
func (m *messageService) MarkSeen(ctx context.Context, readerId, otherId string) (int64, time.Time, error) {
	if err := m.checkIdentity("reader_id", readerId); err != nil {
		return 0, time.Time{}, err
	}
	if err := m.checkIdentity("other_id", otherId); err != nil {
		return 0, time.Time{}, err
	}
	if readerId == otherId {
		return 0, time.Time{}, errorx.New(errorx.CodeInvalidParam, "不能标记自己的会话")
	}

	at := m.now()
	updated, err := m.repo.MarkSeen(ctx, readerId, otherId, at)
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues("mark_seen").Inc()
		zap.L().Error("mark seen failed", zap.String("reader", readerId), zap.String("other", otherId), zap.Error(err))
		return 0, time.Time{}, err
	}
	if updated > 0 {
		m.invalidateHistory(ctx, readerId, otherId)
	}
	return updated, at, nil
}

// ListConversations 获取用户的会话列表（每个对端的最后一条消息和未读数）
func (m *messageService) ListConversations(ctx context.Context, userId string) ([]respond.ConversationRespond, error) {
	if err := m.checkIdentity("user_id", userId); err != nil {
		return nil, err
	}
	summaries, err := m.repo.FindConversations(ctx, userId)
	if err != nil {
		zap.L().Error("find conversations error", zap.String("user", userId), zap.Error(err))
		return nil, err
	}
	rsp := make([]respond.ConversationRespond, 0, len(summaries))
	for _, s := range summaries {
		rsp = append(rsp, respond.ConversationRespond{
			OtherUserId: s.OtherId,
			LastMessage: toProto(s.LastMessage),
			Unread:      s.Unread,
		})
	}
	return rsp, nil
}

// checkIdentity 校验身份标识格式：非空、不超长、不含空白字符
func (m *messageService) checkIdentity(field, id string) error {
	if err := m.validate.Var(id, identityRule); err != nil {
		return errorx.Wrapf(err, errorx.CodeInvalidParam, "%s 格式错误", field)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return errorx.Newf(errorx.CodeInvalidParam, "%s 不能包含空白字符", field)
	}
	return nil
}

// ==================== 历史缓存 ====================
//
// 每对用户维护一个代数计数器 message_gen:<pair>，历史列表缓存在 message_list:<pair>:<gen> 下
// 写入 / 标记已读时同步递增代数，旧代数下的缓存（包括并发回填的）自然失效

// pairKey 对无序二元组编码，带长度前缀避免身份中的分隔符造成歧义
func pairKey(a, b string) string {
	one, two := model.PairOf(a, b)
	return strconv.Itoa(len(one)) + ":" + one + ":" + two
}

func genKey(a, b string) string {
	return "message_gen:" + pairKey(a, b)
}

func listKeyPattern(a, b string) string {
	return "message_list:" + pairKey(a, b) + ":*"
}

// historyCacheKey 读取当前代数并拼出缓存 key；缓存不可用时返回空串
func (m *messageService) historyCacheKey(ctx context.Context, a, b string) string {
	if m.cache == nil {
		return ""
	}
	gen, err := m.cache.Get(ctx, genKey(a, b))
	if err != nil {
		zap.L().Warn("redis get history generation failed, reading database", zap.Error(err))
		return ""
	}
	if gen == "" {
		gen = "0"
	}
	return "message_list:" + pairKey(a, b) + ":" + gen
}

func (m *messageService) readCachedHistory(ctx context.Context, key string) ([]chatproto.Message, bool) {
	raw, err := m.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("redis get history failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if raw == "" {
		return nil, false
	}
	var history []chatproto.Message
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		zap.L().Error("json unmarshal cache error", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return history, true
}

// fillHistoryCache 异步回填缓存
func (m *messageService) fillHistoryCache(key string, history []chatproto.Message) {
	m.cache.SubmitTask(func() {
		data, err := json.Marshal(history)
		if err != nil {
			zap.L().Error("json marshal error", zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := m.cache.Set(ctx, key, string(data), time.Duration(constants.REDIS_TIMEOUT)*time.Minute); err != nil {
			zap.L().Warn("redis set history failed", zap.String("key", key), zap.Error(err))
		}
	})
}

// invalidateHistory 递增代数；失败时退化为按模式删除该对用户的所有缓存
func (m *messageService) invalidateHistory(ctx context.Context, a, b string) {
	if m.cache == nil {
		return
	}
	_, err := m.cache.Incr(ctx, genKey(a, b))
	if err == nil {
		return
	}
	zap.L().Warn("redis bump history generation failed", zap.Error(err))
	if err := m.cache.DeleteByPattern(ctx, listKeyPattern(a, b)); err != nil {
		zap.L().Error("redis delete history cache failed", zap.Error(err))
	}
}

// toProto 数据库模型 -> 线上消息结构
func toProto(m model.Message) chatproto.Message {
	out := chatproto.Message{
		ID:         strconv.FormatInt(m.Uuid, 10),
		SenderID:   m.SendId,
		ReceiverID: m.ReceiveId,
		Text:       m.Content,
		CreatedAt:  m.CreatedAt,
	}
	if m.ReadAt.Valid {
		readAt := m.ReadAt.Time
		out.ReadAt = &readAt
	}
	return out
}

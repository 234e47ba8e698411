package middleware

import (
	"net/http"
	"strings"

	"mentor_chat_server/pkg/errorx"
	"mentor_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey Handler 通过 c.GetString(ContextUserIDKey) 获取已认证身份
const ContextUserIDKey = "user_id"

// JWTAuth JWT 认证中间件
// 验证 Access Token 并将用户信息存入上下文
// 浏览器的 WebSocket 握手无法携带自定义 Header，因此同时接受 ?token= 查询参数
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从 Header 获取 Token，缺失时退回查询参数
		tokenString, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "请先登录")
			return
		}
		if tokenString == "" {
			abortUnauthorized(c, "Token 格式错误，请使用 Bearer Token")
			return
		}

		// 2. 验证 Token
		claims, err := jwt.ParseToken(tokenString)
		if err != nil {
			abortUnauthorized(c, "Token 已过期或无效，请重新登录")
			return
		}

		// 3. 验证是否为 Access Token
		if claims.Subject != jwt.SubjectAccessToken {
			abortUnauthorized(c, "请使用 Access Token 访问此接口")
			return
		}
		if claims.UserID == "" {
			abortUnauthorized(c, "Token 缺少用户身份")
			return
		}

		// 4. 将用户信息存入上下文，供后续 Handler 使用
		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}

// bearerToken 提取令牌；第二个返回值表示请求是否携带了任何凭证
// 携带了格式错误的 Authorization 时返回 ("", true)
func bearerToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", true
		}
		return strings.TrimSpace(parts[1]), true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code": errorx.CodeUnauthorized,
		"msg":  msg,
	})
}

package handler

import (
	"errors"
	"net/http"

	"mentor_chat_server/internal/infrastructure/middleware"
	"mentor_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Envelope 所有 REST 接口的响应信封
// 业务错误同样返回 HTTP 200，由 code 区分；只有鉴权失败和健康检查降级使用非 200 状态码
type Envelope struct {
	Code int `json:"code"`           // 业务状态码，成功为 1000
	Msg  any `json:"msg"`            // 提示信息；参数校验失败时为 字段 -> 提示
	Data any `json:"data,omitempty"` // 数据
}

func reply(c *gin.Context, status, code int, msg, data any) {
	c.JSON(status, Envelope{Code: code, Msg: msg, Data: data})
}

// HandleSuccess 返回成功响应
func HandleSuccess(c *gin.Context, data any) {
	reply(c, http.StatusOK, errorx.CodeSuccess, "success", data)
}

// HandleError 业务错误原样返回错误码和消息；其他错误记录日志后统一返回服务繁忙
//
//	if err := svc.DoSomething(); err != nil {
//	    HandleError(c, err)
//	    return
//	}
func HandleError(c *gin.Context, err error) {
	var codeErr *errorx.CodeError
	if !errors.As(err, &codeErr) {
		zap.L().Error("system error",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("user_id", c.GetString(middleware.ContextUserIDKey)),
			zap.Error(err),
		)
		reply(c, http.StatusOK, errorx.ErrServerBusy.Code, errorx.ErrServerBusy.Msg, nil)
		return
	}
	// 持久化 / 缓存故障已在 service 层记录详细日志，这里只保留请求维度的信息
	if codeErr.Code == errorx.CodeDBError || codeErr.Code == errorx.CodeCacheError {
		zap.L().Warn("request failed on storage",
			zap.String("path", c.FullPath()),
			zap.Int("code", codeErr.Code))
	}
	reply(c, http.StatusOK, codeErr.Code, codeErr.Msg, nil)
}

// HandleParamError 处理参数绑定错误
// validator 的校验错误翻译为 字段 -> 提示；JSON 格式错误等返回通用的参数错误
func HandleParamError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		reply(c, http.StatusOK, errorx.ErrInvalidParam.Code, RemoveTopStruct(validationErrs.Translate(Trans)), nil)
		return
	}
	zap.L().Info("param bind error", zap.String("path", c.FullPath()), zap.Error(err))
	reply(c, http.StatusOK, errorx.ErrInvalidParam.Code, errorx.ErrInvalidParam.Msg, nil)
}

// Package errorx 业务错误码
// HTTP 信封和 WebSocket error 帧中的 code 都来自这里
package errorx

import (
	"errors"
	"fmt"
)

// 业务状态码
const (
	CodeSuccess         = 1000 // 成功
	CodeInvalidParam    = 1001 // 参数 / 消息校验失败：空文本、超长、给自己发消息、非法身份标识
	CodeServerBusy      = 1005 // 服务繁忙，未分类的系统错误统一映射到这里
	CodeUnauthorized    = 1006 // 认证失败，包括实时通道 join 身份不匹配
	CodeNotFound        = 1008 // 资源不存在
	CodeDBError         = 1010 // 数据库错误（消息持久化失败）
	CodeCacheError      = 1011 // 缓存错误，只记录日志，不返回给调用方
	CodeTooManyRequests = 1012 // 请求过于频繁
)

// CodeError 带业务错误码的错误，可包装底层错误，支持 errors.Is / errors.As
type CodeError struct {
	Code  int
	Msg   string
	cause error
}

func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

func (e *CodeError) Unwrap() error {
	return e.cause
}

func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误
// 用法: errorx.Wrap(err, CodeDBError, "写入消息失败")
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg, cause: err}
}

// Wrapf 包装底层错误，支持格式化消息
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{Code: code, Msg: fmt.Sprintf(format, args...), cause: err}
}

// 预定义错误，可直接返回
var (
	ErrInvalidParam    = New(CodeInvalidParam, "请求参数错误")
	ErrServerBusy      = New(CodeServerBusy, "服务繁忙")
	ErrTooManyRequests = New(CodeTooManyRequests, "请求过于频繁，请稍后再试")
)

// Public 提取可以展示给调用方的 code 和消息
// 非 CodeError 的错误不暴露细节，统一返回服务繁忙
func Public(err error) (int, string) {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code, codeErr.Msg
	}
	return ErrServerBusy.Code, ErrServerBusy.Msg
}

// Is 错误链中是否存在指定业务码的 CodeError
func Is(err error, code int) bool {
	var codeErr *CodeError
	return errors.As(err, &codeErr) && codeErr.Code == code
}

func IsValidation(err error) bool {
	return Is(err, CodeInvalidParam)
}

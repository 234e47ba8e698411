// Package internal 数据访问层内部共享的辅助函数
package internal

import (
	"errors"

	"mentor_chat_server/pkg/errorx"

	"gorm.io/gorm"
)

// WrapDBErrorf 把 gorm 错误转换为业务错误
//   - ErrRecordNotFound -> CodeNotFound
//   - 其他错误 -> CodeDBError，对上层即持久化失败
func WrapDBErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	code := errorx.CodeDBError
	if errors.Is(err, gorm.ErrRecordNotFound) {
		code = errorx.CodeNotFound
	}
	return errorx.Wrapf(err, code, format, args...)
}

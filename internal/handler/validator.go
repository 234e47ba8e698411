package handler

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Trans 定义全局翻译器 (导出供 response.go 使用)
var Trans ut.Translator

// identityTag 身份标识校验：不含空白字符，长度由 max 另行限制
const identityTag = "identity"

// identityMessages 自定义规则的提示语
var identityMessages = map[string]string{
	"zh": "{0}不能包含空白字符",
	"en": "{0} must not contain whitespace",
}

// InitTrans 初始化翻译器并注册自定义校验规则
// locale 参数指定需要初始化的语言，例如 "zh" 或 "en"，未知语言按英文处理
func InitTrans(locale string) (err error) {
	// 在 Gin v1.9+ 中 binding.Validator 可能为 nil，需要先初始化
	if binding.Validator == nil {
		binding.Validator = &defaultValidator{validator: validator.New()}
	}

	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}

	// 报错信息使用 json / uri tag 作为字段名，与前端传参保持一致
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "uri"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})
	if err = v.RegisterValidation(identityTag, validateIdentity); err != nil {
		return err
	}

	// 英文为 fallback
	zhT, enT := zh.New(), en.New()
	uni := ut.New(enT, zhT, enT)
	Trans, ok = uni.GetTranslator(locale)
	if !ok {
		return fmt.Errorf("uni.GetTranslator(%s) failed", locale)
	}

	switch locale {
	case "zh":
		err = zh_translations.RegisterDefaultTranslations(v, Trans)
	default:
		locale = "en"
		err = en_translations.RegisterDefaultTranslations(v, Trans)
	}
	if err != nil {
		return err
	}
	return v.RegisterTranslation(identityTag, Trans,
		func(t ut.Translator) error {
			return t.Add(identityTag, identityMessages[locale], true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(identityTag, fe.Field())
			return msg
		})
}

func validateIdentity(fl validator.FieldLevel) bool {
	return strings.IndexFunc(fl.Field().String(), unicode.IsSpace) < 0
}

// RemoveTopStruct 去除提示信息中的结构体名称，如 "SendMessageRequest.text" -> "text"
func RemoveTopStruct(fields map[string]string) map[string]string {
	res := make(map[string]string)
	for field, err := range fields {
		res[field[strings.Index(field, ".")+1:]] = err
	}
	return res
}

// defaultValidator 实现 binding.StructValidator，用于 binding.Validator 为 nil 的情况
type defaultValidator struct {
	validator *validator.Validate
}

func (v *defaultValidator) ValidateStruct(obj interface{}) error {
	return v.validator.Struct(obj)
}

func (v *defaultValidator) Engine() interface{} {
	return v.validator
}

package validator

import (
	"regexp"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// IsMobile 是一个自定义的校验函数，用于验证手机号格式
func IsMobile(fl validator.FieldLevel) bool {
	mobile := fl.Field().String()
	re := regexp.MustCompile(`^1[3-9]\d{9}$`)
	return re.MatchString(mobile)
}

// IsNoteContent validates the 1..1024 limit in runes. The payloads are mostly
// Japanese, so byte length would reject valid content.
func IsNoteContent(fl validator.FieldLevel) bool {
	n := utf8.RuneCountInString(fl.Field().String())
	return n >= 1 && n <= 1024
}

// Package validation はgo-playground/validatorによるリクエストの検証を提供する。
//
// 検証器はプロセス内で1つだけ生成し、構造体情報のキャッシュを共有する。
// エラーのフィールド名はjsonタグの名前で返す。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError は1つのフィールドの検証エラー。
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error は検証エラーの集合。
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "入力内容が不正です"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// Get は共有の検証器を返す。
func Get() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
		// 空白のみの文字列を必須入力として認めない
		if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		}); err != nil {
			panic(fmt.Sprintf("register notblank: %v", err))
		}
		validate = v
	})
	return validate
}

// Struct は構造体を検証する。問題が無ければnilを返す。
func Struct(s any) *Error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &Error{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &Error{Fields: make([]FieldError, len(fieldErrs))}
	for i, fe := range fieldErrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return out
}

func translate(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%sは必須です", field)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%sは%s文字以内で入力してください", field, param)
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%sは%s件以内で指定してください", field, param)
		}
		return fmt.Sprintf("%sは%s以下で指定してください", field, param)
	case "min", "gte":
		return fmt.Sprintf("%sは%s以上で指定してください", field, param)
	case "lte":
		return fmt.Sprintf("%sは%s以下で指定してください", field, param)
	case "url", "http_url":
		return fmt.Sprintf("%sは有効なURLで指定してください", field)
	case "oneof":
		return fmt.Sprintf("%sは次のいずれかで指定してください: %s", field, param)
	default:
		return fmt.Sprintf("%sが不正です（%s）", field, fe.Tag())
	}
}

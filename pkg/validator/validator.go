package validator

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	zhTranslations "github.com/go-playground/validator/v10/translations/zh"
)

// gin validator的翻译器，错误信息本地化

var (
	trans ut.Translator
	once  sync.Once
)

// LazyInitGinValidator 替换gin默认validator的翻译器，language: zh / en
func LazyInitGinValidator(language string) {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		zhT := zh.New()
		enT := en.New()
		uni := ut.New(enT, zhT, enT)

		var found bool
		trans, found = uni.GetTranslator(language)
		if !found {
			trans, _ = uni.GetTranslator("en")
		}

		switch language {
		case "zh":
			_ = zhTranslations.RegisterDefaultTranslations(v, trans)
		default:
			_ = enTranslations.RegisterDefaultTranslations(v, trans)
		}
	})
}

// Translate 翻译校验错误，非校验错误原样返回
func Translate(err error) string {
	if err == nil {
		return ""
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || trans == nil {
		return err.Error()
	}
	for _, e := range errs {
		return e.Translate(trans)
	}
	return err.Error()
}

package handlers

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

const (
	notBlankTag  = "notblank"
	notBlankText = "{0} cannot be blank"
	requiredText = "{0} is required"
)

// Validator adapts go-playground/validator to echo.Validator
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func NewValidator() *Validator {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")

	v := &Validator{validate: validator.New(), translator: translator}
	_ = en_translations.RegisterDefaultTranslations(v.validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.validate.RegisterValidation(notBlankTag, notBlankValidation)
	v.registerTranslation(notBlankTag, notBlankText, false)
	v.registerTranslation("required", requiredText, true)
	return v
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func (v *Validator) Translator() ut.Translator {
	return v.translator
}

func (v *Validator) registerTranslation(tag, text string, override bool) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

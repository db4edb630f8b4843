// Package validation builds the request validator shared by every service.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/noah-isme/school-api/pkg/config"
)

var (
	cinPattern      = regexp.MustCompile(`^[A-Za-z]{2}\d{6}$`)
	phonePattern    = regexp.MustCompile(`^(05|06|07)\d{8}$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

	translator ut.Translator
)

func init() {
	locale := en.New()
	translator, _ = ut.New(locale, locale).GetTranslator("en")
}

// DefaultPolicy mirrors the configuration defaults.
var DefaultPolicy = config.PolicyConfig{UsernameMin: 3, UsernameMax: 50, PasswordMin: 8}

// New returns a validator with the custom tags used across request models:
// cin, phone, username and strongpassword. Field names in errors follow json tags.
func New(policy config.PolicyConfig) *validator.Validate {
	if policy.UsernameMin <= 0 {
		policy.UsernameMin = DefaultPolicy.UsernameMin
	}
	if policy.UsernameMax < policy.UsernameMin {
		policy.UsernameMax = DefaultPolicy.UsernameMax
	}
	if policy.PasswordMin <= 0 {
		policy.PasswordMin = DefaultPolicy.PasswordMin
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = entranslations.RegisterDefaultTranslations(v, translator)

	register(v, "cin", "{0} must be 2 letters followed by 6 digits", func(fl validator.FieldLevel) bool {
		return cinPattern.MatchString(fl.Field().String())
	})
	register(v, "phone", "{0} must start with 05, 06 or 07 followed by 8 digits", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	register(v, "username",
		fmt.Sprintf("{0} must be %d to %d letters, digits, dots, dashes or underscores", policy.UsernameMin, policy.UsernameMax),
		func(fl validator.FieldLevel) bool {
			value := fl.Field().String()
			n := utf8.RuneCountInString(value)
			return n >= policy.UsernameMin && n <= policy.UsernameMax && usernamePattern.MatchString(value)
		})
	register(v, "strongpassword",
		fmt.Sprintf("{0} must have at least %d characters with an uppercase letter, a lowercase letter and a digit", policy.PasswordMin),
		func(fl validator.FieldLevel) bool {
			return StrongPassword(fl.Field().String(), policy.PasswordMin)
		})
	return v
}

// StrongPassword reports whether password is long enough and mixes cases and digits.
func StrongPassword(password string, minLength int) bool {
	if utf8.RuneCountInString(password) < minLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// Fields converts validator errors into a field to message map. It returns nil
// for errors that did not come from the validator.
func Fields(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Translate(translator)
	}
	return out
}

func register(v *validator.Validate, tag, message string, fn validator.Func) {
	_ = v.RegisterValidation(tag, fn)
	_ = v.RegisterTranslation(tag, translator,
		func(t ut.Translator) error { return t.Add(tag, message, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(tag, fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}

package util

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	slugRegex  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
	phoneRegex = regexp.MustCompile(`^\+?[0-9 ().-]{8,20}$`)
	nonDigit   = regexp.MustCompile(`[^0-9]`)
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared request validator. Besides the built-in tags it knows
// "slug" (parcel ids and document types) and "phone".
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
			return IsValidSlug(fl.Field().String())
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phoneRegex.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// IsValidSlug accepts identifiers that are safe as path segments.
func IsValidSlug(s string) bool {
	return slugRegex.MatchString(s)
}

// PhoneDigits keeps only digits, the form wa.me links expect.
func PhoneDigits(phone string) string {
	return nonDigit.ReplaceAllString(strings.TrimSpace(phone), "")
}

// Package validator wraps go-playground/validator with the rules used by the
// configuration loader.
package validator

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	playground "github.com/go-playground/validator/v10"

	"github.com/sorathiyaom089/Student-Management-System/pkg/security"
)

// Custom validation tags.
const (
	ExtensionTokenTag = "ext_token"
	HashAlgoTag       = "hash_algo"
)

// extensionRegexp accepts lowercase letters and digits, 1-16 characters.
var extensionRegexp = regexp.MustCompile(`^[a-z0-9]{1,16}$`)

var (
	once     sync.Once
	validate *playground.Validate
)

// Instance returns the shared validator with custom rules registered.
// Field names in errors follow the yaml tag of each field.
func Instance() *playground.Validate {
	once.Do(func() {
		validate = playground.New(playground.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		_ = validate.RegisterValidation(ExtensionTokenTag, func(fl playground.FieldLevel) bool {
			return ValidateExtension(fl.Field().String())
		})
		_ = validate.RegisterValidation(HashAlgoTag, func(fl playground.FieldLevel) bool {
			return security.IsSupported(fl.Field().String())
		})
	})
	return validate
}

// Struct validates s with the shared validator.
func Struct(s any) error {
	return Instance().Struct(s)
}

// ValidateExtension checks if ext is a valid allowlist token: lowercase
// letters and digits only, no leading dot.
func ValidateExtension(ext string) bool {
	return extensionRegexp.MatchString(ext)
}

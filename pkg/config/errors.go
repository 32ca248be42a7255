package config

import (
	"errors"
	"fmt"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// Error reports a configuration key that is missing or fails validation.
// It is fatal to process startup.
type Error struct {
	Key    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Key != "" {
		b.WriteString(": ")
		b.WriteString(e.Key)
	}
	b.WriteString(": ")
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsConfigError reports whether err is (or wraps) a configuration error.
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}

func newValidationError(err error) error {
	var verrs playground.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &Error{Reason: "invalid configuration", Err: err}
	}
	fe := verrs[0]
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	return &Error{Key: key, Reason: describe(fe)}
}

func describe(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "value is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "unique":
		return "must not contain duplicates"
	case "url":
		return "must be a valid URL"
	case "timezone":
		return "unknown timezone"
	case "ext_token":
		return "must be a lowercase alphanumeric extension"
	case "hash_algo":
		return "unsupported hash algorithm"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

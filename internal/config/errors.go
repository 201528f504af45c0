package config

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
)

// Config error codes (E200-E209)
const (
	ErrCodeNotFound        = "E200" // config file missing
	ErrCodeLoadFailed      = "E201" // CUE parse or load failure
	ErrCodeSchema          = "E202" // value does not satisfy #Config
	ErrCodeInvalidChannel  = "E203" // unknown, empty or duplicate channel
	ErrCodeInvalidDuration = "E204" // unparsable or non-positive duration
)

// Error is a configuration error, with a CUE source position when known.
type Error struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	field := ""
	if e.Field != "" {
		field = e.Field + ": "
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s%s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, field, e.Message)
	}
	return fmt.Sprintf("[%s] %s%s", e.Code, field, e.Message)
}

// IsNotFound reports whether err is a missing config file error.
func IsNotFound(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == ErrCodeNotFound
}

package emit

import (
	"errors"
	"fmt"
)

// ErrEmit matches every *EmitError with errors.Is.
var ErrEmit = errors.New("emit error")

// Error codes for shapes that cannot be rendered.
const (
	ErrCodeUnsupported = "ERR_EMIT_UNSUPPORTED"
	ErrCodeCollision   = "ERR_EMIT_COLLISION"
	ErrCodeFormat      = "ERR_EMIT_FORMAT"
)

// EmitError reports a valid schema shape that cannot be rendered as Go. It
// aborts emission for the affected contract only.
type EmitError struct {
	Contract string
	// Decl names the declaration being rendered.
	Decl    string
	Code    string
	Message string
	Err     error
}

func (e *EmitError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Decl != "" {
		msg = fmt.Sprintf("%s (in %s)", msg, e.Decl)
	}
	if e.Contract != "" {
		msg = e.Contract + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EmitError) Unwrap() error { return e.Err }

func (e *EmitError) Is(target error) bool { return target == ErrEmit }

func emitErr(code, decl, format string, args ...any) *EmitError {
	return &EmitError{Code: code, Decl: decl, Message: fmt.Sprintf(format, args...)}
}

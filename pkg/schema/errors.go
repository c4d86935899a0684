package schema

import (
	"errors"
	"fmt"
)

// ErrSchema matches every *SchemaError with errors.Is.
var ErrSchema = errors.New("schema error")

// Deterministic error codes for rejected schemas.
const (
	ErrCodeRead     = "ERR_SCHEMA_READ"
	ErrCodeInvalid  = "ERR_SCHEMA_INVALID"
	ErrCodeUnion    = "ERR_SCHEMA_UNION"
	ErrCodeRef      = "ERR_SCHEMA_REF"
	ErrCodeConflict = "ERR_SCHEMA_CONFLICT"
	ErrCodeIDL      = "ERR_SCHEMA_IDL"
	ErrCodeMissing  = "ERR_SCHEMA_MISSING"
)

// SchemaError reports a structurally invalid schema. It aborts ingestion of
// the affected contract only.
type SchemaError struct {
	Contract string
	Path     string
	Code     string
	Message  string
	Err      error
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (at %s)", msg, e.Path)
	}
	if e.Contract != "" {
		msg = e.Contract + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSchema) hold for every SchemaError.
func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

func schemaErr(code, path, format string, args ...any) *SchemaError {
	return &SchemaError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}

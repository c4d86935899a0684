package wasmbind

import (
	"bytes"
	"encoding/json"
)

var jsonNull = []byte("null")

// Optional holds a field that may be absent, explicitly null, or set.
// The zero value is absent; combined with the `omitzero` json option an
// absent field is elided while Null serializes as null.
type Optional[T any] struct {
	value T
	set   bool
	null  bool
}

// Some returns a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, set: true}
}

// Null returns an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true, null: true}
}

// IsZero reports whether the field is absent. encoding/json consults it for
// `omitzero`.
func (o Optional[T]) IsZero() bool {
	return !o.set
}

// IsNull reports whether the field is an explicit null.
func (o Optional[T]) IsNull() bool {
	return o.set && o.null
}

// Get returns the value and whether one is present.
func (o Optional[T]) Get() (T, bool) {
	if !o.set || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// OrElse returns the value, or def when absent or null.
func (o Optional[T]) OrElse(def T) T {
	if v, ok := o.Get(); ok {
		return v
	}
	return def
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return jsonNull, nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}

package wasmbind

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Variant is implemented by every member of a generated tagged union.
type Variant interface {
	// VariantTag returns the snake_case key the variant is serialized under.
	VariantTag() string
}

// MarshalTagged encodes body under a single key: {"<tag>": <body>}.
func MarshalTagged(tag string, body any) ([]byte, error) {
	key, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("wasmbind: encode variant %s: %w", tag, err)
	}
	var buf bytes.Buffer
	buf.Grow(len(key) + len(payload) + 3)
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(payload)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalUnit encodes a variant without payload as a bare string.
func MarshalUnit(tag string) ([]byte, error) {
	return json.Marshal(tag)
}

// SplitVariant is the inverse of MarshalTagged and MarshalUnit: it returns
// the tag and the raw payload. Unit variants return a nil payload.
func SplitVariant(data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", nil, fmt.Errorf("wasmbind: empty union document")
	}
	switch data[0] {
	case '"':
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, fmt.Errorf("wasmbind: decode unit variant: %w", err)
		}
		return tag, nil, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return "", nil, fmt.Errorf("wasmbind: decode variant: %w", err)
		}
		if len(obj) != 1 {
			return "", nil, fmt.Errorf("wasmbind: union object must have exactly one key, got %d", len(obj))
		}
		for tag, body := range obj {
			return tag, body, nil
		}
	}
	return "", nil, fmt.Errorf("wasmbind: union must be an object or string, got %q", data[:1])
}

// UnmarshalBody decodes a variant payload. A missing payload, as sent for a
// unit-encoded variant, leaves out untouched.
func UnmarshalBody(body json.RawMessage, out any) error {
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("wasmbind: decode variant payload: %w", err)
	}
	return nil
}

// UnknownVariant reports a tag the generated union does not declare.
func UnknownVariant(union, tag string) error {
	return fmt.Errorf("wasmbind: unknown %s variant %q", union, tag)
}

// UnexpectedVariant reports a union wrapper holding a value of a type that
// is not one of its variants.
func UnexpectedVariant(union string, v any) error {
	return fmt.Errorf("wasmbind: %T is not a %s variant", v, union)
}

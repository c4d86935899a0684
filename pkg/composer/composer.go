// Package composer builds contract messages from an ingested schema at run
// time, without generated code. Method names and parameter keys may be
// given in camelCase or in the wire's snake_case.
package composer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/permissionlessweb/bs-accounts/pkg/naming"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
	"github.com/permissionlessweb/bs-accounts/pkg/wasmbind"
)

var (
	// ErrNoMessage is returned when the contract declares no message of the
	// requested kind.
	ErrNoMessage = errors.New("composer: contract has no such message")
	// ErrUnknownMethod is returned for a method that matches no variant.
	ErrUnknownMethod = errors.New("composer: unknown method")
	// ErrUnknownField is returned for a parameter the variant does not declare.
	ErrUnknownField = errors.New("composer: unknown field")
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("composer: missing required field")
	// ErrInvalidPayload is returned when the payload fails schema validation.
	ErrInvalidPayload = errors.New("composer: payload does not match schema")
)

// Params holds message parameters in the order they were given.
type Params = orderedmap.OrderedMap[string, json.RawMessage]

// ParseParams decodes a JSON object. Empty input and null yield no
// parameters.
func ParseParams(data []byte) (*Params, error) {
	p := orderedmap.New[string, json.RawMessage]()
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return p, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("composer: parameters must be a JSON object")
	}
	if err := json.Unmarshal(trimmed, p); err != nil {
		return nil, fmt.Errorf("composer: decode parameters: %w", err)
	}
	return p, nil
}

// Composer builds messages for one contract instance.
type Composer struct {
	contract *schema.Contract
	sender   string
	address  string
}

// New binds a composer to a contract model, a sender and a contract address.
func New(c *schema.Contract, sender, contractAddress string) *Composer {
	return &Composer{contract: c, sender: sender, address: contractAddress}
}

// Execute builds an execute envelope for method. Nil funds become an
// empty list.
func (c *Composer) Execute(method string, params *Params, funds []wasmbind.Coin) (*wasmbind.ExecuteEnvelope, error) {
	payload, err := c.Payload(schema.KindExecute, method, params)
	if err != nil {
		return nil, err
	}
	return wasmbind.NewExecute(c.sender, c.address, payload, funds)
}

// Query builds a smart query for method.
func (c *Composer) Query(method string, params *Params) (*wasmbind.SmartQuery, error) {
	payload, err := c.Payload(schema.KindQuery, method, params)
	if err != nil {
		return nil, err
	}
	return wasmbind.NewSmartQuery(c.address, payload)
}

// Payload builds the message body of kind. For tagged unions method
// selects the variant; record messages ignore it. Fields are written in
// declared order and the result is validated against the message schema.
func (c *Composer) Payload(kind schema.Kind, method string, params *Params) (json.RawMessage, error) {
	shape := c.contract.Message(kind)
	if shape == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMessage, kind)
	}
	if params == nil {
		params = orderedmap.New[string, json.RawMessage]()
	}

	var doc any
	switch {
	case shape.Union:
		v, err := resolve(shape, method)
		if err != nil {
			return nil, err
		}
		body, err := variantBody(shape.Name+"."+v.Tag, v, params)
		if err != nil {
			return nil, err
		}
		if body == nil {
			doc = v.Tag
			break
		}
		wrapped := orderedmap.New[string, any]()
		wrapped.Set(v.Tag, body)
		doc = wrapped
	default:
		body, err := fields(shape.Name, shape.Fields, params)
		if err != nil {
			return nil, err
		}
		doc = body
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("composer: encode payload: %w", err)
	}
	if err := validate(shape.Validator, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// resolve finds the variant named by method: the wire tag itself, its
// camelCase form, or its exported Go method name.
func resolve(shape *schema.MessageShape, method string) (*schema.Variant, error) {
	if v, ok := shape.Variant(method); ok {
		return v, nil
	}
	if v, ok := shape.Variant(naming.Snake(method)); ok {
		return v, nil
	}
	for i := range shape.Variants {
		v := &shape.Variants[i]
		if naming.Camel(v.Tag) == method || naming.Exported(v.Tag) == method {
			return v, nil
		}
	}
	return nil, fmt.Errorf("%w %q for %s (have %s)", ErrUnknownMethod, method, shape.Name, strings.Join(Methods(shape), ", "))
}

// variantBody returns the value under the variant's tag, or nil for unit
// variants. A newtype payload is given whole under the key "value" or, for
// object payloads, as the params themselves.
func variantBody(owner string, v *schema.Variant, params *Params) (any, error) {
	switch v.Form {
	case schema.FormUnit:
		if params.Len() > 0 {
			return nil, fmt.Errorf("%w %q in %s: variant takes no parameters", ErrUnknownField, params.Oldest().Key, owner)
		}
		return nil, nil
	case schema.FormNewtype:
		if raw, ok := params.Get("value"); ok && params.Len() == 1 {
			return raw, nil
		}
		if params.Len() == 0 {
			return nil, fmt.Errorf("%w value in %s", ErrMissingField, owner)
		}
		return params, nil
	default:
		return fields(owner, v.Fields, params)
	}
}

// fields maps params onto declared fields, in declared order.
func fields(owner string, declared []schema.Field, params *Params) (*orderedmap.OrderedMap[string, json.RawMessage], error) {
	byWire := make(map[string]int, len(declared))
	for i, f := range declared {
		byWire[f.Name] = i
	}

	values := make([]json.RawMessage, len(declared))
	given := make([]string, len(declared))
	for pair := params.Oldest(); pair != nil; pair = pair.Next() {
		idx, ok := byWire[pair.Key]
		if !ok {
			idx, ok = byWire[naming.Snake(pair.Key)]
		}
		if !ok {
			return nil, fmt.Errorf("%w %q in %s", ErrUnknownField, pair.Key, owner)
		}
		if given[idx] != "" {
			return nil, fmt.Errorf("composer: %s: %q and %q both set field %s", owner, given[idx], pair.Key, declared[idx].Name)
		}
		given[idx] = pair.Key
		values[idx] = pair.Value
	}

	out := orderedmap.New[string, json.RawMessage]()
	for i, f := range declared {
		if given[i] == "" {
			if f.Required {
				return nil, fmt.Errorf("%w %s in %s", ErrMissingField, f.Name, owner)
			}
			continue
		}
		out.Set(f.Name, values[i])
	}
	return out, nil
}

func validate(s *jsonschema.Schema, payload []byte) error {
	if s == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("composer: decode payload: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// Methods lists the camelCase method names of a union message in schema
// order.
func Methods(shape *schema.MessageShape) []string {
	out := make([]string, 0, len(shape.Variants))
	for _, v := range shape.Variants {
		out = append(out, naming.Camel(v.Tag))
	}
	return out
}

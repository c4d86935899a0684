package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/permissionlessweb/bs-accounts/pkg/canonicalize"
)

type nodeMap = orderedmap.OrderedMap[string, *node]

// node is a JSON Schema object as emitted by schemars. Object-valued
// keywords are decoded into ordered maps so declaration order survives.
type node struct {
	// boolean is set for the `true` / `false` schemas.
	boolean *bool
	raw     json.RawMessage

	Ref                  string            `json:"$ref"`
	Title                string            `json:"title"`
	Description          string            `json:"description"`
	Type                 typeSet           `json:"type"`
	Format               string            `json:"format"`
	Enum                 []json.RawMessage `json:"enum"`
	Const                json.RawMessage   `json:"const"`
	Properties           *nodeMap          `json:"properties"`
	Required             []string          `json:"required"`
	AdditionalProperties *node             `json:"additionalProperties"`
	Items                *items            `json:"items"`
	OneOf                []*node           `json:"oneOf"`
	AnyOf                []*node           `json:"anyOf"`
	AllOf                []*node           `json:"allOf"`
	Definitions          *nodeMap          `json:"definitions"`
	Defs                 *nodeMap          `json:"$defs"`
	MinItems             *int              `json:"minItems"`
	MaxItems             *int              `json:"maxItems"`
}

func (n *node) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "true", "false":
		b := string(trimmed) == "true"
		*n = node{boolean: &b, raw: cloneRaw(trimmed)}
		return nil
	}
	type alias node
	var decoded alias
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return err
	}
	*n = node(decoded)
	n.raw = cloneRaw(trimmed)
	return nil
}

func parseNode(data []byte) (*node, error) {
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// fingerprint hashes the canonical form of the node, ignoring keywords that
// only document where the fragment came from.
func (n *node) fingerprint() (string, error) {
	if n.boolean != nil {
		return canonicalize.Fingerprint(n.raw)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(n.raw, &obj); err != nil {
		return "", err
	}
	for _, k := range []string{"$schema", "title", "definitions", "$defs"} {
		delete(obj, k)
	}
	stripped, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return canonicalize.Fingerprint(stripped)
}

func (n *node) isTrue() bool {
	return n.boolean != nil && *n.boolean
}

func (n *node) isFalse() bool {
	return n.boolean != nil && !*n.boolean
}

// isEmpty reports whether the node carries no constraint at all ({} or true).
func (n *node) isEmpty() bool {
	if n.boolean != nil {
		return *n.boolean
	}
	return n.Ref == "" && len(n.Type) == 0 && n.Properties == nil && n.Items == nil &&
		len(n.OneOf) == 0 && len(n.AnyOf) == 0 && len(n.AllOf) == 0 && len(n.Enum) == 0 &&
		n.AdditionalProperties == nil && len(n.Const) == 0
}

func (n *node) isObject() bool {
	return n.Type.has("object") || (len(n.Type) == 0 && n.Properties != nil)
}

func (n *node) isNull() bool {
	return len(n.Type) == 1 && n.Type[0] == "null"
}

func (n *node) required(name string) bool {
	for _, r := range n.Required {
		if r == name {
			return true
		}
	}
	return false
}

func (n *node) propertyCount() int {
	if n.Properties == nil {
		return 0
	}
	return n.Properties.Len()
}

// stringEnum returns the values of a string enum schema.
func (n *node) stringEnum() ([]string, bool) {
	if len(n.Enum) == 0 || (len(n.Type) > 0 && !n.Type.has("string")) {
		return nil, false
	}
	values := make([]string, 0, len(n.Enum))
	for _, raw := range n.Enum {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		values = append(values, s)
	}
	return values, true
}

// definitions merges `definitions` and `$defs`, preferring declaration order
// of the former.
func (n *node) definitions() []definitionEntry {
	var out []definitionEntry
	for _, m := range []*nodeMap{n.Definitions, n.Defs} {
		if m == nil {
			continue
		}
		for pair := m.Oldest(); pair != nil; pair = pair.Next() {
			out = append(out, definitionEntry{name: pair.Key, node: pair.Value})
		}
	}
	return out
}

type definitionEntry struct {
	name string
	node *node
}

// typeSet decodes the "type" keyword, which is a string or a list.
type typeSet []string

func (t *typeSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = typeSet{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("type must be a string or list of strings: %w", err)
	}
	*t = list
	return nil
}

func (t typeSet) has(name string) bool {
	for _, s := range t {
		if s == name {
			return true
		}
	}
	return false
}

// withoutNull returns the declared types other than "null".
func (t typeSet) withoutNull() []string {
	out := make([]string, 0, len(t))
	for _, s := range t {
		if s != "null" {
			out = append(out, s)
		}
	}
	return out
}

// items decodes the "items" keyword, which is a schema or a tuple of schemas.
type items struct {
	single *node
	tuple  []*node
}

func (it *items) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &it.tuple)
	}
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	it.single = &n
	return nil
}

func cloneRaw(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}

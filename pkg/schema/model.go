package schema

import "github.com/santhosh-tekuri/jsonschema/v5"

// Kind identifies one of the contract entry points.
type Kind int

const (
	KindInstantiate Kind = iota
	KindExecute
	KindQuery
	KindMigrate
	KindSudo
)

// Kinds lists every message kind in emission order.
var Kinds = []Kind{KindInstantiate, KindExecute, KindQuery, KindMigrate, KindSudo}

func (k Kind) String() string {
	switch k {
	case KindInstantiate:
		return "instantiate"
	case KindExecute:
		return "execute"
	case KindQuery:
		return "query"
	case KindMigrate:
		return "migrate"
	case KindSudo:
		return "sudo"
	default:
		return "unknown"
	}
}

// DefaultTitle is the type name used when a message schema has no title.
func (k Kind) DefaultTitle() string {
	switch k {
	case KindInstantiate:
		return "InstantiateMsg"
	case KindExecute:
		return "ExecuteMsg"
	case KindQuery:
		return "QueryMsg"
	case KindMigrate:
		return "MigrateMsg"
	case KindSudo:
		return "SudoMsg"
	default:
		return "Msg"
	}
}

// RequiresUnion reports whether the kind must be a tagged union.
func (k Kind) RequiresUnion() bool {
	return k == KindExecute || k == KindQuery
}

// Primitive is a scalar type understood by the emitter.
type Primitive string

const (
	String  Primitive = "string"
	Bool    Primitive = "bool"
	Uint8   Primitive = "uint8"
	Uint16  Primitive = "uint16"
	Uint32  Primitive = "uint32"
	Uint64  Primitive = "uint64"
	Int8    Primitive = "int8"
	Int16   Primitive = "int16"
	Int32   Primitive = "int32"
	Int64   Primitive = "int64"
	Float32 Primitive = "float32"
	Float64 Primitive = "float64"
	Any     Primitive = "any"
)

// RefKind discriminates TypeRef.
type RefKind int

const (
	RefPrimitive RefKind = iota
	RefNamed
	RefArray
	RefMap
	RefTuple
	// RefInlineUnion is an anonymous oneOf/anyOf in a field position. The
	// ingestor keeps it so the emitter can reject it with context.
	RefInlineUnion
)

// TypeRef describes the type of a field, alias target or newtype payload.
type TypeRef struct {
	Kind      RefKind
	Primitive Primitive
	// Name is the definition name for RefNamed.
	Name string
	// Elem is the element type of arrays and the value type of maps.
	Elem *TypeRef
	// Items holds tuple members.
	Items []TypeRef
	// Size is the fixed length of an array, or 0.
	Size     int
	Nullable bool
}

// Field is one named member of a record.
type Field struct {
	// Name is the wire name exactly as declared.
	Name     string
	Doc      string
	Type     TypeRef
	Required bool
}

// Optional reports whether the field may be omitted from the payload.
func (f Field) Optional() bool { return !f.Required }

// Nullable reports whether the field accepts an explicit null.
func (f Field) Nullable() bool { return f.Type.Nullable }

// VariantForm says how a variant's payload is encoded.
type VariantForm int

const (
	// FormRecord variants encode as {"tag": {...fields}}.
	FormRecord VariantForm = iota
	// FormNewtype variants encode as {"tag": <value>}.
	FormNewtype
	// FormUnit variants encode as "tag".
	FormUnit
)

// Variant is one case of a tagged union.
type Variant struct {
	Tag    string
	Doc    string
	Form   VariantForm
	Fields []Field
	// Record names the definition a FormRecord variant's payload refers
	// to. Fields are then that definition's fields.
	Record string
	// Value is the payload type of FormNewtype variants.
	Value TypeRef
	// Response is the declared response of a query variant, if known.
	Response *TypeRef
}

// MessageShape describes one entry point message.
type MessageShape struct {
	Kind     Kind
	Name     string
	Doc      string
	Union    bool
	Fields   []Field
	Variants []Variant
	// Fingerprint identifies the source document.
	Fingerprint string
	// Validator is the compiled source document.
	Validator *jsonschema.Schema
}

// Variant returns the variant with the given tag.
func (m *MessageShape) Variant(tag string) (*Variant, bool) {
	for i := range m.Variants {
		if m.Variants[i].Tag == tag {
			return &m.Variants[i], true
		}
	}
	return nil, false
}

// DefKind discriminates Definition.
type DefKind int

const (
	DefAlias DefKind = iota
	DefRecord
	DefUnion
	DefEnum
)

func (k DefKind) String() string {
	switch k {
	case DefAlias:
		return "alias"
	case DefRecord:
		return "record"
	case DefUnion:
		return "union"
	case DefEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Definition is a named declaration shared by the messages of a contract.
type Definition struct {
	Name     string
	Doc      string
	Kind     DefKind
	Alias    TypeRef
	Fields   []Field
	Variants []Variant
	Values   []string
	// Fingerprint is the canonical hash of the declaring schema fragment.
	Fingerprint string
	// Path locates the declaration in the source documents.
	Path string
}

// Warning flags a schema construct that was accepted but is ambiguous.
type Warning struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Warning codes.
const (
	WarnAmbiguousOptional = "ambiguous-optional"
	WarnContractVersion   = "contract-version"
	WarnMissingResponse   = "missing-response"
	WarnIgnoredKeyword    = "ignored-keyword"
)

// Contract is the ingested model of one contract's schema.
type Contract struct {
	Name            string
	ContractName    string
	ContractVersion string
	IDLVersion      string
	Source          string
	Fingerprint     string
	Messages        []*MessageShape
	Definitions     []*Definition
	Warnings        []Warning
}

// Message returns the message of the given kind, or nil.
func (c *Contract) Message(k Kind) *MessageShape {
	for _, m := range c.Messages {
		if m.Kind == k {
			return m
		}
	}
	return nil
}

// Definition returns the named definition, or nil.
func (c *Contract) Definition(name string) *Definition {
	for _, d := range c.Definitions {
		if d.Name == name {
			return d
		}
	}
	return nil
}

package schema

import (
	"fmt"
	"strings"

	"github.com/permissionlessweb/bs-accounts/pkg/naming"
)

var refPrefixes = []string{"#/definitions/", "#/$defs/"}

// builder turns parsed documents into the contract model. Definitions are
// shared across every document of one contract and kept in first
// declaration order.
type builder struct {
	defs     []*Definition
	index    map[string]*Definition
	warnings []Warning
}

func newBuilder() *builder {
	return &builder{index: make(map[string]*Definition)}
}

// document scopes reference resolution to the definitions of one file.
type document struct {
	name string
	defs map[string]*node
}

func (b *builder) document(name string, root *node) (*document, error) {
	doc := &document{name: name, defs: make(map[string]*node)}
	entries := root.definitions()
	for _, e := range entries {
		doc.defs[e.name] = e.node
	}
	for _, e := range entries {
		if err := b.define(doc, e.name, e.node, name+"#/definitions/"+e.name); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// define registers a named declaration. A name seen before must carry the
// same canonical shape.
func (b *builder) define(doc *document, name string, n *node, path string) error {
	fp, err := n.fingerprint()
	if err != nil {
		return &SchemaError{Code: ErrCodeInvalid, Path: path, Message: "cannot canonicalize definition", Err: err}
	}
	if existing, ok := b.index[name]; ok {
		if existing.Fingerprint == fp {
			return nil
		}
		return schemaErr(ErrCodeConflict, path, "definition %s differs from the one declared at %s", name, existing.Path)
	}
	def := &Definition{Name: name, Doc: n.Description, Fingerprint: fp, Path: path}
	b.index[name] = def
	b.defs = append(b.defs, def)
	return b.fillDefinition(doc, def, n, path)
}

func (b *builder) fillDefinition(doc *document, def *Definition, n *node, path string) error {
	if len(n.OneOf) > 0 && isTagged(n.OneOf) {
		if values, ok := enumBranches(n.OneOf); ok {
			def.Kind = DefEnum
			def.Values = values
			return nil
		}
		variants, err := b.union(doc, def.Name, n.OneOf, path, false)
		if err != nil {
			return err
		}
		def.Kind = DefUnion
		def.Variants = variants
		return nil
	}
	if values, ok := n.stringEnum(); ok {
		def.Kind = DefEnum
		def.Values = values
		return nil
	}
	if n.isObject() && !hasMapValues(n) && n.Ref == "" {
		fields, err := b.fields(doc, def.Name, n, path)
		if err != nil {
			return err
		}
		def.Kind = DefRecord
		def.Fields = fields
		return nil
	}
	alias, err := b.typeRef(doc, def.Name, "", n, path)
	if err != nil {
		return err
	}
	def.Kind = DefAlias
	def.Alias = alias
	return nil
}

// message converts the root of one message document.
func (b *builder) message(kind Kind, root *node) (*MessageShape, error) {
	path := kind.String() + "#"
	doc, err := b.document(kind.String(), root)
	if err != nil {
		return nil, err
	}
	name := root.Title
	if name == "" {
		name = kind.DefaultTitle()
	}
	shape := &MessageShape{Kind: kind, Name: name, Doc: root.Description}

	body := root
	if root.Ref != "" {
		target, err := b.resolve(doc, root.Ref, path)
		if err != nil {
			return nil, err
		}
		body = doc.defs[target]
	}

	switch {
	case body.OneOf != nil:
		shape.Union = true
		shape.Variants, err = b.union(doc, name, body.OneOf, path, true)
		if err != nil {
			return nil, err
		}
	case body.Type.has("string") && body.Enum != nil && len(body.Enum) == 0:
		// An enum without variants.
		shape.Union = true
	case len(body.Enum) > 0:
		return nil, schemaErr(ErrCodeUnion, path, "%s variants must be objects keyed by their tag", name)
	case body.isObject():
		if kind.RequiresUnion() {
			return nil, schemaErr(ErrCodeUnion, path, "%s must be a tagged union", name)
		}
		shape.Fields, err = b.fields(doc, name, body, path)
		if err != nil {
			return nil, err
		}
	default:
		return nil, schemaErr(ErrCodeInvalid, path, "%s must be an object or a tagged union", name)
	}
	return shape, nil
}

// response converts a query response root. Records, unions and enums become
// definitions named by their title; anything else is referenced directly.
func (b *builder) response(tag string, root *node) (*TypeRef, error) {
	path := "responses/" + tag + "#"
	doc, err := b.document("responses/"+tag, root)
	if err != nil {
		return nil, err
	}
	_, isEnum := root.stringEnum()
	declares := isEnum || (len(root.OneOf) > 0 && isTagged(root.OneOf)) ||
		(root.isObject() && !hasMapValues(root) && root.Ref == "")
	if declares {
		name := root.Title
		if name == "" {
			name = naming.Exported(tag) + "Response"
		}
		if err := b.define(doc, name, root, path); err != nil {
			return nil, err
		}
		return &TypeRef{Kind: RefNamed, Name: name}, nil
	}
	t, err := b.typeRef(doc, naming.Exported(tag)+"Response", "", root, path)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// union converts oneOf branches into variants. Message unions only accept
// object payloads; definition unions also accept unit and newtype variants.
func (b *builder) union(doc *document, owner string, branches []*node, path string, message bool) ([]Variant, error) {
	var variants []Variant
	seen := make(map[string]bool)
	add := func(v Variant, at string) error {
		if seen[v.Tag] {
			return schemaErr(ErrCodeUnion, at, "duplicate variant tag %q in %s", v.Tag, owner)
		}
		seen[v.Tag] = true
		variants = append(variants, v)
		return nil
	}

	for i, br := range branches {
		bp := fmt.Sprintf("%s/oneOf/%d", path, i)
		if values, ok := br.stringEnum(); ok {
			if message {
				return nil, schemaErr(ErrCodeUnion, bp, "variant %s of %s is neither an object nor empty", strings.Join(values, ", "), owner)
			}
			for _, v := range values {
				if err := add(Variant{Tag: v, Doc: br.Description, Form: FormUnit}, bp); err != nil {
					return nil, err
				}
			}
			continue
		}
		if !br.isObject() || br.propertyCount() != 1 {
			return nil, schemaErr(ErrCodeUnion, bp, "branch of %s must be an object with exactly one property", owner)
		}
		pair := br.Properties.Oldest()
		tag, value := pair.Key, pair.Value
		vp := bp + "/properties/" + tag
		if !br.required(tag) {
			return nil, schemaErr(ErrCodeUnion, bp, "tag %q of %s is not required", tag, owner)
		}
		if message && !naming.IsSnake(tag) {
			return nil, schemaErr(ErrCodeUnion, bp, "tag %q of %s is not lowercase snake_case", tag, owner)
		}

		v := Variant{Tag: tag, Doc: br.Description}
		variantOwner := owner + naming.Exported(tag)
		payload := value
		if ref := refOf(value); ref != "" {
			target, err := b.resolve(doc, ref, vp)
			if err != nil {
				return nil, err
			}
			if !message {
				v.Form = FormNewtype
				v.Value = TypeRef{Kind: RefNamed, Name: target}
				if err := add(v, bp); err != nil {
					return nil, err
				}
				continue
			}
			// A referenced record is declared once; the variant reuses it.
			if def := b.index[target]; def != nil && def.Kind == DefRecord {
				v.Form = FormRecord
				v.Fields = def.Fields
				v.Record = def.Name
				if err := add(v, bp); err != nil {
					return nil, err
				}
				continue
			}
			payload = doc.defs[target]
		}

		switch {
		case isRecordPayload(payload):
			fields, err := b.fields(doc, variantOwner, payload, vp)
			if err != nil {
				return nil, err
			}
			v.Form = FormRecord
			v.Fields = fields
		case message:
			return nil, schemaErr(ErrCodeUnion, vp, "variant %q of %s is neither an object nor empty", tag, owner)
		default:
			t, err := b.typeRef(doc, variantOwner, "", value, vp)
			if err != nil {
				return nil, err
			}
			v.Form = FormNewtype
			v.Value = t
		}
		if err := add(v, bp); err != nil {
			return nil, err
		}
	}
	return variants, nil
}

func (b *builder) fields(doc *document, owner string, n *node, path string) ([]Field, error) {
	if n.Properties == nil {
		return nil, nil
	}
	fields := make([]Field, 0, n.Properties.Len())
	for pair := n.Properties.Oldest(); pair != nil; pair = pair.Next() {
		fp := path + "/properties/" + pair.Key
		t, err := b.typeRef(doc, owner, pair.Key, pair.Value, fp)
		if err != nil {
			return nil, err
		}
		f := Field{Name: pair.Key, Doc: describe(pair.Value), Type: t, Required: n.required(pair.Key)}
		b.checkPresence(owner, f, fp)
		fields = append(fields, f)
	}
	return fields, nil
}

// checkPresence records fields whose required and nullable markers
// disagree. They are kept as declared.
func (b *builder) checkPresence(owner string, f Field, path string) {
	switch {
	case f.Required && f.Nullable():
		b.warn(WarnAmbiguousOptional, path, "%s.%s is required but nullable", owner, f.Name)
	case !f.Required && !f.Nullable():
		b.warn(WarnAmbiguousOptional, path, "%s.%s is optional but not nullable", owner, f.Name)
	}
}

// typeRef converts a schema in a field, alias or payload position. Inline
// records and enums are hoisted into definitions named after their owner
// and field.
func (b *builder) typeRef(doc *document, owner, field string, n *node, path string) (TypeRef, error) {
	anyRef := TypeRef{Kind: RefPrimitive, Primitive: Any}
	if n == nil || n.isEmpty() {
		return anyRef, nil
	}
	if n.isFalse() {
		return TypeRef{}, schemaErr(ErrCodeInvalid, path, "the false schema accepts no value")
	}
	if n.Ref != "" {
		name, err := b.resolve(doc, n.Ref, path)
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Kind: RefNamed, Name: name}, nil
	}
	if len(n.AllOf) == 1 {
		return b.typeRef(doc, owner, field, n.AllOf[0], path+"/allOf/0")
	}
	if len(n.AllOf) > 1 {
		b.warn(WarnIgnoredKeyword, path, "allOf with %d members is treated as any", len(n.AllOf))
		return anyRef, nil
	}
	if len(n.AnyOf) > 0 {
		return b.alternatives(doc, owner, field, n.AnyOf, path+"/anyOf")
	}
	if len(n.OneOf) > 0 {
		return b.alternatives(doc, owner, field, n.OneOf, path+"/oneOf")
	}

	nullable := n.Type.has("null")
	if _, ok := n.stringEnum(); ok {
		name := owner + naming.Exported(field)
		if err := b.define(doc, name, n, path); err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Kind: RefNamed, Name: name, Nullable: nullable}, nil
	}

	types := n.Type.withoutNull()
	if len(types) > 1 {
		return TypeRef{Kind: RefInlineUnion, Nullable: nullable}, nil
	}
	var t string
	switch {
	case len(types) == 1:
		t = types[0]
	case n.Properties != nil:
		t = "object"
	case n.Items != nil:
		t = "array"
	default:
		if len(n.Const) > 0 {
			b.warn(WarnIgnoredKeyword, path, "const is treated as any")
		}
		anyRef.Nullable = true
		return anyRef, nil
	}

	var ref TypeRef
	switch t {
	case "string":
		ref = TypeRef{Kind: RefPrimitive, Primitive: String}
	case "boolean":
		ref = TypeRef{Kind: RefPrimitive, Primitive: Bool}
	case "integer":
		ref = TypeRef{Kind: RefPrimitive, Primitive: integerPrimitive(n.Format)}
	case "number":
		ref = TypeRef{Kind: RefPrimitive, Primitive: Float64}
		if n.Format == "float" {
			ref.Primitive = Float32
		}
	case "array":
		var err error
		ref, err = b.array(doc, owner+naming.Exported(field), n, path)
		if err != nil {
			return TypeRef{}, err
		}
	case "object":
		var err error
		ref, err = b.object(doc, owner, field, n, path)
		if err != nil {
			return TypeRef{}, err
		}
	default:
		return TypeRef{}, schemaErr(ErrCodeInvalid, path, "unknown type %q", t)
	}
	ref.Nullable = ref.Nullable || nullable
	return ref, nil
}

func (b *builder) object(doc *document, owner, field string, n *node, path string) (TypeRef, error) {
	if !hasMapValues(n) && n.Properties != nil {
		name := owner + naming.Exported(field)
		if err := b.define(doc, name, n, path); err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Kind: RefNamed, Name: name}, nil
	}
	elem := TypeRef{Kind: RefPrimitive, Primitive: Any}
	if hasMapValues(n) {
		var err error
		elem, err = b.typeRef(doc, owner+naming.Exported(field), "value", n.AdditionalProperties, path+"/additionalProperties")
		if err != nil {
			return TypeRef{}, err
		}
	}
	return TypeRef{Kind: RefMap, Elem: &elem}, nil
}

func (b *builder) array(doc *document, owner string, n *node, path string) (TypeRef, error) {
	if n.Items == nil {
		return TypeRef{Kind: RefArray, Elem: &TypeRef{Kind: RefPrimitive, Primitive: Any}}, nil
	}
	if n.Items.single != nil {
		elem, err := b.typeRef(doc, owner, "item", n.Items.single, path+"/items")
		if err != nil {
			return TypeRef{}, err
		}
		return TypeRef{Kind: RefArray, Elem: &elem}, nil
	}

	members := make([]TypeRef, 0, len(n.Items.tuple))
	same := true
	var first string
	for i, item := range n.Items.tuple {
		ip := fmt.Sprintf("%s/items/%d", path, i)
		t, err := b.typeRef(doc, owner, fmt.Sprintf("item%d", i), item, ip)
		if err != nil {
			return TypeRef{}, err
		}
		members = append(members, t)
		fp, err := item.fingerprint()
		if err != nil {
			return TypeRef{}, &SchemaError{Code: ErrCodeInvalid, Path: ip, Message: "cannot canonicalize tuple member", Err: err}
		}
		if i == 0 {
			first = fp
		} else if fp != first {
			same = false
		}
	}
	if same && len(members) > 0 {
		elem := members[0]
		return TypeRef{Kind: RefArray, Elem: &elem, Size: len(members)}, nil
	}
	return TypeRef{Kind: RefTuple, Items: members}, nil
}

// alternatives handles anyOf/oneOf in a type position. A single non-null
// alternative is that type made nullable; more than one is an inline union.
func (b *builder) alternatives(doc *document, owner, field string, branches []*node, path string) (TypeRef, error) {
	var rest []TypeRef
	nullable := false
	for i, br := range branches {
		if br.isNull() {
			nullable = true
			continue
		}
		t, err := b.typeRef(doc, owner, field, br, fmt.Sprintf("%s/%d", path, i))
		if err != nil {
			return TypeRef{}, err
		}
		rest = append(rest, t)
	}
	switch len(rest) {
	case 0:
		return TypeRef{Kind: RefPrimitive, Primitive: Any, Nullable: true}, nil
	case 1:
		t := rest[0]
		t.Nullable = t.Nullable || nullable
		return t, nil
	default:
		return TypeRef{Kind: RefInlineUnion, Items: rest, Nullable: nullable}, nil
	}
}

// resolve checks that ref points at a definition of the same document and
// returns the definition name.
func (b *builder) resolve(doc *document, ref, path string) (string, error) {
	for _, prefix := range refPrefixes {
		name, ok := strings.CutPrefix(ref, prefix)
		if !ok {
			continue
		}
		if name == "" || strings.Contains(name, "/") {
			break
		}
		if _, ok := doc.defs[name]; !ok {
			return "", schemaErr(ErrCodeRef, path, "unresolved reference %q", ref)
		}
		return name, nil
	}
	return "", schemaErr(ErrCodeRef, path, "unsupported reference %q", ref)
}

func (b *builder) warn(code, path, format string, args ...any) {
	b.warnings = append(b.warnings, Warning{Code: code, Path: path, Message: fmt.Sprintf(format, args...)})
}

func integerPrimitive(format string) Primitive {
	switch format {
	case "uint8":
		return Uint8
	case "uint16":
		return Uint16
	case "uint32":
		return Uint32
	case "uint64", "uint":
		return Uint64
	case "int8":
		return Int8
	case "int16":
		return Int16
	case "int32":
		return Int32
	default:
		return Int64
	}
}

// refOf returns the reference of {$ref} or of a documented {allOf:[{$ref}]}.
func refOf(n *node) string {
	if n == nil {
		return ""
	}
	if n.Ref != "" {
		return n.Ref
	}
	if len(n.AllOf) == 1 && n.AllOf[0].Ref != "" {
		return n.AllOf[0].Ref
	}
	return ""
}

func describe(n *node) string {
	if n == nil {
		return ""
	}
	if n.Description != "" {
		return n.Description
	}
	if len(n.AllOf) == 1 {
		return n.AllOf[0].Description
	}
	return ""
}

// hasMapValues reports whether an object schema describes a map with typed
// values rather than a record.
func hasMapValues(n *node) bool {
	ap := n.AdditionalProperties
	return n.propertyCount() == 0 && ap != nil && !ap.isFalse()
}

// isRecordPayload accepts object payloads, including empty ones.
func isRecordPayload(n *node) bool {
	if n == nil || n.boolean != nil {
		return false
	}
	return n.isObject() && !hasMapValues(n)
}

// isTagged reports whether every branch is a unit enum or a single-key object.
func isTagged(branches []*node) bool {
	for _, br := range branches {
		if _, ok := br.stringEnum(); ok {
			continue
		}
		if br.isObject() && br.propertyCount() == 1 {
			continue
		}
		return false
	}
	return true
}

func enumBranches(branches []*node) ([]string, bool) {
	var values []string
	for _, br := range branches {
		v, ok := br.stringEnum()
		if !ok {
			return nil, false
		}
		values = append(values, v...)
	}
	return values, true
}

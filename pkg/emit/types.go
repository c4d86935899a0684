package emit

import (
	"github.com/permissionlessweb/bs-accounts/pkg/naming"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
)

// typesFile declares message shapes first, then definitions, each in
// schema order.
func (g *generator) typesFile() (File, error) {
	f := newGoFile()
	for _, m := range g.c.Messages {
		ident := g.typeName(m.Name)
		var err error
		if m.Union {
			err = g.union(f, ident, m.Doc, m.Variants)
		} else {
			err = g.record(f, ident, m.Doc, m.Fields, false)
		}
		if err != nil {
			return File{}, err
		}
	}
	for _, d := range g.c.Definitions {
		ident := g.typeName(d.Name)
		var err error
		switch d.Kind {
		case schema.DefRecord:
			err = g.record(f, ident, d.Doc, d.Fields, false)
		case schema.DefUnion:
			err = g.union(f, ident, d.Doc, d.Variants)
		case schema.DefEnum:
			g.enum(f, ident, d.Doc, d.Values)
		case schema.DefAlias:
			err = g.alias(f, ident, d.Doc, d.Alias)
		}
		if err != nil {
			return File{}, err
		}
	}
	return g.render(TypesFile, f, true)
}

func (g *generator) record(f *goFile, ident, doc string, fields []schema.Field, variant bool) error {
	f.comment(doc)
	if len(fields) == 0 {
		f.p("type %s struct{}", ident)
		f.line()
		return nil
	}
	seen := make(map[string]string, len(fields))
	f.p("type %s struct {", ident)
	for _, fld := range fields {
		name := naming.Exported(fld.Name)
		if prev, ok := seen[name]; ok {
			return emitErr(ErrCodeCollision, ident, "fields %q and %q both map to %s", prev, fld.Name, name)
		}
		if variant && name == "VariantTag" {
			return emitErr(ErrCodeCollision, ident, "field %q shadows the VariantTag method", fld.Name)
		}
		seen[name] = fld.Name
		typ, tag, err := g.fieldType(f, fld, ident)
		if err != nil {
			return err
		}
		f.comment(fld.Doc)
		f.p("%s %s `json:%q`", name, typ, tag)
	}
	f.p("}")
	f.line()
	return nil
}

// recordVariant declares a variant whose payload is a named record as a
// defined type over that record.
func (g *generator) recordVariant(f *goFile, vident string, v schema.Variant) error {
	for _, fld := range v.Fields {
		if naming.Exported(fld.Name) == "VariantTag" {
			return emitErr(ErrCodeCollision, vident, "field %q shadows the VariantTag method", fld.Name)
		}
	}
	f.comment(v.Doc)
	f.p("type %s %s", vident, g.typeName(v.Record))
	f.line()
	return nil
}

// union declares a wrapper struct holding one of a sealed set of variant
// types. Consumers type-switch on Value.
func (g *generator) union(f *goFile, ident, doc string, variants []schema.Variant) error {
	f.use(RuntimeImport)
	iface := ident + "Variant"
	marker := "is" + ident

	f.comment(doc)
	f.p("type %s struct {", ident)
	f.p("Value %s", iface)
	f.p("}")
	f.line()
	f.p("// %s is implemented by every variant of %s.", iface, ident)
	f.p("type %s interface {", iface)
	f.p("wasmbind.Variant")
	f.p("%s()", marker)
	f.p("}")
	f.line()

	for _, v := range variants {
		vident := ident + naming.Exported(v.Tag)
		switch v.Form {
		case schema.FormRecord:
			if v.Record != "" {
				if err := g.recordVariant(f, vident, v); err != nil {
					return err
				}
				break
			}
			if err := g.record(f, vident, v.Doc, v.Fields, true); err != nil {
				return err
			}
		case schema.FormNewtype:
			typ, err := g.valueType(f, v.Value, vident)
			if err != nil {
				return err
			}
			f.comment(v.Doc)
			f.p("type %s struct {", vident)
			f.p("Value %s", typ)
			f.p("}")
			f.line()
		case schema.FormUnit:
			f.comment(v.Doc)
			f.p("type %s struct{}", vident)
			f.line()
		}
		f.p("func (%s) VariantTag() string { return %q }", vident, v.Tag)
		f.p("func (%s) %s() {}", vident, marker)
		f.line()
	}

	f.p("// MarshalJSON encodes the held variant under its tag.")
	f.p("func (u %s) MarshalJSON() ([]byte, error) {", ident)
	f.p("switch v := u.Value.(type) {")
	for _, v := range variants {
		f.p("case %s%s:", ident, naming.Exported(v.Tag))
		switch v.Form {
		case schema.FormRecord:
			f.p("return wasmbind.MarshalTagged(v.VariantTag(), v)")
		case schema.FormNewtype:
			f.p("return wasmbind.MarshalTagged(v.VariantTag(), v.Value)")
		case schema.FormUnit:
			f.p("return wasmbind.MarshalUnit(v.VariantTag())")
		}
	}
	f.p("case nil:")
	f.p("return nil, wasmbind.ErrEmptyUnion")
	f.p("default:")
	f.p("return nil, wasmbind.UnexpectedVariant(%q, v)", ident)
	f.p("}")
	f.p("}")
	f.line()

	bodyUsed := false
	for _, v := range variants {
		if v.Form != schema.FormUnit {
			bodyUsed = true
		}
	}
	body := "_"
	if bodyUsed {
		body = "body"
	}
	f.p("// UnmarshalJSON decodes a tagged document into the matching variant.")
	f.p("func (u *%s) UnmarshalJSON(data []byte) error {", ident)
	f.p("tag, %s, err := wasmbind.SplitVariant(data)", body)
	f.p("if err != nil {")
	f.p("return err")
	f.p("}")
	f.p("switch tag {")
	for _, v := range variants {
		vident := ident + naming.Exported(v.Tag)
		f.p("case %q:", v.Tag)
		switch v.Form {
		case schema.FormRecord:
			f.p("var v %s", vident)
			f.p("if err := wasmbind.UnmarshalBody(body, &v); err != nil {")
			f.p("return err")
			f.p("}")
			f.p("u.Value = v")
		case schema.FormNewtype:
			f.p("var v %s", vident)
			f.p("if err := wasmbind.UnmarshalBody(body, &v.Value); err != nil {")
			f.p("return err")
			f.p("}")
			f.p("u.Value = v")
		case schema.FormUnit:
			f.p("u.Value = %s{}", vident)
		}
	}
	f.p("default:")
	f.p("return wasmbind.UnknownVariant(%q, tag)", ident)
	f.p("}")
	f.p("return nil")
	f.p("}")
	f.line()
	return nil
}

func (g *generator) enum(f *goFile, ident, doc string, values []string) {
	f.comment(doc)
	f.p("type %s string", ident)
	f.line()
	f.p("const (")
	for _, v := range values {
		f.p("%s%s %s = %q", ident, naming.Exported(v), ident, v)
	}
	f.p(")")
	f.line()
}

// alias declares named primitives, arrays and maps as defined types.
// References to other declarations, raw JSON and nullable targets use
// alias declarations so the target keeps its methods.
func (g *generator) alias(f *goFile, ident, doc string, ref schema.TypeRef) error {
	typ, err := g.valueType(f, ref, ident)
	if err != nil {
		return err
	}
	f.comment(doc)
	defined := !ref.Nullable && ref.Kind != schema.RefNamed &&
		!(ref.Kind == schema.RefPrimitive && ref.Primitive == schema.Any)
	if defined {
		f.p("type %s %s", ident, typ)
	} else {
		f.p("type %s = %s", ident, typ)
	}
	f.line()
	return nil
}

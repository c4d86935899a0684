// Package emit renders an ingested contract model as Go source: type
// declarations, a message composer per contract and optional query/execute
// clients. Output depends only on the model and the options, so generating
// twice from the same schema yields identical bytes.
package emit

import (
	"bytes"
	"errors"
	"fmt"
	"go/format"
	"sort"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/permissionlessweb/bs-accounts/pkg/naming"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
)

// RuntimeImport is the import path of the package generated code depends on.
const RuntimeImport = "github.com/permissionlessweb/bs-accounts/pkg/wasmbind"

// Generated file names inside a contract package.
const (
	TypesFile    = "types.go"
	ComposerFile = "message_composer.go"
	ClientFile   = "client.go"
)

// Options selects the artifacts emitted per contract.
type Options struct {
	// Version is written into the generated-code header.
	Version         string
	Types           bool
	MessageComposer bool
	Client          bool
}

// DefaultOptions enables every artifact.
func DefaultOptions(version string) Options {
	return Options{Version: version, Types: true, MessageComposer: true, Client: true}
}

// File is one generated source file, relative to the output root.
type File struct {
	Path    string
	Content []byte
}

// Exports lists the identifiers of a binding that a bundle re-exports.
// Empty names were not emitted.
type Exports struct {
	Messages        []string
	MessageComposer string
	QueryComposer   string
	QueryClient     string
	Client          string
}

// Binding is the emitted artifact of one contract.
type Binding struct {
	Contract    string
	Package     string
	Fingerprint string
	Exports     Exports
	Files       []File
}

// Generate renders the binding of c. Any returned error is an *EmitError
// naming the contract.
func Generate(c *schema.Contract, opts Options) (*Binding, error) {
	b, err := generate(c, opts)
	if err != nil {
		var ee *EmitError
		if errors.As(err, &ee) {
			if ee.Contract == "" {
				ee.Contract = c.Name
			}
			return nil, ee
		}
		return nil, &EmitError{Contract: c.Name, Code: ErrCodeUnsupported, Message: "emission failed", Err: err}
	}
	return b, nil
}

func generate(c *schema.Contract, opts Options) (*Binding, error) {
	g, err := newGenerator(c, opts)
	if err != nil {
		return nil, err
	}
	b := &Binding{Contract: c.Name, Package: g.pkg, Fingerprint: c.Fingerprint}

	if g.wantTypes() {
		f, err := g.typesFile()
		if err != nil {
			return nil, err
		}
		b.Files = append(b.Files, f)
		for _, m := range c.Messages {
			b.Exports.Messages = append(b.Exports.Messages, g.typeName(m.Name))
		}
	}
	if opts.MessageComposer && (g.execute != nil || g.query != nil) {
		f, err := g.composerFile()
		if err != nil {
			return nil, err
		}
		b.Files = append(b.Files, f)
		if g.execute != nil {
			b.Exports.MessageComposer = g.name + "MessageComposer"
		}
		if g.query != nil {
			b.Exports.QueryComposer = g.name + "QueryComposer"
		}
	}
	if opts.Client && (g.execute != nil || g.query != nil) {
		f, err := g.clientFile()
		if err != nil {
			return nil, err
		}
		b.Files = append(b.Files, f)
		if g.query != nil {
			b.Exports.QueryClient = g.name + "QueryClient"
		}
		if g.execute != nil {
			b.Exports.Client = g.name + "Client"
		}
	}
	return b, nil
}

type generator struct {
	c    *schema.Contract
	opts Options
	// name is the exported contract identifier, pkg its package name.
	name string
	pkg  string

	execute *schema.MessageShape
	query   *schema.MessageShape

	// idents maps every package-level Go identifier to the declaration that
	// claimed it.
	idents map[string]string
	// types maps schema names to Go type names.
	types map[string]string
}

func newGenerator(c *schema.Contract, opts Options) (*generator, error) {
	g := &generator{
		c:      c,
		opts:   opts,
		name:   naming.Exported(c.Name),
		pkg:    naming.Package(c.Name),
		idents: make(map[string]string),
		types:  make(map[string]string),
	}
	if g.pkg == "" {
		return nil, emitErr(ErrCodeUnsupported, c.Name, "contract name %q yields no package name", c.Name)
	}
	if err := g.plan(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *generator) wantTypes() bool {
	// Composers and clients refer to the message types.
	return g.opts.Types || g.opts.MessageComposer || g.opts.Client
}

// plan claims every package-level identifier up front so collisions are
// reported the same way regardless of emission order.
func (g *generator) plan() error {
	for _, m := range g.c.Messages {
		ident := naming.Exported(m.Name)
		if err := g.claimType(m.Name, ident); err != nil {
			return err
		}
		if !m.Union {
			continue
		}
		for _, v := range m.Variants {
			if v.Form != schema.FormRecord {
				return emitErr(ErrCodeUnsupported, m.Name, "variant %q of a %s message must carry an object", v.Tag, m.Kind)
			}
		}
		if err := g.claimUnion(m.Name, ident, m.Variants); err != nil {
			return err
		}
		switch m.Kind {
		case schema.KindExecute:
			g.execute = m
		case schema.KindQuery:
			g.query = m
		}
	}

	for _, d := range g.c.Definitions {
		ident := naming.Exported(d.Name)
		if err := g.claimType(d.Name, ident); err != nil {
			return err
		}
		switch d.Kind {
		case schema.DefUnion:
			if err := g.claimUnion(d.Name, ident, d.Variants); err != nil {
				return err
			}
		case schema.DefEnum:
			for _, v := range d.Values {
				if err := g.claim(ident+naming.Exported(v), d.Name+"."+v); err != nil {
					return err
				}
			}
		}
	}

	if g.opts.MessageComposer || g.opts.Client {
		for _, m := range []*schema.MessageShape{g.execute, g.query} {
			if m == nil {
				continue
			}
			if err := g.claimMethods(m); err != nil {
				return err
			}
		}
	}
	if g.opts.MessageComposer {
		if g.execute != nil {
			if err := g.claimAPI("MessageComposer"); err != nil {
				return err
			}
		}
		if g.query != nil {
			if err := g.claimAPI("QueryComposer"); err != nil {
				return err
			}
		}
	}
	if g.opts.Client {
		if g.query != nil {
			if err := g.claimAPI("QueryClient"); err != nil {
				return err
			}
		}
		if g.execute != nil {
			if err := g.claimAPI("Client"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *generator) claim(ident, decl string) error {
	if prev, ok := g.idents[ident]; ok {
		return emitErr(ErrCodeCollision, decl, "%s and %s both map to Go identifier %s", prev, decl, ident)
	}
	g.idents[ident] = decl
	return nil
}

func (g *generator) claimType(schemaName, ident string) error {
	if err := g.claim(ident, schemaName); err != nil {
		return err
	}
	g.types[schemaName] = ident
	return nil
}

func (g *generator) claimUnion(decl, ident string, variants []schema.Variant) error {
	if err := g.claim(ident+"Variant", decl); err != nil {
		return err
	}
	for _, v := range variants {
		if err := g.claim(ident+naming.Exported(v.Tag), decl+"."+v.Tag); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) claimAPI(suffix string) error {
	ident := g.name + suffix
	if err := g.claim(ident, suffix); err != nil {
		return err
	}
	return g.claim("New"+ident, suffix)
}

// claimMethods checks that variants map to distinct method names.
func (g *generator) claimMethods(m *schema.MessageShape) error {
	seen := make(map[string]string, len(m.Variants))
	for _, v := range m.Variants {
		method := naming.Exported(v.Tag)
		if prev, ok := seen[method]; ok {
			return emitErr(ErrCodeCollision, m.Name, "variants %q and %q both map to method %s", prev, v.Tag, method)
		}
		seen[method] = v.Tag
	}
	return nil
}

func (g *generator) typeName(schemaName string) string {
	if ident, ok := g.types[schemaName]; ok {
		return ident
	}
	return naming.Exported(schemaName)
}

// goType renders ref ignoring its own nullability. Nullable elements inside
// arrays and maps become pointers.
func (g *generator) goType(f *goFile, ref schema.TypeRef, decl string) (string, error) {
	switch ref.Kind {
	case schema.RefPrimitive:
		if ref.Primitive == schema.Any {
			f.use("encoding/json")
			return "json.RawMessage", nil
		}
		return string(ref.Primitive), nil
	case schema.RefNamed:
		ident, ok := g.types[ref.Name]
		if !ok {
			return "", emitErr(ErrCodeUnsupported, decl, "reference to undeclared type %s", ref.Name)
		}
		return ident, nil
	case schema.RefArray, schema.RefMap:
		if ref.Elem == nil {
			return "", emitErr(ErrCodeUnsupported, decl, "container without element type")
		}
		elem, err := g.valueType(f, *ref.Elem, decl)
		if err != nil {
			return "", err
		}
		switch {
		case ref.Kind == schema.RefMap:
			return "map[string]" + elem, nil
		case ref.Size > 0:
			return fmt.Sprintf("[%d]%s", ref.Size, elem), nil
		default:
			return "[]" + elem, nil
		}
	case schema.RefTuple:
		// Members of different types travel as raw JSON.
		f.use("encoding/json")
		return fmt.Sprintf("[%d]json.RawMessage", len(ref.Items)), nil
	case schema.RefInlineUnion:
		return "", emitErr(ErrCodeUnsupported, decl, "inline union of %d alternatives cannot be represented; declare it as a named tagged union", len(ref.Items))
	default:
		return "", emitErr(ErrCodeUnsupported, decl, "unknown type reference kind %d", ref.Kind)
	}
}

// valueType renders ref including nullability.
func (g *generator) valueType(f *goFile, ref schema.TypeRef, decl string) (string, error) {
	t, err := g.goType(f, ref, decl)
	if err != nil {
		return "", err
	}
	if ref.Nullable && !nilable(ref) {
		return "*" + t, nil
	}
	return t, nil
}

// fieldType renders a record field by presence:
//
//	required           T
//	required, null     *T
//	optional           *T, omitted when nil
//	optional, null     wasmbind.Optional[T], omitted when absent
func (g *generator) fieldType(f *goFile, fld schema.Field, decl string) (string, string, error) {
	if strings.ContainsAny(fld.Name, "\"`,\\") || fld.Name == "" {
		return "", "", emitErr(ErrCodeUnsupported, decl, "field name %q cannot be used as a json tag", fld.Name)
	}
	base, err := g.goType(f, fld.Type, decl)
	if err != nil {
		return "", "", err
	}
	ptr := base
	if !nilable(fld.Type) {
		ptr = "*" + base
	}
	switch {
	case fld.Required && !fld.Nullable():
		return base, fld.Name, nil
	case fld.Required:
		return ptr, fld.Name, nil
	case !fld.Nullable():
		return ptr, fld.Name + ",omitzero", nil
	default:
		f.use(RuntimeImport)
		return "wasmbind.Optional[" + base + "]", fld.Name + ",omitzero", nil
	}
}

// nilable reports whether the Go rendering of ref already has a nil value.
func nilable(ref schema.TypeRef) bool {
	switch ref.Kind {
	case schema.RefPrimitive:
		return ref.Primitive == schema.Any
	case schema.RefMap:
		return true
	case schema.RefArray:
		return ref.Size == 0
	default:
		return false
	}
}

// goFile accumulates the body of one generated file and the imports it
// needs.
type goFile struct {
	buf     bytes.Buffer
	imports map[string]bool
}

func newGoFile() *goFile {
	return &goFile{imports: make(map[string]bool)}
}

func (f *goFile) use(path string) {
	f.imports[path] = true
}

func (f *goFile) p(format string, args ...any) {
	fmt.Fprintf(&f.buf, format, args...)
	f.buf.WriteByte('\n')
}

func (f *goFile) line() {
	f.buf.WriteByte('\n')
}

// comment writes doc as line comments.
func (f *goFile) comment(doc string) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return
	}
	for _, l := range strings.Split(doc, "\n") {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			f.buf.WriteString("//\n")
			continue
		}
		f.buf.WriteString("// ")
		f.buf.WriteString(l)
		f.buf.WriteByte('\n')
	}
}

// render assembles header, package clause, imports and body, then formats
// the result.
func (g *generator) render(name string, f *goFile, pkgDoc bool) (File, error) {
	var out bytes.Buffer
	out.WriteString(Header(g.opts.Version))
	fmt.Fprintf(&out, "// source: %s\n", g.source())
	fmt.Fprintf(&out, "// fingerprint: %s\n\n", g.c.Fingerprint)
	if pkgDoc {
		fmt.Fprintf(&out, "// Package %s contains bindings for the %s contract.\n", g.pkg, g.c.Name)
	}
	fmt.Fprintf(&out, "package %s\n\n", g.pkg)

	if len(f.imports) > 0 {
		paths := make([]string, 0, len(f.imports))
		for p := range f.imports {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		out.WriteString("import (\n")
		for _, p := range paths {
			fmt.Fprintf(&out, "\t%q\n", p)
		}
		out.WriteString(")\n\n")
	}
	out.Write(f.buf.Bytes())

	path := g.pkg + "/" + name
	src, err := Format(path, out.Bytes())
	if err != nil {
		return File{}, err
	}
	return File{Path: path, Content: src}, nil
}

// Format gofmts generated source and normalizes its import block. Failures
// are *EmitError values with code ERR_EMIT_FORMAT.
func Format(path string, src []byte) ([]byte, error) {
	out, err := format.Source(src)
	if err != nil {
		return nil, &EmitError{Code: ErrCodeFormat, Decl: path, Message: "generated source does not parse", Err: err}
	}
	out, err = imports.Process(path, out, &imports.Options{FormatOnly: true, Comments: true, TabIndent: true, TabWidth: 8})
	if err != nil {
		return nil, &EmitError{Code: ErrCodeFormat, Decl: path, Message: "import grouping failed", Err: err}
	}
	return out, nil
}

// Header returns the generated-code marker line for generator version v.
func Header(v string) string {
	return fmt.Sprintf("// Code generated by cwgen %s. DO NOT EDIT.\n", displayVersion(v))
}

func displayVersion(v string) string {
	if v == "" {
		v = "dev"
	}
	if v[0] >= '0' && v[0] <= '9' {
		v = "v" + v
	}
	return v
}

func (g *generator) source() string {
	parts := []string{g.c.Name}
	if g.c.ContractName != "" && g.c.ContractName != g.c.Name {
		parts = append(parts, "("+g.c.ContractName+")")
	}
	if g.c.ContractVersion != "" {
		parts = append(parts, g.c.ContractVersion)
	}
	return strings.Join(parts, " ")
}

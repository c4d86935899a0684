// Package bundle renders the aggregation file that re-exports every
// successfully generated contract package under one import.
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/permissionlessweb/bs-accounts/pkg/emit"
	"github.com/permissionlessweb/bs-accounts/pkg/naming"
)

// Defaults applied when the manifest leaves bundle options empty.
const (
	DefaultFile  = "index.go"
	DefaultScope = "contracts"
)

// Options configures the bundle artifact.
type Options struct {
	// File is the file name written at the output root.
	File string
	// Scope is the Go package name of the bundle.
	Scope string
	// GoPackage is the import path of the output root.
	GoPackage string
	// Version is written into the generated-code header.
	Version string
}

func (o Options) withDefaults() Options {
	if o.File == "" {
		o.File = DefaultFile
	}
	if o.Scope == "" {
		o.Scope = DefaultScope
	}
	return o
}

// ErrNoGoPackage is returned when the output root has no import path.
var ErrNoGoPackage = errors.New("bundle: goPackage is required to import contract packages")

// Build renders the bundle over bindings, which must be the successful
// contracts in manifest order. The bundle lives in Scope at the output
// root, so contract files sit under sibling directories.
func Build(bindings []*emit.Binding, opts Options) (emit.File, error) {
	opts = opts.withDefaults()
	if opts.GoPackage == "" {
		return emit.File{}, ErrNoGoPackage
	}
	scope := naming.Package(opts.Scope)
	if scope == "" {
		return emit.File{}, fmt.Errorf("bundle: scope %q is not a valid package name", opts.Scope)
	}

	var body bytes.Buffer
	seen := map[string]string{"ContractInfo": "the bundle", "Contracts": "the bundle"}
	declare := func(ident, owner string) error {
		if prev, ok := seen[ident]; ok {
			return fmt.Errorf("bundle: %s and %s both export %s", prev, owner, ident)
		}
		seen[ident] = owner
		return nil
	}
	for _, b := range bindings {
		if b.Package == scope {
			return emit.File{}, fmt.Errorf("bundle: contract %s uses the bundle package name %s", b.Contract, scope)
		}
		prefix := naming.Exported(b.Contract)
		fmt.Fprintf(&body, "// %s\n\n", b.Contract)

		var types [][2]string
		for _, m := range b.Exports.Messages {
			types = append(types, [2]string{prefix + m, m})
		}
		for _, api := range []string{b.Exports.MessageComposer, b.Exports.QueryComposer, b.Exports.QueryClient, b.Exports.Client} {
			if api != "" {
				types = append(types, [2]string{api, api})
			}
		}
		if len(types) > 0 {
			body.WriteString("type (\n")
			for _, t := range types {
				if err := declare(t[0], b.Contract); err != nil {
					return emit.File{}, err
				}
				fmt.Fprintf(&body, "\t%s = %s.%s\n", t[0], b.Package, t[1])
			}
			body.WriteString(")\n\n")
		}

		var ctors []string
		for _, api := range []string{b.Exports.MessageComposer, b.Exports.QueryComposer, b.Exports.QueryClient, b.Exports.Client} {
			if api != "" {
				ctors = append(ctors, "New"+api)
			}
		}
		if len(ctors) > 0 {
			body.WriteString("var (\n")
			for _, c := range ctors {
				if err := declare(c, b.Contract); err != nil {
					return emit.File{}, err
				}
				fmt.Fprintf(&body, "\t%s = %s.%s\n", c, b.Package, c)
			}
			body.WriteString(")\n\n")
		}
	}

	var out bytes.Buffer
	out.WriteString(emit.Header(opts.Version))
	out.WriteString("\n")
	fmt.Fprintf(&out, "// Package %s re-exports the generated contract bindings.\n", scope)
	fmt.Fprintf(&out, "package %s\n\n", scope)
	if slices.ContainsFunc(bindings, exports) {
		out.WriteString("import (\n")
		for _, b := range bindings {
			if exports(b) {
				fmt.Fprintf(&out, "\t%q\n", path.Join(opts.GoPackage, b.Package))
			}
		}
		out.WriteString(")\n\n")
	}
	out.WriteString("// ContractInfo identifies one bundled contract and the schema it was\n")
	out.WriteString("// generated from.\n")
	out.WriteString("type ContractInfo struct {\n\tName        string\n\tPackage     string\n\tFingerprint string\n}\n\n")
	out.WriteString("// Contracts lists the bundled contracts in manifest order.\n")
	out.WriteString("var Contracts = []ContractInfo{\n")
	for _, b := range bindings {
		fmt.Fprintf(&out, "\t{Name: %q, Package: %q, Fingerprint: %q},\n", b.Contract, b.Package, b.Fingerprint)
	}
	out.WriteString("}\n\n")
	out.Write(body.Bytes())

	name := strings.TrimPrefix(path.Clean("/"+opts.File), "/")
	src, err := emit.Format(name, out.Bytes())
	if err != nil {
		return emit.File{}, err
	}
	return emit.File{Path: name, Content: src}, nil
}

// exports reports whether the bundle refers to anything in b's package.
func exports(b *emit.Binding) bool {
	e := b.Exports
	return len(e.Messages) > 0 || e.MessageComposer != "" || e.QueryComposer != "" || e.QueryClient != "" || e.Client != ""
}

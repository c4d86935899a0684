package bundle_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permissionlessweb/bs-accounts/pkg/bundle"
	"github.com/permissionlessweb/bs-accounts/pkg/emit"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
)

func binding(t *testing.T, name, dir string) *emit.Binding {
	t.Helper()
	c, err := schema.Load(name, filepath.Join("..", "schema", "testdata", dir))
	require.NoError(t, err)
	b, err := emit.Generate(c, emit.DefaultOptions("0.1.0"))
	require.NoError(t, err)
	return b
}

func TestBuild(t *testing.T) {
	account := binding(t, "Bs721Account", "account")
	minter := binding(t, "AccountMinter", "split")

	f, err := bundle.Build([]*emit.Binding{account, minter}, bundle.Options{
		GoPackage: "github.com/acme/app/gen",
		Version:   "0.1.0",
	})
	require.NoError(t, err)
	assert.Equal(t, "index.go", f.Path)

	src := string(f.Content)
	_, err = parser.ParseFile(token.NewFileSet(), f.Path, f.Content, parser.ParseComments)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(src, "// Code generated by cwgen v0.1.0. DO NOT EDIT.\n"))
	assert.Contains(t, src, "package contracts")
	assert.Contains(t, src, `"github.com/acme/app/gen/bs721account"`)
	assert.Contains(t, src, `"github.com/acme/app/gen/accountminter"`)
	assert.Regexp(t, `Bs721AccountExecuteMsg\s+= bs721account\.ExecuteMsg`, src)
	assert.Regexp(t, `AccountMinterInstantiateMsg\s+= accountminter\.InstantiateMsg`, src)
	assert.Regexp(t, `NewBs721AccountMessageComposer\s+= bs721account\.NewBs721AccountMessageComposer`, src)
	assert.Regexp(t, `NewAccountMinterClient\s+= accountminter\.NewAccountMinterClient`, src)

	// Manifest order is kept.
	first := strings.Index(src, `{Name: "Bs721Account"`)
	second := strings.Index(src, `{Name: "AccountMinter"`)
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
	assert.Contains(t, src, account.Fingerprint)
}

func TestBuild_Options(t *testing.T) {
	account := binding(t, "Bs721Account", "account")

	f, err := bundle.Build([]*emit.Binding{account}, bundle.Options{
		GoPackage: "example.com/gen",
		File:      "all.go",
		Scope:     "bindings",
	})
	require.NoError(t, err)
	assert.Equal(t, "all.go", f.Path)
	assert.Contains(t, string(f.Content), "package bindings")
	assert.Contains(t, string(f.Content), "cwgen dev.")

	_, err = bundle.Build([]*emit.Binding{account}, bundle.Options{})
	assert.ErrorIs(t, err, bundle.ErrNoGoPackage)

	_, err = bundle.Build([]*emit.Binding{account}, bundle.Options{GoPackage: "example.com/gen", Scope: "bs721account"})
	assert.ErrorContains(t, err, "bundle package name")
}

func TestBuild_Empty(t *testing.T) {
	f, err := bundle.Build(nil, bundle.Options{GoPackage: "example.com/gen"})
	require.NoError(t, err)
	assert.NotContains(t, string(f.Content), "import")
	assert.Regexp(t, `var Contracts = \[\]ContractInfo\{\s*\}`, string(f.Content))
}

func TestBuild_Collision(t *testing.T) {
	a := &emit.Binding{Contract: "Foo", Package: "foo", Exports: emit.Exports{Messages: []string{"BarMsg"}}}
	b := &emit.Binding{Contract: "FooBar", Package: "foobar", Exports: emit.Exports{Messages: []string{"Msg"}}}

	_, err := bundle.Build([]*emit.Binding{a, b}, bundle.Options{GoPackage: "example.com/gen"})
	assert.ErrorContains(t, err, "both export FooBarMsg")
}

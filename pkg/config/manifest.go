package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/permissionlessweb/bs-accounts/pkg/naming"
)

// ErrInvalidManifest marks manifest validation failures.
var ErrInvalidManifest = errors.New("invalid manifest")

// DefaultOutPath is used when the manifest names no output directory.
const DefaultOutPath = "gen"

// Manifest is the codegen configuration: which contracts to compile and
// which artifacts to emit.
type Manifest struct {
	Contracts []ContractEntry `yaml:"contracts" json:"contracts"`
	OutPath   string          `yaml:"outPath" json:"outPath"`
	GoPackage string          `yaml:"goPackage" json:"goPackage"`
	Options   Options         `yaml:"options" json:"options"`

	// Path is the file the manifest was read from, empty when built in code.
	Path string `yaml:"-" json:"-"`
}

// ContractEntry names one contract and the directory (or IDL file) holding
// its schemas.
type ContractEntry struct {
	Name string `yaml:"name" json:"name"`
	Dir  string `yaml:"dir" json:"dir"`
}

// Options selects the emitted artifacts.
type Options struct {
	Bundle          *BundleOptions `yaml:"bundle,omitempty" json:"bundle,omitempty"`
	Types           Toggle         `yaml:"types" json:"types"`
	Client          Toggle         `yaml:"client" json:"client"`
	MessageComposer Toggle         `yaml:"messageComposer" json:"messageComposer"`
}

// BundleOptions configures the aggregation file. Its presence enables it.
type BundleOptions struct {
	BundleFile string `yaml:"bundleFile,omitempty" json:"bundleFile,omitempty"`
	Scope      string `yaml:"scope,omitempty" json:"scope,omitempty"`
}

// Toggle is an artifact switch. An unset toggle is enabled.
type Toggle struct {
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// On reports whether the artifact is enabled.
func (t Toggle) On() bool {
	return t.Enabled == nil || *t.Enabled
}

// LoadManifest reads a YAML or JSON manifest. Relative contract dirs and
// outPath resolve against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&m)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&m)
	}
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.Path = path

	base := filepath.Dir(path)
	if m.OutPath == "" {
		m.OutPath = DefaultOutPath
	}
	m.OutPath = resolve(base, m.OutPath)
	for i := range m.Contracts {
		if m.Contracts[i].Dir != "" {
			m.Contracts[i].Dir = resolve(base, m.Contracts[i].Dir)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// Validate checks the manifest before any work starts: contract names are
// present and unique, schema dirs are named, and no two contracts share an
// output package.
func (m *Manifest) Validate() error {
	if len(m.Contracts) == 0 {
		return fmt.Errorf("%w: no contracts", ErrInvalidManifest)
	}
	names := make(map[string]int, len(m.Contracts))
	packages := make(map[string]string, len(m.Contracts))
	for i, c := range m.Contracts {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: contracts[%d]: name is required", ErrInvalidManifest, i)
		}
		if c.Dir == "" {
			return fmt.Errorf("%w: contract %s: dir is required", ErrInvalidManifest, c.Name)
		}
		if prev, ok := names[c.Name]; ok {
			return fmt.Errorf("%w: contract %s listed at %d and %d", ErrInvalidManifest, c.Name, prev, i)
		}
		names[c.Name] = i

		pkg := naming.Package(c.Name)
		if pkg == "" {
			return fmt.Errorf("%w: contract %s yields no package name", ErrInvalidManifest, c.Name)
		}
		if prev, ok := packages[pkg]; ok {
			return fmt.Errorf("%w: contracts %s and %s both write package %s", ErrInvalidManifest, prev, c.Name, pkg)
		}
		packages[pkg] = c.Name
	}
	if b := m.Options.Bundle; b != nil {
		if m.GoPackage == "" {
			return fmt.Errorf("%w: bundle requires goPackage", ErrInvalidManifest)
		}
		scope := b.Scope
		if scope == "" {
			scope = "contracts"
		}
		if owner, ok := packages[naming.Package(scope)]; ok {
			return fmt.Errorf("%w: bundle scope %s collides with contract %s", ErrInvalidManifest, scope, owner)
		}
	}
	return nil
}

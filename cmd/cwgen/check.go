package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/permissionlessweb/bs-accounts/pkg/canonicalize"
	"github.com/permissionlessweb/bs-accounts/pkg/naming"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
)

type messageJSON struct {
	Kind     string   `json:"kind"`
	Name     string   `json:"name"`
	Union    bool     `json:"union"`
	Variants []string `json:"variants,omitempty"`
	Fields   []string `json:"fields,omitempty"`
}

type checkJSON struct {
	Contract        string           `json:"contract"`
	ContractName    string           `json:"contract_name,omitempty"`
	ContractVersion string           `json:"contract_version,omitempty"`
	IDLVersion      string           `json:"idl_version,omitempty"`
	Package         string           `json:"package"`
	Fingerprint     string           `json:"fingerprint"`
	Messages        []messageJSON    `json:"messages"`
	Definitions     int              `json:"definitions"`
	Warnings        []schema.Warning `json:"warnings,omitempty"`
}

// runCheckCmd implements `cwgen check`: ingest only, no output files.
func runCheckCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("check", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		schemaPath string
		name       string
		jsonOutput bool
	)
	cmd.StringVar(&schemaPath, "schema", "", "Schema directory or IDL file (REQUIRED)")
	cmd.StringVar(&name, "name", "", "Contract name (default: derived from the schema path)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if schemaPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -schema is required")
		return 2
	}

	c, err := schema.Load(contractName(name, schemaPath), schemaPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	out := checkJSON{
		Contract:        c.Name,
		ContractName:    c.ContractName,
		ContractVersion: c.ContractVersion,
		IDLVersion:      c.IDLVersion,
		Package:         naming.Package(c.Name),
		Fingerprint:     c.Fingerprint,
		Definitions:     len(c.Definitions),
		Warnings:        c.Warnings,
	}
	for _, m := range c.Messages {
		mj := messageJSON{Kind: m.Kind.String(), Name: m.Name, Union: m.Union}
		for _, v := range m.Variants {
			mj.Variants = append(mj.Variants, v.Tag)
		}
		for _, f := range m.Fields {
			mj.Fields = append(mj.Fields, f.Name)
		}
		out.Messages = append(out.Messages, mj)
	}

	if jsonOutput {
		return writeJSON(stdout, out)
	}

	_, _ = fmt.Fprintf(stdout, "%s (package %s, %s)\n", out.Contract, out.Package, canonicalize.Short(out.Fingerprint))
	if out.ContractName != "" {
		_, _ = fmt.Fprintf(stdout, "  contract: %s %s\n", out.ContractName, out.ContractVersion)
	}
	for _, m := range out.Messages {
		if m.Union {
			_, _ = fmt.Fprintf(stdout, "  %-11s %s: %s\n", m.Kind, m.Name, strings.Join(m.Variants, ", "))
		} else {
			_, _ = fmt.Fprintf(stdout, "  %-11s %s {%s}\n", m.Kind, m.Name, strings.Join(m.Fields, ", "))
		}
	}
	_, _ = fmt.Fprintf(stdout, "  %d definitions\n", out.Definitions)
	for _, w := range out.Warnings {
		_, _ = fmt.Fprintf(stdout, "  warning %s at %s: %s\n", w.Code, w.Path, w.Message)
	}
	return 0
}

// contractName returns name, or an exported name derived from the schema
// path. A trailing "schema" directory names its parent.
func contractName(name, schemaPath string) string {
	if name != "" {
		return name
	}
	clean := filepath.Clean(schemaPath)
	base := strings.TrimSuffix(filepath.Base(clean), filepath.Ext(clean))
	if base == "schema" || base == "raw" {
		return contractName("", filepath.Dir(clean))
	}
	return naming.Exported(base)
}

package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/permissionlessweb/bs-accounts/pkg/composer"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
	"github.com/permissionlessweb/bs-accounts/pkg/wasmbind"
)

// runComposeCmd implements `cwgen compose`: it prints an execute envelope,
// a smart query (-query) or a bare payload of another kind (-kind) as JSON.
func runComposeCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("compose", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		schemaPath string
		name       string
		sender     string
		contract   string
		method     string
		params     string
		funds      string
		query      bool
		kind       string
	)
	cmd.StringVar(&schemaPath, "schema", "", "Schema directory or IDL file (REQUIRED)")
	cmd.StringVar(&name, "name", "", "Contract name (default: derived from the schema path)")
	cmd.StringVar(&sender, "sender", "", "Sender address of the execute message")
	cmd.StringVar(&contract, "contract", "", "Contract address (REQUIRED for execute and query)")
	cmd.StringVar(&method, "msg", "", "Method in camelCase or snake_case, e.g. transferNft")
	cmd.StringVar(&params, "args", "{}", "Method parameters as a JSON object")
	cmd.StringVar(&funds, "funds", "", "Attached funds, e.g. 10ubtsg,5uatom")
	cmd.BoolVar(&query, "query", false, "Build a smart query instead of an execute envelope")
	cmd.StringVar(&kind, "kind", "", "Print the bare payload of this message kind (instantiate, migrate, sudo)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if schemaPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -schema is required")
		return 2
	}

	p, err := composer.ParseParams([]byte(params))
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: -args: %v\n", err)
		return 2
	}
	coins, err := wasmbind.ParseCoins(funds)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: -funds: %v\n", err)
		return 2
	}

	var payloadKind schema.Kind
	switch kind {
	case "":
		if contract == "" {
			_, _ = fmt.Fprintln(stderr, "Error: -contract is required")
			return 2
		}
		if method == "" {
			_, _ = fmt.Fprintln(stderr, "Error: -msg is required")
			return 2
		}
		if !query && sender == "" {
			_, _ = fmt.Fprintln(stderr, "Error: -sender is required for execute messages")
			return 2
		}
	case "instantiate":
		payloadKind = schema.KindInstantiate
	case "migrate":
		payloadKind = schema.KindMigrate
	case "sudo":
		payloadKind = schema.KindSudo
	default:
		_, _ = fmt.Fprintf(stderr, "Error: -kind must be instantiate, migrate or sudo, got %q\n", kind)
		return 2
	}

	c, err := schema.Load(contractName(name, schemaPath), schemaPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	comp := composer.New(c, sender, contract)

	var out any
	switch {
	case kind != "":
		out, err = comp.Payload(payloadKind, method, p)
	case query:
		out, err = comp.Query(method, p)
	default:
		out, err = comp.Execute(method, p, coins)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return writeJSON(stdout, out)
}

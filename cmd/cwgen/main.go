// Command cwgen compiles CosmWasm contract schemas into Go bindings.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/permissionlessweb/bs-accounts/pkg/versioning"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches a subcommand and returns the process exit code:
// 0 on success, 1 when work failed, 2 on usage or configuration errors.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "generate", "gen":
		return runGenerateCmd(args[2:], stdout, stderr)
	case "check":
		return runCheckCmd(args[2:], stdout, stderr)
	case "compose":
		return runComposeCmd(args[2:], stdout, stderr)
	case "version", "--version":
		return runVersionCmd(args[2:], stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "cwgen %s - CosmWasm schema to Go binding compiler\n\n", versioning.Version)
	_, _ = fmt.Fprintln(w, "USAGE:")
	_, _ = fmt.Fprintln(w, "  cwgen <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "COMMANDS:")
	printCommand(w, "generate", "Generate bindings for every contract in a manifest (-config, -out, -parallel, -json)")
	printCommand(w, "check", "Ingest one schema and list its messages and warnings (-schema, -json)")
	printCommand(w, "compose", "Build an execute envelope or smart query from a schema (-schema, -msg, -args)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
}

func printCommand(w io.Writer, name, desc string) {
	_, _ = fmt.Fprintf(w, "  %-10s %s\n", name, desc)
}

func runVersionCmd(args []string, stdout io.Writer) int {
	info := versioning.Current()
	if len(args) > 0 && (args[0] == "-json" || args[0] == "--json") {
		return writeJSON(stdout, info)
	}
	_, _ = fmt.Fprintf(stdout, "cwgen %s\n", info.Version)
	if info.Commit != "" {
		_, _ = fmt.Fprintf(stdout, "commit: %s\n", info.Commit)
	}
	_, _ = fmt.Fprintf(stdout, "go: %s\n", info.GoVersion)
	_, _ = fmt.Fprintf(stdout, "idl: %s\n", info.IDL)
	return 0
}

func writeJSON(w io.Writer, v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return 2
	}
	_, _ = fmt.Fprintln(w, string(data))
	return 0
}

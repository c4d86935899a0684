package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	accountDir = filepath.Join("..", "..", "pkg", "schema", "testdata", "account")
	splitDir   = filepath.Join("..", "..", "pkg", "schema", "testdata", "split")
)

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"cwgen"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Dispatch(t *testing.T) {
	code, _, stderr := run()
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "USAGE")

	code, stdout, _ := run("help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "generate")
	assert.Contains(t, stdout, "compose")

	code, _, stderr = run("frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
}

func TestVersion(t *testing.T) {
	code, stdout, _ := run("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "cwgen ")
	assert.Contains(t, stdout, "idl: ^1.0.0-0")

	code, stdout, _ = run("version", "-json")
	assert.Equal(t, 0, code)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Contains(t, info, "version")
}

func TestCheck(t *testing.T) {
	code, stdout, stderr := run("check", "-schema", accountDir, "-name", "Bs721Account")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Bs721Account (package bs721account")
	assert.Contains(t, stdout, "transfer_nft, send_nft, approve")
	assert.Contains(t, stdout, "owner_of, num_tokens, minter")

	code, stdout, _ = run("check", "-schema", splitDir, "-json")
	require.Equal(t, 0, code)
	var out checkJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "Split", out.Contract)
	assert.NotEmpty(t, out.Messages)
	assert.Contains(t, out.Fingerprint, "sha256:")
}

func TestCheck_Errors(t *testing.T) {
	code, _, stderr := run("check")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "-schema is required")

	code, _, stderr = run("check", "-schema", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "ERR_SCHEMA_READ")
}

func TestCompose_Execute(t *testing.T) {
	code, stdout, stderr := run("compose",
		"-schema", accountDir,
		"-sender", "sender1",
		"-contract", "contract1",
		"-msg", "transferNft",
		"-args", `{"recipient":"addr1","tokenId":"7"}`,
	)
	require.Equal(t, 0, code, stderr)

	var env struct {
		TypeURL string `json:"typeUrl"`
		Value   struct {
			Sender   string          `json:"sender"`
			Contract string          `json:"contract"`
			Msg      json.RawMessage `json:"msg"`
			Funds    []any           `json:"funds"`
		} `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &env))
	assert.Equal(t, "/cosmwasm.wasm.v1.MsgExecuteContract", env.TypeURL)
	assert.Equal(t, "sender1", env.Value.Sender)
	assert.Equal(t, "contract1", env.Value.Contract)
	assert.JSONEq(t, `{"transfer_nft":{"recipient":"addr1","token_id":"7"}}`, string(env.Value.Msg))
	assert.NotNil(t, env.Value.Funds)
	assert.Empty(t, env.Value.Funds)
}

func TestCompose_QueryAndKind(t *testing.T) {
	code, stdout, stderr := run("compose", "-schema", accountDir, "-contract", "c1", "-msg", "numTokens", "-query")
	require.Equal(t, 0, code, stderr)
	assert.JSONEq(t, `{"contract":"c1","msg":{"num_tokens":{}}}`, stdout)

	code, stdout, stderr = run("compose", "-schema", accountDir, "-kind", "instantiate",
		"-args", `{"name":"accounts","symbol":"BSA","minter":"m"}`)
	require.Equal(t, 0, code, stderr)
	assert.JSONEq(t, `{"name":"accounts","symbol":"BSA","minter":"m"}`, stdout)
}

func TestCompose_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"no schema", []string{"-msg", "x"}, 2, "-schema is required"},
		{"no contract", []string{"-schema", accountDir, "-msg", "approve"}, 2, "-contract is required"},
		{"no sender", []string{"-schema", accountDir, "-contract", "c", "-msg", "approve"}, 2, "-sender is required"},
		{"bad args", []string{"-schema", accountDir, "-args", "[1]"}, 2, "-args"},
		{"bad funds", []string{"-schema", accountDir, "-funds", "ten"}, 2, "-funds"},
		{"bad kind", []string{"-schema", accountDir, "-kind", "execute"}, 2, "-kind"},
		{"unknown method", []string{"-schema", accountDir, "-contract", "c", "-sender", "s", "-msg", "burn"}, 1, "unknown method"},
		{"missing field", []string{"-schema", accountDir, "-contract", "c", "-sender", "s", "-msg", "transferNft", "-args", `{"recipient":"a"}`}, 1, "missing required field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(append([]string{"compose"}, tt.args...)...)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func writeManifest(t *testing.T, contracts string) string {
	t.Helper()
	dir := t.TempDir()
	account, err := filepath.Abs(accountDir)
	require.NoError(t, err)
	manifest := fmt.Sprintf(`contracts:
  - name: Bs721Account
    dir: %s
%soutPath: ./gen
goPackage: github.com/acme/app/gen
options:
  bundle: {}
`, account, contracts)
	path := filepath.Join(dir, "codegen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o600))
	return path
}

func TestGenerate(t *testing.T) {
	t.Setenv("CWGEN_OUTPUT_STORAGE", "fs")
	t.Setenv("CWGEN_OTEL_ENABLED", "false")
	t.Setenv("CWGEN_LOG_LEVEL", "ERROR")

	path := writeManifest(t, "")
	code, stdout, stderr := run("generate", "-config", path, "-parallel", "1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "ok    Bs721Account -> bs721account (3 files)")
	assert.Contains(t, stdout, "1 generated, 0 failed")

	gen := filepath.Join(filepath.Dir(path), "gen")
	assert.FileExists(t, filepath.Join(gen, "bs721account", "types.go"))
	assert.FileExists(t, filepath.Join(gen, "index.go"))
}

func TestGenerate_FailureIsReported(t *testing.T) {
	t.Setenv("CWGEN_OUTPUT_STORAGE", "fs")
	t.Setenv("CWGEN_LOG_LEVEL", "ERROR")

	broken := t.TempDir()
	doc := `{"idl_version":"1.0.0","execute":{"oneOf":[{"type":"object","required":["a","b"],"properties":{"a":{"type":"object"},"b":{"type":"object"}}}]}}`
	require.NoError(t, os.WriteFile(filepath.Join(broken, "broken.json"), []byte(doc), 0o600))

	path := writeManifest(t, fmt.Sprintf("  - name: Broken\n    dir: %s\n", broken))
	out := t.TempDir()
	code, stdout, _ := run("generate", "-config", path, "-out", out, "-json")
	assert.Equal(t, 1, code)

	var report struct {
		RunID     string `json:"run_id"`
		Generated int    `json:"generated"`
		Failed    int    `json:"failed"`
		Errors    []struct {
			Contract string `json:"contract"`
			Code     string `json:"code"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "Broken", report.Errors[0].Contract)
	assert.Equal(t, "ERR_SCHEMA_UNION", report.Errors[0].Code)
	assert.FileExists(t, filepath.Join(out, "bs721account", "types.go"))
	assert.FileExists(t, filepath.Join(out, "index.go"))
}

func TestGenerate_InstallsDefaultLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	t.Setenv("CWGEN_OUTPUT_STORAGE", "fs")
	t.Setenv("CWGEN_LOG_FORMAT", "json")
	t.Setenv("CWGEN_LOG_LEVEL", "INFO")

	var stdout, stderr bytes.Buffer
	code := Run([]string{"cwgen", "generate", "-config", writeManifest(t, ""), "-out", t.TempDir()}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stderr.String(), `"msg":"batch started"`)

	// Packages logging through slog.Default share the configured handler.
	stderr.Reset()
	slog.Info("after generate")
	assert.Contains(t, stderr.String(), `"msg":"after generate"`)
}

func TestGenerate_ConfigErrors(t *testing.T) {
	code, _, stderr := run("generate", "-config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "load manifest")

	code, _, _ = run("generate", "-bogus")
	assert.Equal(t, 2, code)

	t.Setenv("CWGEN_OUTPUT_STORAGE", "s3")
	t.Setenv("CWGEN_S3_BUCKET", "")
	code, _, stderr = run("generate", "-config", writeManifest(t, ""))
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "CWGEN_S3_BUCKET")
}

func TestContractName(t *testing.T) {
	assert.Equal(t, "Given", contractName("Given", "x"))
	assert.Equal(t, "Bs721Account", contractName("", filepath.Join("contracts", "bs721-account", "schema")))
	assert.Equal(t, "Bs721Account", contractName("", filepath.Join("schemas", "bs721_account.json")))
}

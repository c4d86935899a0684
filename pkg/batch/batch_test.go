package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/permissionlessweb/bs-accounts/pkg/artifacts"
	"github.com/permissionlessweb/bs-accounts/pkg/batch"
	"github.com/permissionlessweb/bs-accounts/pkg/config"
	"github.com/permissionlessweb/bs-accounts/pkg/observability"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
	"github.com/permissionlessweb/bs-accounts/pkg/versioning"
)

var (
	accountDir = filepath.Join("..", "schema", "testdata", "account")
	splitDir   = filepath.Join("..", "schema", "testdata", "split")
)

// malformed writes a schema whose execute branch is not a single-key
// object.
func malformed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	doc := `{"idl_version":"1.0.0","execute":{"oneOf":[{"type":"object","required":["a","b"],"properties":{"a":{"type":"object"},"b":{"type":"object"}}}]}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(doc), 0o600))
	return dir
}

func sink(t *testing.T) (*artifacts.FileSink, string) {
	t.Helper()
	out := t.TempDir()
	s, err := artifacts.NewFileSink(out)
	require.NoError(t, err)
	return s, out
}

func TestRun(t *testing.T) {
	s, out := sink(t)
	m := &config.Manifest{
		Contracts: []config.ContractEntry{
			{Name: "Bs721Account", Dir: accountDir},
			{Name: "AccountMinter", Dir: splitDir},
		},
		GoPackage: "github.com/acme/app/gen",
		Options:   config.Options{Bundle: &config.BundleOptions{}},
	}

	report, err := batch.New(s, batch.Options{Parallelism: 2, Version: "0.1.0"}).Run(context.Background(), m)
	require.NoError(t, err)
	require.True(t, report.OK())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Generated())

	require.Len(t, report.Results, 2)
	assert.Equal(t, "Bs721Account", report.Results[0].Contract)
	assert.Equal(t, "AccountMinter", report.Results[1].Contract)
	assert.Len(t, report.Results[0].Files, 3)
	assert.Contains(t, report.Results[0].Fingerprint, "sha256:")
	assert.NotEmpty(t, report.Results[1].Warnings)

	for _, p := range []string{
		"bs721account/types.go", "bs721account/message_composer.go", "bs721account/client.go",
		"accountminter/types.go", "index.go",
	} {
		assert.FileExists(t, filepath.Join(out, filepath.FromSlash(p)))
	}
	require.NotNil(t, report.Bundle)
	assert.Equal(t, "index.go", report.Bundle.Path)
}

// TestRun_Isolation checks that one malformed contract yields exactly one
// failure while every other contract is written.
func TestRun_Isolation(t *testing.T) {
	s, out := sink(t)
	m := &config.Manifest{
		Contracts: []config.ContractEntry{
			{Name: "Bs721Account", Dir: accountDir},
			{Name: "Broken", Dir: malformed(t)},
			{Name: "AccountMinter", Dir: splitDir},
		},
		GoPackage: "github.com/acme/app/gen",
		Options:   config.Options{Bundle: &config.BundleOptions{}},
	}

	report, err := batch.New(s, batch.Options{Parallelism: 3}).Run(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed())
	assert.False(t, report.OK())

	failed := report.Results[1]
	require.NotNil(t, failed.Err)
	assert.Equal(t, "Broken", failed.Err.Contract)
	assert.Equal(t, batch.StageIngest, failed.Err.Stage)
	assert.Equal(t, schema.ErrCodeUnion, failed.Err.Code())
	assert.True(t, errors.Is(failed.Err, schema.ErrSchema))
	assert.Contains(t, failed.Err.Error(), "Broken")
	assert.Empty(t, failed.Files)
	assert.NoDirExists(t, filepath.Join(out, "broken"))

	assert.FileExists(t, filepath.Join(out, "bs721account", "types.go"))
	assert.FileExists(t, filepath.Join(out, "accountminter", "types.go"))

	// The bundle covers the successes only.
	require.Nil(t, report.BundleErr)
	index, err := os.ReadFile(filepath.Join(out, "index.go"))
	require.NoError(t, err)
	assert.NotContains(t, string(index), "broken")
	assert.Contains(t, string(index), "accountminter")
}

func TestRun_Options(t *testing.T) {
	s, out := sink(t)
	off := false
	m := &config.Manifest{
		Contracts: []config.ContractEntry{{Name: "Bs721Account", Dir: accountDir}},
		Options: config.Options{
			Client:          config.Toggle{Enabled: &off},
			MessageComposer: config.Toggle{Enabled: &off},
		},
	}

	report, err := batch.Run(context.Background(), m, s)
	require.NoError(t, err)
	require.True(t, report.OK())
	assert.Len(t, report.Results[0].Files, 1)
	assert.Nil(t, report.Bundle)
	assert.NoFileExists(t, filepath.Join(out, "bs721account", "client.go"))

	// Headers carry the normalized build version by default.
	types, err := os.ReadFile(filepath.Join(out, "bs721account", "types.go"))
	require.NoError(t, err)
	assert.Contains(t, string(types), "cwgen v"+versioning.Semver().String()+".")
}

func TestRun_InvalidManifest(t *testing.T) {
	s, out := sink(t)
	m := &config.Manifest{
		Contracts: []config.ContractEntry{
			{Name: "Bs721Account", Dir: accountDir},
			{Name: "Bs721Account", Dir: splitDir},
		},
	}

	report, err := batch.Run(context.Background(), m, s)
	require.ErrorIs(t, err, config.ErrInvalidManifest)
	assert.Nil(t, report)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_Canceled(t *testing.T) {
	s, _ := sink(t)
	m := &config.Manifest{
		Contracts: []config.ContractEntry{{Name: "Bs721Account", Dir: accountDir}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := batch.Run(ctx, m, s)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, batch.ErrCodeCanceled, report.Results[0].Err.Code())
}

type failingSink struct{ artifacts.Sink }

func (failingSink) Put(context.Context, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func TestRun_WriteFailure(t *testing.T) {
	s, _ := sink(t)
	m := &config.Manifest{
		Contracts: []config.ContractEntry{{Name: "Bs721Account", Dir: accountDir}},
	}

	report, err := batch.Run(context.Background(), m, failingSink{s})
	require.NoError(t, err)
	res := report.Results[0]
	require.NotNil(t, res.Err)
	assert.Equal(t, batch.StageWrite, res.Err.Stage)
	assert.Equal(t, batch.ErrCodeWrite, res.Err.Code())
	assert.Equal(t, "Bs721Account: write: disk full", res.Err.Error())
}

// failOnSink fails Put for one path and delegates everything else.
type failOnSink struct {
	*artifacts.FileSink
	path string
}

func (s failOnSink) Put(ctx context.Context, p string, data []byte) (string, error) {
	if p == s.path {
		return "", errors.New("quota exceeded")
	}
	return s.FileSink.Put(ctx, p, data)
}

func TestRun_WriteFailureRollsBack(t *testing.T) {
	s, out := sink(t)
	ctx := context.Background()
	_, err := s.Put(ctx, "bs721account/types.go", []byte("package bs721account // previous run\n"))
	require.NoError(t, err)

	m := &config.Manifest{
		Contracts: []config.ContractEntry{{Name: "Bs721Account", Dir: accountDir}},
	}
	report, err := batch.Run(ctx, m, failOnSink{FileSink: s, path: "bs721account/client.go"})
	require.NoError(t, err)

	res := report.Results[0]
	require.NotNil(t, res.Err)
	assert.Equal(t, batch.StageWrite, res.Err.Stage)
	assert.Empty(t, res.Files)

	// The overwritten file is restored and the new one removed.
	types, err := os.ReadFile(filepath.Join(out, "bs721account", "types.go"))
	require.NoError(t, err)
	assert.Equal(t, "package bs721account // previous run\n", string(types))
	assert.NoFileExists(t, filepath.Join(out, "bs721account", "message_composer.go"))
	assert.NoFileExists(t, filepath.Join(out, "bs721account", "client.go"))
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestRun_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	telemetry, err := observability.NewWithProviders(tp, sdkmetric.NewMeterProvider())
	require.NoError(t, err)

	s, _ := sink(t)
	m := &config.Manifest{
		Contracts: []config.ContractEntry{
			{Name: "Bs721Account", Dir: accountDir},
			{Name: "Broken", Dir: malformed(t)},
		},
	}
	report, err := batch.New(s, batch.Options{Parallelism: 1, Telemetry: telemetry}).Run(context.Background(), m)
	require.NoError(t, err)

	spans := map[string]map[attribute.Key]attribute.Value{}
	for _, span := range recorder.Ended() {
		attrs := spanAttrs(span)
		spans[attrs[observability.AttrContract].AsString()] = attrs
	}
	require.Len(t, spans, 2)

	ok := spans["Bs721Account"]
	assert.Equal(t, report.RunID, ok[observability.AttrRunID].AsString())
	assert.Equal(t, int64(3), ok[observability.AttrFilesWritten].AsInt64())
	assert.Equal(t, "0.1.0", ok[observability.AttrSchemaVersion].AsString())
	assert.NotContains(t, ok, observability.AttrErrorCode)

	broken := spans["Broken"]
	assert.Equal(t, schema.ErrCodeUnion, broken[observability.AttrErrorCode].AsString())
	assert.NotContains(t, broken, observability.AttrFilesWritten)
}

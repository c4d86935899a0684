// Package batch runs the schema-to-binding pipeline for every contract of a
// manifest. Contracts are processed in parallel and in isolation: a
// failure is recorded in that contract's result and never stops the
// others.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/permissionlessweb/bs-accounts/pkg/artifacts"
	"github.com/permissionlessweb/bs-accounts/pkg/bundle"
	"github.com/permissionlessweb/bs-accounts/pkg/canonicalize"
	"github.com/permissionlessweb/bs-accounts/pkg/config"
	"github.com/permissionlessweb/bs-accounts/pkg/emit"
	"github.com/permissionlessweb/bs-accounts/pkg/naming"
	"github.com/permissionlessweb/bs-accounts/pkg/observability"
	"github.com/permissionlessweb/bs-accounts/pkg/schema"
	"github.com/permissionlessweb/bs-accounts/pkg/versioning"
)

// Pipeline stages named in ContractError.
const (
	StageIngest = "ingest"
	StageEmit   = "emit"
	StageWrite  = "write"
	StageBundle = "bundle"
)

// Codes for failures that carry no schema or emit code.
const (
	ErrCodeWrite    = "ERR_OUTPUT_WRITE"
	ErrCodeCanceled = "ERR_CANCELED"
	ErrCodeBundle   = "ERR_BUNDLE"
)

// ContractError attributes a pipeline failure to one contract and stage.
type ContractError struct {
	Contract string
	Stage    string
	Err      error
}

func (e *ContractError) Error() string {
	var se *schema.SchemaError
	var ee *emit.EmitError
	if errors.As(e.Err, &se) || errors.As(e.Err, &ee) {
		// Already names the contract.
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %v", e.Contract, e.Stage, e.Err)
}

func (e *ContractError) Unwrap() error { return e.Err }

// Code returns the stable code of the underlying failure.
func (e *ContractError) Code() string {
	var se *schema.SchemaError
	if errors.As(e.Err, &se) {
		return se.Code
	}
	var ee *emit.EmitError
	if errors.As(e.Err, &ee) {
		return ee.Code
	}
	switch {
	case errors.Is(e.Err, context.Canceled), errors.Is(e.Err, context.DeadlineExceeded):
		return ErrCodeCanceled
	case e.Stage == StageBundle:
		return ErrCodeBundle
	default:
		return ErrCodeWrite
	}
}

// WrittenFile is one artifact persisted by the sink.
type WrittenFile struct {
	Path     string `json:"path"`
	Location string `json:"location"`
	Hash     string `json:"hash"`
}

// Result is the outcome of one contract.
type Result struct {
	Contract    string           `json:"contract"`
	Package     string           `json:"package"`
	Fingerprint string           `json:"fingerprint,omitempty"`
	Files       []WrittenFile    `json:"files,omitempty"`
	Warnings    []schema.Warning `json:"warnings,omitempty"`
	Duration    time.Duration    `json:"duration_ns"`
	Err         *ContractError   `json:"-"`

	binding *emit.Binding
}

// OK reports whether the contract's bindings were written.
func (r *Result) OK() bool { return r.Err == nil }

// Report summarizes a run. Results follow manifest order.
type Report struct {
	RunID     string         `json:"run_id"`
	Results   []Result       `json:"results"`
	Bundle    *WrittenFile   `json:"bundle,omitempty"`
	BundleErr *ContractError `json:"-"`
}

// Failed counts contracts whose pipeline failed.
func (r *Report) Failed() int {
	n := 0
	for i := range r.Results {
		if !r.Results[i].OK() {
			n++
		}
	}
	return n
}

// Generated counts contracts whose bindings were written.
func (r *Report) Generated() int {
	return len(r.Results) - r.Failed()
}

// OK reports whether every contract and the bundle succeeded.
func (r *Report) OK() bool {
	return r.Failed() == 0 && r.BundleErr == nil
}

// Options tunes a Runner.
type Options struct {
	// Parallelism bounds concurrent contracts; zero means runtime.NumCPU().
	Parallelism int
	// Version is written into generated headers; empty means the build version.
	Version   string
	Telemetry *observability.Provider
	Logger    *slog.Logger
}

// Runner executes manifests against one sink.
type Runner struct {
	sink   artifacts.Sink
	opts   Options
	logger *slog.Logger
}

// New returns a Runner writing to sink.
func New(sink artifacts.Sink, opts Options) *Runner {
	if opts.Parallelism < 1 {
		opts.Parallelism = runtime.NumCPU()
	}
	if opts.Version == "" {
		opts.Version = versioning.Semver().String()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{sink: sink, opts: opts, logger: logger.With("component", "batch")}
}

// Run processes m with default options.
func Run(ctx context.Context, m *config.Manifest, sink artifacts.Sink) (*Report, error) {
	return New(sink, Options{}).Run(ctx, m)
}

// Run validates m, runs every contract and, when configured, writes the
// bundle over the successful ones. The error is non-nil only when the
// manifest is invalid or ctx was canceled; contract failures are in the
// report.
func (r *Runner) Run(ctx context.Context, m *config.Manifest) (*Report, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   uuid.NewString(),
		Results: make([]Result, len(m.Contracts)),
	}
	log := r.logger.With("run_id", report.RunID)
	log.InfoContext(ctx, "batch started", "contracts", len(m.Contracts), "parallelism", r.opts.Parallelism)

	emitOpts := emit.Options{
		Version:         r.opts.Version,
		Types:           m.Options.Types.On(),
		MessageComposer: m.Options.MessageComposer.On(),
		Client:          m.Options.Client.On(),
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Parallelism)
	for i, entry := range m.Contracts {
		g.Go(func() error {
			report.Results[i] = r.contract(ctx, log, report.RunID, entry, emitOpts)
			return nil
		})
	}
	_ = g.Wait()

	if b := m.Options.Bundle; b != nil {
		r.bundle(ctx, log, report, m, b)
	}

	log.InfoContext(ctx, "batch finished", "generated", report.Generated(), "failed", report.Failed())
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (r *Runner) contract(ctx context.Context, log *slog.Logger, runID string, entry config.ContractEntry, opts emit.Options) (res Result) {
	start := time.Now()
	res = Result{Contract: entry.Name, Package: naming.Package(entry.Name)}
	log = log.With("contract", entry.Name)

	ctx, done := r.opts.Telemetry.TrackContract(ctx, entry.Name, observability.AttrRunID.String(runID))
	defer func() {
		res.Duration = time.Since(start)
		if res.Err != nil {
			observability.SetAttributes(ctx, observability.AttrErrorCode.String(res.Err.Code()))
			done(res.Err)
			log.ErrorContext(ctx, "contract failed", "stage", res.Err.Stage, "code", res.Err.Code(), "error", res.Err.Err)
			return
		}
		observability.SetAttributes(ctx, observability.AttrFilesWritten.Int(len(res.Files)))
		done(nil)
		log.InfoContext(ctx, "contract generated", "files", len(res.Files), "fingerprint", canonicalize.Short(res.Fingerprint), "duration", res.Duration)
	}()

	fail := func(stage string, err error) Result {
		res.Err = &ContractError{Contract: entry.Name, Stage: stage, Err: err}
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(StageIngest, err)
	}
	c, err := schema.Load(entry.Name, entry.Dir)
	if err != nil {
		return fail(StageIngest, err)
	}
	res.Fingerprint = c.Fingerprint
	res.Warnings = c.Warnings
	if c.ContractVersion != "" {
		observability.SetAttributes(ctx, observability.AttrSchemaVersion.String(c.ContractVersion))
	}
	for _, w := range c.Warnings {
		log.WarnContext(ctx, "schema warning", "code", w.Code, "path", w.Path, "message", w.Message)
	}
	observability.AddEvent(ctx, "ingested")

	if err := ctx.Err(); err != nil {
		return fail(StageEmit, err)
	}
	b, err := emit.Generate(c, opts)
	if err != nil {
		return fail(StageEmit, err)
	}
	observability.AddEvent(ctx, "emitted")

	var written []prior
	for _, f := range b.Files {
		p, hash, err := r.write(ctx, f)
		if err != nil {
			r.rollback(ctx, log, written)
			res.Files = nil
			return fail(StageWrite, err)
		}
		written = append(written, p)
		res.Files = append(res.Files, WrittenFile{Path: f.Path, Location: r.sink.Location(f.Path), Hash: hash})
	}
	res.binding = b
	return res
}

// prior is the sink content at a path before this run wrote it.
type prior struct {
	path    string
	data    []byte
	existed bool
}

// write records what f.Path held, then replaces it.
func (r *Runner) write(ctx context.Context, f emit.File) (prior, string, error) {
	p := prior{path: f.Path}
	if err := ctx.Err(); err != nil {
		return p, "", err
	}
	ok, err := r.sink.Exists(ctx, f.Path)
	if err != nil {
		return p, "", err
	}
	if ok {
		if p.data, err = r.sink.Get(ctx, f.Path); err != nil {
			return p, "", err
		}
		p.existed = true
	}
	hash, err := r.sink.Put(ctx, f.Path, f.Content)
	return p, hash, err
}

// rollback restores the files a failed contract already wrote, so a
// contract's output is either complete or as it was before the run.
func (r *Runner) rollback(ctx context.Context, log *slog.Logger, written []prior) {
	ctx = context.WithoutCancel(ctx)
	for i := len(written) - 1; i >= 0; i-- {
		p := written[i]
		var err error
		if p.existed {
			_, err = r.sink.Put(ctx, p.path, p.data)
		} else {
			err = r.sink.Delete(ctx, p.path)
		}
		if err != nil {
			log.ErrorContext(ctx, "rollback failed", "path", p.path, "error", err)
		}
	}
	if len(written) > 0 {
		observability.AddEvent(ctx, "rolled back")
	}
}

func (r *Runner) bundle(ctx context.Context, log *slog.Logger, report *Report, m *config.Manifest, opts *config.BundleOptions) {
	var bindings []*emit.Binding
	for i := range report.Results {
		if res := &report.Results[i]; res.OK() {
			bindings = append(bindings, res.binding)
		}
	}
	fail := func(err error) {
		report.BundleErr = &ContractError{Contract: "bundle", Stage: StageBundle, Err: err}
		log.ErrorContext(ctx, "bundle failed", "error", err)
	}

	f, err := bundle.Build(bindings, bundle.Options{
		File:      opts.BundleFile,
		Scope:     opts.Scope,
		GoPackage: m.GoPackage,
		Version:   r.opts.Version,
	})
	if err != nil {
		fail(err)
		return
	}
	hash, err := r.sink.Put(ctx, f.Path, f.Content)
	if err != nil {
		fail(err)
		return
	}
	report.Bundle = &WrittenFile{Path: f.Path, Location: r.sink.Location(f.Path), Hash: hash}
	log.InfoContext(ctx, "bundle written", "path", f.Path, "contracts", len(bindings))
}

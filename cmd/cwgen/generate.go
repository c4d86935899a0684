package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/permissionlessweb/bs-accounts/pkg/artifacts"
	"github.com/permissionlessweb/bs-accounts/pkg/batch"
	"github.com/permissionlessweb/bs-accounts/pkg/config"
	"github.com/permissionlessweb/bs-accounts/pkg/observability"
	"github.com/permissionlessweb/bs-accounts/pkg/versioning"
)

// runGenerateCmd implements `cwgen generate`.
//
// Exit codes:
//
//	0 = every contract (and the bundle) generated
//	1 = at least one contract failed or the run was interrupted
//	2 = usage, manifest or output configuration error
func runGenerateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("generate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		configPath string
		outPath    string
		parallel   int
		jsonOutput bool
	)
	cmd.StringVar(&configPath, "config", "codegen.yaml", "Path to the codegen manifest (YAML or JSON)")
	cmd.StringVar(&outPath, "out", "", "Output directory, overriding the manifest's outPath")
	cmd.IntVar(&parallel, "parallel", 0, "Contracts generated concurrently (default CWGEN_PARALLELISM or CPU count)")
	cmd.BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	if parallel > 0 {
		cfg.Parallelism = parallel
	}
	logger := cfg.Logger(stderr)
	slog.SetDefault(logger)

	m, err := config.LoadManifest(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if outPath != "" {
		m.OutPath = outPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otelCfg := observability.DefaultConfig()
	otelCfg.ServiceVersion = versioning.Semver().String()
	otelCfg.Enabled = cfg.OTelEnabled
	otelCfg.OTLPEndpoint = cfg.OTelEndpoint
	otelCfg.Insecure = cfg.OTelInsecure
	telemetry, err := observability.New(ctx, otelCfg)
	if err != nil {
		logger.WarnContext(ctx, "telemetry disabled", "error", err)
		telemetry = nil
	}
	if telemetry != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = telemetry.Shutdown(shutdownCtx)
		}()
	}

	sink, err := artifacts.NewSinkFromConfig(ctx, cfg, m.OutPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: output: %v\n", err)
		return 2
	}
	if c, ok := sink.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	runner := batch.New(sink, batch.Options{
		Parallelism: cfg.Parallelism,
		Telemetry:   telemetry,
		Logger:      logger,
	})
	report, err := runner.Run(ctx, m)
	if report == nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		writeJSON(stdout, newReportJSON(report))
	} else {
		printReport(stdout, report)
	}

	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: run interrupted: %v\n", err)
		return 1
	}
	if !report.OK() {
		return 1
	}
	return 0
}

type errorJSON struct {
	Contract string `json:"contract"`
	Stage    string `json:"stage"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

type reportJSON struct {
	*batch.Report
	Generated int         `json:"generated"`
	Failed    int         `json:"failed"`
	Errors    []errorJSON `json:"errors,omitempty"`
}

func newReportJSON(r *batch.Report) reportJSON {
	out := reportJSON{Report: r, Generated: r.Generated(), Failed: r.Failed()}
	for i := range r.Results {
		if e := r.Results[i].Err; e != nil {
			out.Errors = append(out.Errors, toErrorJSON(e))
		}
	}
	if r.BundleErr != nil {
		out.Errors = append(out.Errors, toErrorJSON(r.BundleErr))
	}
	return out
}

func toErrorJSON(e *batch.ContractError) errorJSON {
	return errorJSON{Contract: e.Contract, Stage: e.Stage, Code: e.Code(), Message: e.Error()}
}

func printReport(w io.Writer, r *batch.Report) {
	for i := range r.Results {
		res := &r.Results[i]
		if !res.OK() {
			_, _ = fmt.Fprintf(w, "FAIL  %s [%s] %v\n", res.Contract, res.Err.Code(), res.Err)
			continue
		}
		_, _ = fmt.Fprintf(w, "ok    %s -> %s (%d files)\n", res.Contract, res.Package, len(res.Files))
		for _, warning := range res.Warnings {
			_, _ = fmt.Fprintf(w, "      warning %s at %s: %s\n", warning.Code, warning.Path, warning.Message)
		}
	}
	switch {
	case r.BundleErr != nil:
		_, _ = fmt.Fprintf(w, "FAIL  bundle [%s] %v\n", r.BundleErr.Code(), r.BundleErr.Err)
	case r.Bundle != nil:
		_, _ = fmt.Fprintf(w, "ok    bundle -> %s\n", r.Bundle.Location)
	}
	_, _ = fmt.Fprintf(w, "\n%d generated, %d failed (run %s)\n", r.Generated(), r.Failed(), r.RunID)
}

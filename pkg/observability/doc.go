// Package observability provides OpenTelemetry tracing and metrics for
// cwgen batch runs.
//
// Initialize the provider at startup and pass it to the batch runner:
//
//	p, err := observability.New(ctx, &observability.Config{
//		Enabled:      true,
//		OTLPEndpoint: "otel-collector:4317",
//	})
//	defer p.Shutdown(ctx)
//
// Each contract is traced as a cwgen.contract span and counted in
// cwgen.contracts.generated or cwgen.contracts.failed:
//
//	ctx, done := p.TrackContract(ctx, "Bs721Account")
//	err := generate(ctx)
//	done(err)
package observability

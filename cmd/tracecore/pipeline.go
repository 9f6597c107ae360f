package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"tracecore/internal/check"
	"tracecore/internal/lims"
	"tracecore/internal/metrics"
	"tracecore/internal/repair"
	"tracecore/internal/tracegraph"
	"tracecore/pkg/domain"
)

// newRecorder builds the metrics recorder. When --metrics-listen is set a
// prometheus endpoint is served for the duration of the run; otherwise
// events are discarded.
func newRecorder() (metrics.Recorder, func()) {
	addr := viper.GetString("metrics-listen")
	if addr == "" {
		return metrics.Nop{}, func() {}
	}
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	srv := &http.Server{Addr: addr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
	go func() { _ = srv.ListenAndServe() }()
	return rec, func() { _ = srv.Shutdown(context.Background()) }
}

// openClient builds the inventory client from the bound flags, wrapping it
// in the sqlite record cache when a cache path is configured. The returned
// closer releases the cache database.
func openClient(log *slog.Logger, rec metrics.Recorder) (lims.Client, func() error, error) {
	if viper.GetString("lims-url") == "" {
		return nil, nil, fmt.Errorf("inventory URL not configured (--lims-url or TRACECORE_LIMS_URL)")
	}
	client, err := lims.NewHTTPClient(lims.HTTPConfig{
		BaseURL: viper.GetString("lims-url"),
		Token:   viper.GetString("lims-token"),
	}, log)
	if err != nil {
		return nil, nil, err
	}
	if path := viper.GetString("cache"); path != "" {
		cache, err := lims.OpenCache(path, client, log)
		if err != nil {
			return nil, nil, err
		}
		return cache.WithRecorder(rec), cache.Close, nil
	}
	return client, func() error { return nil }, nil
}

// buildTrace assembles the trace for the plan and, unless suppressed, runs
// the repair battery over it with the factory as the rules' resolver.
func buildTrace(ctx context.Context, client lims.Client, planID string, noFix bool, rec metrics.Recorder, log *slog.Logger) (*domain.Trace, error) {
	factory := tracegraph.NewFactory(client, planID, log)
	trace, err := factory.Build(ctx, []string{planID})
	if err != nil {
		return nil, fmt.Errorf("build plan %s: %w", planID, err)
	}
	if noFix {
		log.Warn("heuristic fixes suppressed")
		return trace, nil
	}
	rules := append([]*repair.Rule{repair.ProfileRule(viper.GetString("lab"), viper.GetString("profile"))}, repair.DefaultRules()...)
	engine := repair.NewEngine(log, rules...).WithRecorder(rec)
	engine.Run(ctx, trace, factory)
	return trace, nil
}

// validateTrace runs the consistency checker and reports the outcome on
// stderr. Validation failures never change the exit code; the report is
// advisory and the document is still produced.
func validateTrace(ctx context.Context, trace *domain.Trace, rec metrics.Recorder, log *slog.Logger) (domain.Result, error) {
	result, err := check.Check(ctx, log, trace, nil)
	if err != nil {
		return result, err
	}
	for _, severity := range []domain.Severity{domain.SeverityBlock, domain.SeverityWarn, domain.SeverityLog} {
		for i := 0; i < result.Count(severity); i++ {
			rec.RecordViolation(string(severity))
		}
	}
	if result.HasBlocking() {
		fmt.Fprintf(os.Stderr, "provenance errors found for plan %s: %d blocking, %d warnings\n",
			trace.ExperimentID, result.Count(domain.SeverityBlock), result.Count(domain.SeverityWarn))
	} else {
		fmt.Fprintf(os.Stderr, "no provenance errors found for plan %s\n", trace.ExperimentID)
	}
	return result, nil
}

// outputWriter opens the output file, or stdout when path is empty.
func outputWriter(path string) (*os.File, func() error, error) {
	if path == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, f.Close, nil
}

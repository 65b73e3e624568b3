package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/reprojcheck/internal/crs"
	"github.com/roach88/reprojcheck/internal/harness"
	"github.com/roach88/reprojcheck/internal/metrics"
	"github.com/roach88/reprojcheck/internal/store"
	"github.com/roach88/reprojcheck/internal/transform"
)

// CheckOptions holds flags for the consistency check run by the root
// command.
type CheckOptions struct {
	*RootOptions

	Threads     int
	Iterations  int
	PerWorker   bool
	Source      string
	Target      string
	Samples     int
	Plan        string
	Database    string
	MetricsAddr string

	// Factory overrides the transformation engine (for testing).
	// If nil, defaults to transform.DefaultFactory.
	Factory transform.Factory

	// IDGenerator allows overriding run IDs (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	IDGenerator store.IDGenerator

	// Clock supplies run start times (for testing).
	// If nil, defaults to store.SystemClock.
	Clock store.Clock
}

// CheckResult is the payload printed after a run.
type CheckResult struct {
	RunID    string          `json:"run_id,omitempty"`
	PlanName string          `json:"plan_name,omitempty"`
	Report   *harness.Report `json:"report"`
}

func addCheckFlags(cmd *cobra.Command, opts *CheckOptions) {
	f := cmd.Flags()
	f.IntVar(&opts.Threads, "threads", harness.DefaultThreads, "number of concurrent workers")
	f.IntVar(&opts.Iterations, "iter", harness.DefaultIterations, "total iterations across all workers")
	f.BoolVar(&opts.PerWorker, "createctinthread", false, "construct a new transformation handle on every iteration")
	f.StringVar(&opts.Source, "src", harness.DefaultSource, "source CRS")
	f.StringVar(&opts.Target, "dst", harness.DefaultTarget, "target CRS")
	f.IntVar(&opts.Samples, "samples", harness.DefaultSamples, "number of sample points")
	f.StringVar(&opts.Plan, "plan", "", "YAML run plan; flags set explicitly override plan values")
	f.StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	f.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on host:port during the run")
}

func runCheck(opts *CheckOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg := harness.DefaultConfig()
	var planName string
	if opts.Plan != "" {
		plan, err := harness.LoadPlan(opts.Plan)
		if err != nil {
			code := ErrCodeInvalidPlan
			if errors.Is(err, os.ErrNotExist) {
				code = ErrCodeNotFound
			}
			_ = formatter.Error(code, err.Error(), nil)
			return WrapExitError(ExitCommandError, code, err)
		}
		if cfg, err = plan.Config(); err != nil {
			return fail(formatter, ExitCommandError, err, nil)
		}
		planName = plan.Name
		formatter.VerboseLog("Loaded plan %q from %s", plan.Name, opts.Plan)
	}
	if err := applyCheckFlags(&cfg, opts, cmd.Flags()); err != nil {
		return fail(formatter, ExitCommandError, err, nil)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping workers", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, opts.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	var ledger *store.Store
	if opts.Database != "" {
		var err error
		ledger, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
		}
		defer func() {
			if closeErr := ledger.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	clock := opts.Clock
	if clock == nil {
		clock = store.SystemClock{}
	}
	startedAt := clock.Now()

	record := func(result *CheckResult) error {
		if ledger == nil {
			return nil
		}
		ids := opts.IDGenerator
		if ids == nil {
			ids = store.UUIDv7Generator{}
		}
		rec := newRunRecord(ids.Generate(), planName, startedAt, result.Report)
		// Record even when interrupted: ctx may already be cancelled.
		if err := ledger.RecordRun(context.WithoutCancel(ctx), rec); err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
		}
		result.RunID = rec.ID
		logger.Debug("run recorded", "id", rec.ID, "db", opts.Database)
		return nil
	}

	setupStart := time.Now()
	h, err := harness.New(cfg, opts.Factory, logger)
	if err != nil {
		result := CheckResult{PlanName: planName, Report: setupFailureReport(cfg, err, time.Since(setupStart))}
		if recErr := record(&result); recErr != nil {
			return recErr
		}
		return fail(formatter, ExitCommandError, err, nil)
	}
	defer h.Close()

	report, runErr := h.Run(ctx)

	result := CheckResult{PlanName: planName, Report: report}
	if err := record(&result); err != nil {
		return err
	}

	if runErr != nil {
		exitCode := ExitCommandError
		var violation *harness.ConsistencyViolation
		if errors.As(runErr, &violation) {
			exitCode = ExitFailure
		}
		if formatter.Format == "json" {
			return fail(formatter, exitCode, runErr, result)
		}
		writeCheckText(formatter, result)
		return fail(formatter, exitCode, runErr, nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	writeCheckText(formatter, result)
	return nil
}

// applyCheckFlags overlays flags onto cfg. Without a plan every flag
// applies (defaults included); with a plan only flags the user set do.
func applyCheckFlags(cfg *harness.Config, opts *CheckOptions, flags *pflag.FlagSet) error {
	use := func(name string) bool {
		return opts.Plan == "" || flags.Changed(name)
	}

	if use("threads") {
		cfg.Threads = opts.Threads
	}
	if use("iter") {
		cfg.Iterations = opts.Iterations
	}
	if use("createctinthread") {
		cfg.PerWorkerTransform = opts.PerWorker
	}
	if use("samples") {
		cfg.Samples = opts.Samples
	}
	if use("src") {
		c, err := crs.Parse(opts.Source)
		if err != nil {
			return &harness.ConfigError{Field: "src", Message: err.Error()}
		}
		cfg.Source = c
	}
	if use("dst") {
		c, err := crs.Parse(opts.Target)
		if err != nil {
			return &harness.ConfigError{Field: "dst", Message: err.Error()}
		}
		cfg.Target = c
	}
	return cfg.Validate()
}

// setupFailureReport describes a run whose reference could not be built.
func setupFailureReport(cfg harness.Config, err error, elapsed time.Duration) *harness.Report {
	return &harness.Report{
		Mode:            cfg.Mode(),
		Threads:         cfg.Threads,
		Source:          cfg.Source.Identifier(),
		Target:          cfg.Target.Identifier(),
		Samples:         cfg.Samples,
		IterationTarget: int64(cfg.Iterations),
		PerWorker:       []int64{},
		Outcome:         harness.OutcomeSetupError,
		Failure:         err.Error(),
		Duration:        elapsed,
	}
}

func newRunRecord(id, planName string, startedAt time.Time, report *harness.Report) store.RunRecord {
	return store.RunRecord{
		ID:              id,
		PlanName:        planName,
		Source:          report.Source,
		Target:          report.Target,
		Samples:         report.Samples,
		Threads:         report.Threads,
		IterationTarget: report.IterationTarget,
		Iterations:      report.Iterations,
		Mode:            string(report.Mode),
		ReferenceDigest: report.ReferenceDigest,
		Outcome:         report.Outcome,
		Failure:         report.Failure,
		Duration:        report.Duration,
		StartedAt:       startedAt,
	}
}

func writeCheckText(f *OutputFormatter, result CheckResult) {
	r := result.Report
	w := f.Writer

	handles := "shared handle"
	if r.Mode == harness.ModePerWorker {
		handles = fmt.Sprintf("%d handles", r.HandlesConstructed)
	}

	mark := "✓"
	if !r.Pass() {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s -> %s: %d/%d iterations on %d workers (%s), %d samples, %s\n",
		mark, r.Source, r.Target, r.Iterations, r.IterationTarget, r.Threads, handles, r.Samples, r.Outcome)
	fmt.Fprintf(w, "  reference digest %s\n", r.ReferenceDigest)
	fmt.Fprintf(w, "  per worker %v in %s\n", r.PerWorker, r.Duration.Round(time.Millisecond))
	if result.PlanName != "" {
		fmt.Fprintf(w, "  plan %s\n", result.PlanName)
	}
	if result.RunID != "" {
		fmt.Fprintf(w, "  recorded as %s\n", result.RunID)
	}
}

package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/reprojcheck/internal/metrics"
	"github.com/roach88/reprojcheck/internal/transform"
)

// Harness runs the consistency check for one Config.
//
// New builds the reference dataset and the shared handle; Run may then be
// called any number of times, each with a fresh iteration counter.
type Harness struct {
	cfg     Config
	factory transform.Factory
	shared  transform.Transformer
	ref     *Reference
	logger  *slog.Logger
}

// Context is the state handed to every worker of a run. Counter is the
// only field written after Run starts; everything else is read-only.
type Context struct {
	Config    Config
	Reference *Reference
	Shared    transform.Transformer
	Factory   transform.Factory
	Counter   *Counter
}

// New validates cfg, constructs the shared handle through factory and
// computes the reference dataset with it.
//
// A nil factory selects transform.DefaultFactory; a nil logger discards
// output. Returns *ConfigError or *SetupError.
func New(cfg Config, factory transform.Factory, logger *slog.Logger) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		factory = transform.DefaultFactory{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	shared, err := factory.New(cfg.Source, cfg.Target)
	if err != nil {
		return nil, &SetupError{Stage: StageConstruct, Worker: -1, Err: err}
	}
	metrics.HarnessHandlesConstructed.WithLabelValues(string(cfg.Mode())).Inc()

	ref, err := computeReference(shared, cfg.Source, cfg.Target, cfg.Samples, cfg.Sweep)
	if err != nil {
		shared.Close()
		return nil, err
	}

	logger.Info("reference built",
		"source", cfg.Source.Identifier(),
		"target", cfg.Target.Identifier(),
		"samples", ref.Len(),
		"digest", ref.Digest,
	)

	return &Harness{
		cfg:     cfg,
		factory: factory,
		shared:  shared,
		ref:     ref,
		logger:  logger,
	}, nil
}

// Config returns the validated configuration.
func (h *Harness) Config() Config {
	return h.cfg
}

// Reference returns the reference dataset. Callers must not modify it.
func (h *Harness) Reference() *Reference {
	return h.ref
}

// Close releases the shared handle.
func (h *Harness) Close() error {
	return h.shared.Close()
}

// Run starts Config.Threads workers and blocks until the iteration target
// is reached, a worker fails, or ctx is cancelled.
//
// Returns a *ConsistencyViolation or *SetupError from the first failing
// worker, ctx.Err() if cancelled before the target, or nil. The report is
// always non-nil.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	mode := h.cfg.Mode()
	hc := &Context{
		Config:    h.cfg,
		Reference: h.ref,
		Shared:    h.shared,
		Factory:   h.factory,
		Counter:   NewCounter(int64(h.cfg.Iterations)),
	}

	workers := make([]*worker, h.cfg.Threads)
	for i := range workers {
		workers[i] = newWorker(i, hc, h.logger)
	}

	h.logger.Info("run started",
		"threads", h.cfg.Threads,
		"iterations", h.cfg.Iterations,
		"mode", mode,
	)
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(runCtx)
	for _, w := range workers {
		g.Go(func() error {
			return w.run(gCtx)
		})
	}

	select {
	case <-hc.Counter.Done():
		h.logger.Info("iteration target reached", "target", hc.Counter.Target())
	case <-gCtx.Done():
	}
	cancel()
	err := g.Wait()

	report := &Report{
		Mode:               mode,
		Threads:            h.cfg.Threads,
		Source:             h.cfg.Source.Identifier(),
		Target:             h.cfg.Target.Identifier(),
		Samples:            h.ref.Len(),
		IterationTarget:    hc.Counter.Target(),
		Iterations:         hc.Counter.Current(),
		PerWorker:          make([]int64, len(workers)),
		HandlesConstructed: 1,
		ReferenceDigest:    h.ref.Digest,
		Duration:           time.Since(start),
	}
	for i, w := range workers {
		report.PerWorker[i] = w.iterations
		report.HandlesConstructed += w.handles
	}

	var violation *ConsistencyViolation
	switch {
	case errors.As(err, &violation):
		report.Outcome = OutcomeViolation
		report.Failure = err.Error()
		metrics.HarnessViolationsTotal.WithLabelValues(string(mode)).Inc()
		h.logger.Error("consistency violation",
			"worker", violation.Worker,
			"iteration", violation.Iteration,
			"index", violation.Index,
			"axis", violation.Axis,
			"error", err,
		)
	case err != nil:
		report.Outcome = OutcomeSetupError
		report.Failure = err.Error()
		h.logger.Error("run failed", "error", err)
	case ctx.Err() != nil && !hc.Counter.Reached():
		err = ctx.Err()
		report.Outcome = OutcomeInterrupted
		report.Failure = err.Error()
		h.logger.Warn("run interrupted", "iterations", report.Iterations)
	default:
		report.Outcome = OutcomePass
	}

	metrics.HarnessRunDuration.WithLabelValues(string(mode), report.Outcome).Observe(report.Duration.Seconds())
	h.logger.Info("run finished",
		"outcome", report.Outcome,
		"iterations", report.Iterations,
		"duration", report.Duration,
	)
	return report, err
}

// worker owns its scratch buffers and local tallies. Tallies are read by
// Run only after every worker has returned.
type worker struct {
	id     int
	hc     *Context
	log    *slog.Logger
	xs, ys []float64

	iterations int64
	handles    int64
}

func newWorker(id int, hc *Context, logger *slog.Logger) *worker {
	n := hc.Reference.Len()
	return &worker{
		id:  id,
		hc:  hc,
		log: logger.With("worker", id),
		xs:  make([]float64, n),
		ys:  make([]float64, n),
	}
}

func (w *worker) run(ctx context.Context) error {
	mode := string(w.hc.Config.Mode())
	metrics.HarnessWorkersActive.Inc()
	w.log.Debug("worker started")
	defer func() {
		metrics.HarnessWorkersActive.Dec()
		metrics.HarnessIterationsTotal.WithLabelValues(mode).Add(float64(w.iterations))
		metrics.HarnessHandlesConstructed.WithLabelValues(mode).Add(float64(w.handles))
		w.log.Debug("worker stopped", "iterations", w.iterations)
	}()

	// A worker checks the target before claiming an iteration, so at most
	// Threads-1 claims land past it.
	for ctx.Err() == nil && !w.hc.Counter.Reached() {
		if err := w.iterate(); err != nil {
			return err
		}
	}
	return nil
}

// iterate performs one check: obtain a handle, copy the reference input,
// count, transform, compare.
func (w *worker) iterate() (err error) {
	hc := w.hc
	tr := hc.Shared
	if hc.Config.PerWorkerTransform {
		tr, err = hc.Factory.New(hc.Config.Source, hc.Config.Target)
		if err != nil {
			return &SetupError{Stage: StageWorkerConstruct, Worker: w.id, Err: err}
		}
		w.handles++
		defer func() {
			if cerr := tr.Close(); cerr != nil && err == nil {
				err = &SetupError{Stage: StageRelease, Worker: w.id, Err: cerr}
			}
		}()
	}

	copy(w.xs, hc.Reference.X)
	copy(w.ys, hc.Reference.Y)
	iter := hc.Counter.Next()
	w.iterations++

	if terr := tr.Transform(w.xs, w.ys); terr != nil {
		return &ConsistencyViolation{Worker: w.id, Iteration: iter, Index: -1, Err: terr}
	}

	idx, axis, ok := hc.Reference.Verify(w.xs, w.ys)
	if ok {
		return nil
	}
	v := &ConsistencyViolation{
		Worker:    w.id,
		Iteration: iter,
		Index:     idx,
		Axis:      axis,
		Expected:  hc.Reference.expected(idx, axis),
	}
	if axis == "x" {
		v.Actual = w.xs[idx]
	} else if axis == "y" {
		v.Actual = w.ys[idx]
	}
	return v
}

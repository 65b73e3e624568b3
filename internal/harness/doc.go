// Package harness checks a coordinate transformation engine for
// concurrency defects.
//
// The harness computes a reference dataset once, single-threaded, and then
// runs N workers that repeatedly transform a private copy of the same input
// and compare the output bit-for-bit against the reference. Any divergence
// is a *ConsistencyViolation and ends the run. Failures are never retried:
// the point of the tool is to surface them.
//
// # Handle sharing
//
// In ModeShared every worker transforms through one handle built by New,
// probing races inside Transform. In ModePerWorker each worker constructs
// and closes its own handle every iteration, probing races in construction.
//
// # Stopping
//
// A single atomic Counter is incremented once per iteration. Each worker
// checks Counter.Reached before starting an iteration and stops once the
// target is hit. The increment that reaches the target closes Counter.Done;
// Run then cancels the workers' context and waits for them. In-flight
// iterations finish and are still verified, so the final count may exceed
// the target by up to Threads-1.
//
// # Usage
//
//	cfg := harness.DefaultConfig()
//	cfg.Threads = 4
//	h, err := harness.New(cfg, nil, logger)
//	if err != nil {
//	    return err // *ConfigError or *SetupError
//	}
//	defer h.Close()
//	report, err := h.Run(ctx)
//
// # Plans
//
// Runs can be described in YAML and loaded with LoadPlan. Plans are
// validated and defaulted by the CUE schema in plan.cue.
package harness

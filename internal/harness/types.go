package harness

import "time"

// Outcome values recorded for a run.
const (
	OutcomePass        = "pass"
	OutcomeViolation   = "violation"
	OutcomeSetupError  = "setup_error"
	OutcomeInterrupted = "interrupted"
)

// Report is the outcome of a harness run. It is returned alongside any
// error so that partial progress can still be reported.
type Report struct {
	Mode    Mode   `json:"mode"`
	Threads int    `json:"threads"`
	Source  string `json:"source"`
	Target  string `json:"target"`
	Samples int    `json:"samples"`

	// IterationTarget is the configured total; Iterations is the final
	// counter value, which may exceed the target by up to Threads-1 because
	// in-flight iterations are allowed to finish.
	IterationTarget int64   `json:"iteration_target"`
	Iterations      int64   `json:"iterations"`
	PerWorker       []int64 `json:"per_worker"`

	// HandlesConstructed counts handles built during the run, including
	// the shared one.
	HandlesConstructed int64 `json:"handles_constructed"`

	ReferenceDigest string        `json:"reference_digest"`
	Duration        time.Duration `json:"duration_ns"`
	Outcome         string        `json:"outcome"`
	Failure         string        `json:"failure,omitempty"`
}

// Pass reports whether the run reached its target without failure.
func (r *Report) Pass() bool {
	return r.Outcome == OutcomePass
}

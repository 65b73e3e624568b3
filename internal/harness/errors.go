package harness

import (
	"fmt"
)

// Setup stages reported by SetupError.
const (
	StageConstruct       = "construct"        // shared handle construction
	StageReference       = "reference"        // reference transform
	StageWorkerConstruct = "worker_construct" // per-worker handle construction
	StageRelease         = "release"          // per-worker handle close
)

// ConfigError reports an invalid run configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// SetupError reports that a transformation handle could not be constructed,
// released, or used to compute the reference. It is always fatal.
type SetupError struct {
	Stage  string
	Worker int // -1 outside workers
	Err    error
}

func (e *SetupError) Error() string {
	if e.Worker >= 0 {
		return fmt.Sprintf("setup failed (%s, worker %d): %v", e.Stage, e.Worker, e.Err)
	}
	return fmt.Sprintf("setup failed (%s): %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// ConsistencyViolation reports a worker result that diverged from the
// reference. Either Err is set (the transform itself failed where the
// reference succeeded) or Index/Axis locate the first differing value.
type ConsistencyViolation struct {
	Worker    int
	Iteration int64
	Index     int
	Axis      string
	Expected  float64
	Actual    float64
	Err       error
}

func (e *ConsistencyViolation) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("consistency violation: worker %d iteration %d: transform failed: %v",
			e.Worker, e.Iteration, e.Err)
	}
	return fmt.Sprintf("consistency violation: worker %d iteration %d: %s[%d] = %v (%#016x), reference %v (%#016x)",
		e.Worker, e.Iteration, e.Axis, e.Index,
		e.Actual, bits(e.Actual), e.Expected, bits(e.Expected))
}

func (e *ConsistencyViolation) Unwrap() error {
	return e.Err
}

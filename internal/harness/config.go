package harness

import (
	"fmt"
	"math"

	"github.com/roach88/reprojcheck/internal/crs"
)

// Defaults match the classic multi-threaded reprojection test program:
// 2 workers, 10000 iterations, 1024 samples from EPSG:4326 to EPSG:32631
// swept from (2, 49) over one degree.
const (
	DefaultThreads    = 2
	DefaultIterations = 10000
	DefaultSamples    = 1024
	DefaultSource     = "EPSG:4326"
	DefaultTarget     = "EPSG:32631"
)

// Mode names the handle sharing strategy.
type Mode string

const (
	// ModeShared uses one handle for every worker.
	ModeShared Mode = "shared"
	// ModePerWorker constructs and closes a handle on every iteration.
	ModePerWorker Mode = "per_worker"
)

// Sweep is the linear sample pattern. Sample i of n is
// (OriginX + Extent*i/n, OriginY + Extent*i/n).
type Sweep struct {
	OriginX float64 `json:"origin_x" yaml:"origin_x"`
	OriginY float64 `json:"origin_y" yaml:"origin_y"`
	Extent  float64 `json:"extent" yaml:"extent"`
}

// DefaultSweep returns the sweep starting at lon 2, lat 49.
func DefaultSweep() Sweep {
	return Sweep{OriginX: 2, OriginY: 49, Extent: 1}
}

// Points generates n samples. Identical inputs produce bit-identical output.
func (s Sweep) Points(n int) (xs, ys []float64) {
	xs = make([]float64, n)
	ys = make([]float64, n)
	for i := 0; i < n; i++ {
		f := s.Extent * float64(i) / float64(n)
		xs[i] = s.OriginX + f
		ys[i] = s.OriginY + f
	}
	return xs, ys
}

// Config holds the run parameters.
type Config struct {
	Threads            int
	Iterations         int
	PerWorkerTransform bool

	Source  crs.CRS
	Target  crs.CRS
	Samples int
	Sweep   Sweep
}

// DefaultConfig returns the configuration used when no flags or plan are given.
func DefaultConfig() Config {
	return Config{
		Threads:    DefaultThreads,
		Iterations: DefaultIterations,
		Source:     crs.MustParse(DefaultSource),
		Target:     crs.MustParse(DefaultTarget),
		Samples:    DefaultSamples,
		Sweep:      DefaultSweep(),
	}
}

// Mode returns the handle sharing mode selected by PerWorkerTransform.
func (c Config) Mode() Mode {
	if c.PerWorkerTransform {
		return ModePerWorker
	}
	return ModeShared
}

// Validate rejects configurations that would hang or do nothing.
func (c Config) Validate() error {
	if c.Threads < 1 {
		return &ConfigError{Field: "threads", Message: fmt.Sprintf("must be at least 1, got %d", c.Threads)}
	}
	if c.Iterations < 1 {
		return &ConfigError{Field: "iterations", Message: fmt.Sprintf("must be at least 1, got %d", c.Iterations)}
	}
	if c.Samples < 1 {
		return &ConfigError{Field: "samples", Message: fmt.Sprintf("must be at least 1, got %d", c.Samples)}
	}
	if c.Source.Code == 0 {
		return &ConfigError{Field: "source", Message: "source CRS is required"}
	}
	if c.Target.Code == 0 {
		return &ConfigError{Field: "target", Message: "target CRS is required"}
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"sweep.origin_x", c.Sweep.OriginX},
		{"sweep.origin_y", c.Sweep.OriginY},
		{"sweep.extent", c.Sweep.Extent},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return &ConfigError{Field: f.name, Message: "must be finite"}
		}
	}
	return nil
}

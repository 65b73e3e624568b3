package harness

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reprojcheck/internal/crs"
	"github.com/roach88/reprojcheck/internal/testutil"
	"github.com/roach88/reprojcheck/internal/transform"
)

func newHarness(t *testing.T, cfg Config, factory transform.Factory) *Harness {
	t.Helper()
	h, err := New(cfg, factory, nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Samples = 64
	cfg.Iterations = 200
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero threads", func(c *Config) { c.Threads = 0 }, "threads"},
		{"negative threads", func(c *Config) { c.Threads = -1 }, "threads"},
		{"zero iterations", func(c *Config) { c.Iterations = 0 }, "iterations"},
		{"zero samples", func(c *Config) { c.Samples = 0 }, "samples"},
		{"missing source", func(c *Config) { c.Source = crs.CRS{} }, "source"},
		{"missing target", func(c *Config) { c.Target = crs.CRS{} }, "target"},
		{"nan extent", func(c *Config) { c.Sweep.Extent = math.NaN() }, "sweep.extent"},
		{"inf origin", func(c *Config) { c.Sweep.OriginY = math.Inf(-1) }, "sweep.origin_y"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)

			_, err = New(cfg, nil, nil)
			assert.True(t, errors.As(err, &cerr), "New must reject invalid config")
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Mode(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ModeShared, cfg.Mode())
	cfg.PerWorkerTransform = true
	assert.Equal(t, ModePerWorker, cfg.Mode())
}

func TestSweep_Points(t *testing.T) {
	xs, ys := DefaultSweep().Points(1024)
	require.Len(t, xs, 1024)
	require.Len(t, ys, 1024)
	for i := range xs {
		assert.Equal(t, 2+float64(i)/1024., xs[i])
		assert.Equal(t, 49+float64(i)/1024., ys[i])
	}
}

func TestBuildReference_Deterministic(t *testing.T) {
	src, dst := crs.MustParse(DefaultSource), crs.MustParse(DefaultTarget)

	a, err := BuildReference(nil, src, dst, DefaultSamples, DefaultSweep())
	require.NoError(t, err)
	b, err := BuildReference(nil, src, dst, DefaultSamples, DefaultSweep())
	require.NoError(t, err)

	assert.Equal(t, a.Digest, b.Digest)
	assert.Len(t, a.Digest, 64)
	for i := range a.ResultX {
		assert.Equal(t, math.Float64bits(a.ResultX[i]), math.Float64bits(b.ResultX[i]))
		assert.Equal(t, math.Float64bits(a.ResultY[i]), math.Float64bits(b.ResultY[i]))
	}
}

func TestBuildReference_SingleThreadedBaseline(t *testing.T) {
	src, dst := crs.MustParse(DefaultSource), crs.MustParse(DefaultTarget)
	ref, err := BuildReference(nil, src, dst, 256, DefaultSweep())
	require.NoError(t, err)

	tr, err := transform.Construct(src, dst)
	require.NoError(t, err)
	defer tr.Close()

	for i := 0; i < 10; i++ {
		xs := append([]float64(nil), ref.X...)
		ys := append([]float64(nil), ref.Y...)
		require.NoError(t, tr.Transform(xs, ys))
		_, _, ok := ref.Verify(xs, ys)
		require.True(t, ok, "iteration %d diverged", i)
	}
}

func TestBuildReference_SetupErrors(t *testing.T) {
	src := crs.MustParse(DefaultSource)

	t.Run("no path", func(t *testing.T) {
		bogus := crs.CRS{Code: 1, Kind: crs.Projected, Projection: "polyconic"}
		_, err := BuildReference(nil, src, bogus, 8, DefaultSweep())
		var serr *SetupError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, StageConstruct, serr.Stage)
		assert.ErrorIs(t, err, transform.ErrNoPath)
	})

	t.Run("reference transform fails", func(t *testing.T) {
		merc := crs.MustParse("EPSG:3857")
		_, err := BuildReference(nil, src, merc, 8, Sweep{OriginX: 0, OriginY: 90, Extent: 1})
		var serr *SetupError
		require.True(t, errors.As(err, &serr))
		assert.Equal(t, StageReference, serr.Stage)
		var perr *transform.PointError
		assert.True(t, errors.As(err, &perr))
	})

	t.Run("zero samples", func(t *testing.T) {
		_, err := BuildReference(nil, src, src, 0, DefaultSweep())
		var cerr *ConfigError
		assert.True(t, errors.As(err, &cerr))
	})
}

func TestReference_Verify(t *testing.T) {
	wgs84 := crs.MustParse("EPSG:4326")
	ref, err := BuildReference(nil, wgs84, wgs84, 4, DefaultSweep())
	require.NoError(t, err)

	xs := append([]float64(nil), ref.ResultX...)
	ys := append([]float64(nil), ref.ResultY...)
	_, _, ok := ref.Verify(xs, ys)
	assert.True(t, ok)

	ys[2] = math.Nextafter(ys[2], 0)
	idx, axis, ok := ref.Verify(xs, ys)
	assert.False(t, ok)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "y", axis)

	// Signed zero differs bitwise even though it compares equal.
	zref := &Reference{ResultX: []float64{0}, ResultY: []float64{0}}
	_, axis, ok = zref.Verify([]float64{math.Copysign(0, -1)}, []float64{0})
	assert.False(t, ok)
	assert.Equal(t, "x", axis)
}

func TestNew_SetupError(t *testing.T) {
	_, err := New(smallConfig(), &testutil.FailingFactory{Allow: 0}, nil)
	var serr *SetupError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, StageConstruct, serr.Stage)
	assert.Equal(t, -1, serr.Worker)
	assert.ErrorIs(t, err, testutil.ErrInjected)
}

func TestRun_SingleThreadNeverViolates(t *testing.T) {
	cfg := smallConfig()
	cfg.Threads = 1
	cfg.Iterations = 500
	h := newHarness(t, cfg, nil)

	report, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Pass())
	assert.Equal(t, int64(500), report.Iterations)
	assert.Equal(t, []int64{500}, report.PerWorker)
}

func TestRun_SharedHandle(t *testing.T) {
	cfg := DefaultConfig() // 2 threads, 10000 iterations, 1024 samples
	h := newHarness(t, cfg, nil)

	report, err := h.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, OutcomePass, report.Outcome)
	assert.Equal(t, ModeShared, report.Mode)
	assert.GreaterOrEqual(t, report.Iterations, int64(10000))
	assert.LessOrEqual(t, report.Iterations, int64(10000+cfg.Threads-1))
	assert.Equal(t, int64(1), report.HandlesConstructed)
	assert.Equal(t, h.Reference().Digest, report.ReferenceDigest)

	var sum int64
	for _, n := range report.PerWorker {
		sum += n
	}
	assert.Equal(t, report.Iterations, sum)
}

func TestRun_PerWorkerHandles(t *testing.T) {
	cfg := smallConfig()
	cfg.PerWorkerTransform = true
	cfg.Threads = 4
	factory := &testutil.CountingFactory{}
	h := newHarness(t, cfg, factory)

	report, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Pass())
	assert.Equal(t, ModePerWorker, report.Mode)
	assert.GreaterOrEqual(t, report.Iterations, int64(cfg.Iterations))

	// One handle per iteration plus the shared one used for the reference.
	assert.Equal(t, report.Iterations+1, report.HandlesConstructed)
	assert.Equal(t, report.HandlesConstructed, factory.Count())
}

func TestRun_IterationsBoundedByThreads(t *testing.T) {
	for _, perWorker := range []bool{false, true} {
		t.Run(string(map[bool]Mode{false: ModeShared, true: ModePerWorker}[perWorker]), func(t *testing.T) {
			cfg := smallConfig()
			cfg.Samples = 16
			cfg.Threads = 8
			cfg.Iterations = 1000
			cfg.PerWorkerTransform = perWorker
			h := newHarness(t, cfg, nil)

			for run := 0; run < 5; run++ {
				report, err := h.Run(context.Background())
				require.NoError(t, err)
				assert.GreaterOrEqual(t, report.Iterations, int64(cfg.Iterations), "run %d", run)
				assert.LessOrEqual(t, report.Iterations, int64(cfg.Iterations+cfg.Threads-1), "run %d", run)

				var sum int64
				for _, n := range report.PerWorker {
					sum += n
				}
				assert.Equal(t, report.Iterations, sum, "run %d", run)
			}
		})
	}
}

func TestRun_RepeatableWithFreshCounter(t *testing.T) {
	h := newHarness(t, smallConfig(), nil)

	first, err := h.Run(context.Background())
	require.NoError(t, err)
	second, err := h.Run(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, first.Iterations, int64(200))
	assert.LessOrEqual(t, first.Iterations, int64(200+1))
	assert.GreaterOrEqual(t, second.Iterations, int64(200))
	assert.LessOrEqual(t, second.Iterations, int64(200+1))
}

func TestRun_DetectsDrift(t *testing.T) {
	for _, perWorker := range []bool{false, true} {
		t.Run(string(map[bool]Mode{false: ModeShared, true: ModePerWorker}[perWorker]), func(t *testing.T) {
			cfg := smallConfig()
			cfg.PerWorkerTransform = perWorker
			cfg.Iterations = 10000
			// Call 1 computes the reference; the 50th call drifts.
			h := newHarness(t, cfg, &testutil.DriftingFactory{DriftAt: 50})

			report, err := h.Run(context.Background())
			require.Error(t, err)

			var v *ConsistencyViolation
			require.True(t, errors.As(err, &v))
			assert.Equal(t, cfg.Samples-1, v.Index)
			assert.Equal(t, "y", v.Axis)
			assert.Equal(t, math.Nextafter(v.Expected, math.Inf(1)), v.Actual)
			assert.Positive(t, v.Iteration)
			assert.Nil(t, v.Err)

			assert.Equal(t, OutcomeViolation, report.Outcome)
			assert.False(t, report.Pass())
			assert.Less(t, report.Iterations, int64(10000))
			assert.Contains(t, report.Failure, "consistency violation")
		})
	}
}

func TestRun_TransformErrorIsViolation(t *testing.T) {
	cfg := smallConfig()
	h := newHarness(t, cfg, &testutil.ErroringFactory{FailAt: 10})

	report, err := h.Run(context.Background())
	var v *ConsistencyViolation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, -1, v.Index)
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.Equal(t, OutcomeViolation, report.Outcome)
}

func TestRun_WorkerConstructionFailure(t *testing.T) {
	cfg := smallConfig()
	cfg.PerWorkerTransform = true
	// The shared handle and five worker handles succeed.
	h := newHarness(t, cfg, &testutil.FailingFactory{Allow: 6})

	report, err := h.Run(context.Background())
	var serr *SetupError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, StageWorkerConstruct, serr.Stage)
	assert.GreaterOrEqual(t, serr.Worker, 0)
	assert.Equal(t, OutcomeSetupError, report.Outcome)
	assert.Equal(t, int64(5), report.Iterations)
}

func TestRun_ParentCancellation(t *testing.T) {
	cfg := smallConfig()
	cfg.Iterations = math.MaxInt32
	h := newHarness(t, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	report, err := h.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, OutcomeInterrupted, report.Outcome)
	assert.Greater(t, report.Iterations, int64(0))
	assert.Less(t, report.Iterations, int64(math.MaxInt32))
}

func TestViolation_ErrorMessage(t *testing.T) {
	v := &ConsistencyViolation{Worker: 1, Iteration: 42, Index: 7, Axis: "x", Expected: 1, Actual: 2}
	assert.Equal(t,
		"consistency violation: worker 1 iteration 42: x[7] = 2 (0x4000000000000000), reference 1 (0x3ff0000000000000)",
		v.Error())

	v = &ConsistencyViolation{Worker: 0, Iteration: 3, Index: -1, Err: testutil.ErrInjected}
	assert.Equal(t, "consistency violation: worker 0 iteration 3: transform failed: injected fault", v.Error())
}

func TestSetupError_ErrorMessage(t *testing.T) {
	err := &SetupError{Stage: StageConstruct, Worker: -1, Err: transform.ErrNoPath}
	assert.Equal(t, "setup failed (construct): no transformation path", err.Error())

	err = &SetupError{Stage: StageWorkerConstruct, Worker: 3, Err: transform.ErrNoPath}
	assert.Equal(t, "setup failed (worker_construct, worker 3): no transformation path", err.Error())
}

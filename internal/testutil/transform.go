package testutil

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/roach88/reprojcheck/internal/crs"
	"github.com/roach88/reprojcheck/internal/transform"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault")

func orDefault(f transform.Factory) transform.Factory {
	if f == nil {
		return transform.DefaultFactory{}
	}
	return f
}

// CountingFactory counts constructions and delegates to Inner
// (transform.DefaultFactory when nil).
type CountingFactory struct {
	Inner transform.Factory
	n     atomic.Int64
}

// New implements transform.Factory.
func (f *CountingFactory) New(src, dst crs.CRS) (transform.Transformer, error) {
	f.n.Add(1)
	return orDefault(f.Inner).New(src, dst)
}

// Count returns the number of New calls so far.
func (f *CountingFactory) Count() int64 {
	return f.n.Load()
}

// FailingFactory allows the first Allow constructions and fails every one
// after that with Err (ErrInjected when nil). Allow 0 fails immediately.
type FailingFactory struct {
	Inner transform.Factory
	Allow int64
	Err   error
	n     atomic.Int64
}

// New implements transform.Factory.
func (f *FailingFactory) New(src, dst crs.CRS) (transform.Transformer, error) {
	if f.n.Add(1) > f.Allow {
		if f.Err != nil {
			return nil, f.Err
		}
		return nil, ErrInjected
	}
	return orDefault(f.Inner).New(src, dst)
}

// DriftingFactory builds transformers that start returning a result one
// ULP off the true value once the DriftAt-th Transform call (1-based,
// counted across every handle from this factory) is reached. It simulates
// an engine whose shared state is corrupted after some use.
type DriftingFactory struct {
	Inner   transform.Factory
	DriftAt int64
	calls   atomic.Int64
}

// New implements transform.Factory.
func (f *DriftingFactory) New(src, dst crs.CRS) (transform.Transformer, error) {
	tr, err := orDefault(f.Inner).New(src, dst)
	if err != nil {
		return nil, err
	}
	return &driftingTransformer{Transformer: tr, f: f}, nil
}

// Calls returns the number of Transform calls across all handles.
func (f *DriftingFactory) Calls() int64 {
	return f.calls.Load()
}

type driftingTransformer struct {
	transform.Transformer
	f *DriftingFactory
}

func (t *driftingTransformer) Transform(xs, ys []float64) error {
	n := t.f.calls.Add(1)
	if err := t.Transformer.Transform(xs, ys); err != nil {
		return err
	}
	if n >= t.f.DriftAt && len(ys) > 0 {
		last := len(ys) - 1
		ys[last] = math.Nextafter(ys[last], math.Inf(1))
	}
	return nil
}

// ErroringFactory builds transformers whose Transform fails with Err
// (ErrInjected when nil) from the FailAt-th call on, counted across every
// handle from this factory.
type ErroringFactory struct {
	Inner  transform.Factory
	FailAt int64
	Err    error
	calls  atomic.Int64
}

// New implements transform.Factory.
func (f *ErroringFactory) New(src, dst crs.CRS) (transform.Transformer, error) {
	tr, err := orDefault(f.Inner).New(src, dst)
	if err != nil {
		return nil, err
	}
	return &erroringTransformer{Transformer: tr, f: f}, nil
}

type erroringTransformer struct {
	transform.Transformer
	f *ErroringFactory
}

func (t *erroringTransformer) Transform(xs, ys []float64) error {
	if t.f.calls.Add(1) >= t.f.FailAt {
		if t.f.Err != nil {
			return t.f.Err
		}
		return ErrInjected
	}
	return t.Transformer.Transform(xs, ys)
}

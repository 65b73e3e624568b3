package transform

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/roach88/reprojcheck/internal/crs"
)

// Transformer converts coordinate sequences in place.
type Transformer interface {
	// Transform overwrites xs and ys with the transformed coordinates.
	// Points that fail are set to +Inf and reported through *PointError.
	Transform(xs, ys []float64) error

	// Close releases the transformer. Transform fails with ErrClosed afterwards.
	Close() error
}

// Factory constructs transformers. The harness goes through a Factory so
// that tests can substitute faulty implementations.
type Factory interface {
	New(src, dst crs.CRS) (Transformer, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(src, dst crs.CRS) (Transformer, error)

// New calls f(src, dst).
func (f FactoryFunc) New(src, dst crs.CRS) (Transformer, error) {
	return f(src, dst)
}

// DefaultFactory constructs Transformations backed by the geodesy libraries.
type DefaultFactory struct{}

// New implements Factory.
func (DefaultFactory) New(src, dst crs.CRS) (Transformer, error) {
	return Construct(src, dst)
}

// Transformation is the concrete Transformer for a fixed (source, target) pair.
type Transformation struct {
	src, dst crs.CRS
	from     step // src -> lon/lat
	to       step // lon/lat -> dst
	identity bool
	closed   atomic.Bool
}

// Construct builds a Transformation from src to dst.
// Returns an error wrapping ErrNoPath when either system has no
// projection step.
func Construct(src, dst crs.CRS) (*Transformation, error) {
	from, err := newStep(src)
	if err != nil {
		return nil, fmt.Errorf("construct %s -> %s: %w", src.Identifier(), dst.Identifier(), err)
	}
	to, err := newStep(dst)
	if err != nil {
		return nil, fmt.Errorf("construct %s -> %s: %w", src.Identifier(), dst.Identifier(), err)
	}
	return &Transformation{
		src:      src,
		dst:      dst,
		from:     from,
		to:       to,
		identity: src.Code == dst.Code,
	}, nil
}

// Source returns the source CRS.
func (t *Transformation) Source() crs.CRS { return t.src }

// Target returns the target CRS.
func (t *Transformation) Target() crs.CRS { return t.dst }

// Transform implements Transformer.
func (t *Transformation) Transform(xs, ys []float64) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if len(xs) != len(ys) {
		return fmt.Errorf("%w: %d x values, %d y values", ErrLengthMismatch, len(xs), len(ys))
	}
	if t.identity {
		return nil
	}

	var perr *PointError
	for i := range xs {
		x, y, err := t.point(xs[i], ys[i])
		if err != nil {
			xs[i], ys[i] = math.Inf(1), math.Inf(1)
			if perr == nil {
				perr = &PointError{Total: len(xs), First: i, Err: err}
			}
			perr.Failed++
			continue
		}
		xs[i], ys[i] = x, y
	}
	if perr != nil {
		return perr
	}
	return nil
}

func (t *Transformation) point(x, y float64) (float64, float64, error) {
	lon, lat, err := t.from.toGeographic(x, y)
	if err != nil {
		return 0, 0, err
	}
	return t.to.fromGeographic(lon, lat)
}

// Close implements Transformer. Closing twice is a no-op.
func (t *Transformation) Close() error {
	t.closed.Store(true)
	return nil
}

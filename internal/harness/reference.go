package harness

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/roach88/reprojcheck/internal/crs"
	"github.com/roach88/reprojcheck/internal/transform"
)

// Reference is the trusted input/output pair produced by one
// single-threaded transform. It is never mutated after construction and is
// read concurrently by every worker.
type Reference struct {
	Source crs.CRS
	Target crs.CRS
	Sweep  Sweep

	X, Y             []float64 // input
	ResultX, ResultY []float64 // output of the reference transform

	// Digest is the hex SHA-256 of the IEEE-754 bits of X, Y, ResultX and
	// ResultY, little-endian, in that order.
	Digest string
}

// Len returns the number of samples.
func (r *Reference) Len() int {
	return len(r.X)
}

// BuildReference constructs a handle from source to target, transforms
// samples points of sweep once and closes the handle.
//
// Returns *SetupError if the handle cannot be constructed or the reference
// transform fails for any point.
func BuildReference(factory transform.Factory, source, target crs.CRS, samples int, sweep Sweep) (*Reference, error) {
	if samples < 1 {
		return nil, &ConfigError{Field: "samples", Message: "must be at least 1"}
	}
	if factory == nil {
		factory = transform.DefaultFactory{}
	}

	tr, err := factory.New(source, target)
	if err != nil {
		return nil, &SetupError{Stage: StageConstruct, Worker: -1, Err: err}
	}
	defer tr.Close()

	return computeReference(tr, source, target, samples, sweep)
}

// computeReference applies tr to the sweep and seals the result.
func computeReference(tr transform.Transformer, source, target crs.CRS, samples int, sweep Sweep) (*Reference, error) {
	xs, ys := sweep.Points(samples)
	rx := append([]float64(nil), xs...)
	ry := append([]float64(nil), ys...)

	if err := tr.Transform(rx, ry); err != nil {
		return nil, &SetupError{Stage: StageReference, Worker: -1, Err: err}
	}

	ref := &Reference{
		Source:  source,
		Target:  target,
		Sweep:   sweep,
		X:       xs,
		Y:       ys,
		ResultX: rx,
		ResultY: ry,
	}
	ref.Digest = digest(ref.X, ref.Y, ref.ResultX, ref.ResultY)
	return ref, nil
}

// Verify compares a worker's output against the reference bit-for-bit.
// It returns the first differing index and axis, or ok=true.
func (r *Reference) Verify(xs, ys []float64) (index int, axis string, ok bool) {
	if len(xs) != len(r.ResultX) || len(ys) != len(r.ResultY) {
		return min(len(xs), len(ys), len(r.ResultX)), "len", false
	}
	for i := range r.ResultX {
		if bits(xs[i]) != bits(r.ResultX[i]) {
			return i, "x", false
		}
		if bits(ys[i]) != bits(r.ResultY[i]) {
			return i, "y", false
		}
	}
	return 0, "", true
}

// expected returns the reference value for a Verify result.
func (r *Reference) expected(index int, axis string) float64 {
	switch {
	case axis == "x" && index < len(r.ResultX):
		return r.ResultX[index]
	case axis == "y" && index < len(r.ResultY):
		return r.ResultY[index]
	default:
		return math.NaN()
	}
}

func bits(v float64) uint64 {
	return math.Float64bits(v)
}

func digest(seqs ...[]float64) string {
	h := sha256.New()
	var buf [8]byte
	for _, seq := range seqs {
		for _, v := range seq {
			binary.LittleEndian.PutUint64(buf[:], bits(v))
			h.Write(buf[:])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

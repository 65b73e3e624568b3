package harness

import (
	"bytes"
	"fmt"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatReference renders a reference dataset as stable text: a header
// followed by one "index x y -> rx ry" line per sample, using the shortest
// representation that round-trips each float64.
func FormatReference(ref *Reference) []byte {
	var buf bytes.Buffer
	writeReferenceHeader(&buf, ref)
	for i := range ref.X {
		fmt.Fprintf(&buf, "%d %s %s -> %s %s\n", i,
			formatFloat(ref.X[i]), formatFloat(ref.Y[i]),
			formatFloat(ref.ResultX[i]), formatFloat(ref.ResultY[i]))
	}
	return buf.Bytes()
}

// FormatReferenceSummary renders only the header of FormatReference.
func FormatReferenceSummary(ref *Reference) []byte {
	var buf bytes.Buffer
	writeReferenceHeader(&buf, ref)
	return buf.Bytes()
}

func writeReferenceHeader(buf *bytes.Buffer, ref *Reference) {
	fmt.Fprintf(buf, "source %s\n", ref.Source.Identifier())
	fmt.Fprintf(buf, "target %s\n", ref.Target.Identifier())
	fmt.Fprintf(buf, "samples %d\n", ref.Len())
	fmt.Fprintf(buf, "digest %s\n", ref.Digest)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// AssertReferenceGolden compares a reference dataset against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertReferenceGolden(t *testing.T, name string, ref *Reference) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, FormatReference(ref))
}

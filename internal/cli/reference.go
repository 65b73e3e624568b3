package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/reprojcheck/internal/crs"
	"github.com/roach88/reprojcheck/internal/harness"
)

// ReferenceOptions holds flags for the reference command.
type ReferenceOptions struct {
	*RootOptions
	Source  string
	Target  string
	Samples int
	All     bool
}

// ReferenceResult is the JSON payload of the reference command.
type ReferenceResult struct {
	Source  string           `json:"source"`
	Target  string           `json:"target"`
	Samples int              `json:"samples"`
	Sweep   harness.Sweep    `json:"sweep"`
	Digest  string           `json:"digest"`
	Points  []ReferencePoint `json:"points,omitempty"`
}

// ReferencePoint is one input/output sample.
type ReferencePoint struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	ResultX float64 `json:"result_x"`
	ResultY float64 `json:"result_y"`
}

// NewReferenceCommand creates the reference command.
func NewReferenceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReferenceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reference",
		Short: "Compute and print the reference dataset",
		Long: `Compute the reference dataset single-threaded and print its digest.

The digest is the SHA-256 of every input and output coordinate's IEEE-754
bits. Two machines producing the same digest transform the sweep
identically. Use --all to print every sample.

Examples:
  reprojcheck reference
  reprojcheck reference --dst EPSG:3857 --samples 16 --all`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReference(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "src", harness.DefaultSource, "source CRS")
	cmd.Flags().StringVar(&opts.Target, "dst", harness.DefaultTarget, "target CRS")
	cmd.Flags().IntVar(&opts.Samples, "samples", harness.DefaultSamples, "number of sample points")
	cmd.Flags().BoolVar(&opts.All, "all", false, "print every sample")

	return cmd
}

func runReference(opts *ReferenceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	src, err := crs.Parse(opts.Source)
	if err != nil {
		return fail(formatter, ExitCommandError, &harness.ConfigError{Field: "src", Message: err.Error()}, nil)
	}
	dst, err := crs.Parse(opts.Target)
	if err != nil {
		return fail(formatter, ExitCommandError, &harness.ConfigError{Field: "dst", Message: err.Error()}, nil)
	}

	ref, err := harness.BuildReference(nil, src, dst, opts.Samples, harness.DefaultSweep())
	if err != nil {
		return fail(formatter, ExitCommandError, err, nil)
	}

	if formatter.Format == "json" {
		result := ReferenceResult{
			Source:  src.Identifier(),
			Target:  dst.Identifier(),
			Samples: ref.Len(),
			Sweep:   ref.Sweep,
			Digest:  ref.Digest,
		}
		if opts.All {
			result.Points = make([]ReferencePoint, ref.Len())
			for i := range result.Points {
				result.Points[i] = ReferencePoint{
					X: ref.X[i], Y: ref.Y[i], ResultX: ref.ResultX[i], ResultY: ref.ResultY[i],
				}
			}
		}
		return formatter.Success(result)
	}

	out := harness.FormatReferenceSummary(ref)
	if opts.All {
		out = harness.FormatReference(ref)
	}
	_, err = formatter.Writer.Write(out)
	return err
}

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the reprojcheck command. Invoked without a
// subcommand it runs the consistency check.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&CheckOptions{})
}

// newRootCommand builds the command tree around check, which lets tests
// inject a factory, ID generator and clock.
func newRootCommand(check *CheckOptions) *cobra.Command {
	opts := &RootOptions{}
	check.RootOptions = opts

	cmd := &cobra.Command{
		Use:   "reprojcheck",
		Short: "Concurrent reprojection consistency checker",
		Long: `Check that a coordinate transformation gives bit-identical results when
driven from several goroutines at once.

A reference dataset is computed once, single-threaded. Workers then
transform private copies of the same input until the shared iteration
counter reaches its target, comparing every result bit-for-bit against the
reference. Any divergence is reported as a consistency violation.

Exit codes:
  0 - Target reached, no divergence
  1 - Consistency violation
  2 - Setup, configuration or command error

Examples:
  reprojcheck
  reprojcheck --threads 8 --iter 100000
  reprojcheck --createctinthread --src EPSG:4326 --dst EPSG:3857
  reprojcheck --plan plans/utm31.yaml --db runs.db --format json
  reprojcheck -threads 4 -iter 500 -createctinthread`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(check, cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	addCheckFlags(cmd, check)

	cmd.AddCommand(NewCRSCommand(opts))
	cmd.AddCommand(NewReferenceCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

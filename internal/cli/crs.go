package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/reprojcheck/internal/crs"
)

// NewCRSCommand creates the crs command.
func NewCRSCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crs",
		Short: "List supported coordinate reference systems",
		Long: `List every CRS accepted by --src and --dst.

Identifiers may be given as EPSG:<code>, a bare code, or an OGC URN such as
urn:ogc:def:crs:EPSG::32631.

Examples:
  reprojcheck crs
  reprojcheck crs --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			known := crs.Known()
			if formatter.Format == "json" {
				return formatter.Success(known)
			}
			for _, c := range known {
				fmt.Fprintf(formatter.Writer, "%-11s %-10s %s\n", c.Identifier(), c.Kind, c.Name)
			}
			return nil
		},
	}
}

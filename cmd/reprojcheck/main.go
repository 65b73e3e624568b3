// Command reprojcheck drives a coordinate transformation from several
// goroutines and reports any result that differs from a single-threaded
// reference.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/reprojcheck/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(cli.NormalizeLegacyArgs(os.Args[1:]))

	err := cmd.Execute()
	if err == nil {
		return
	}

	// Commands report ExitErrors through their output formatter already.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}

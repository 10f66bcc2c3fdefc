package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/simulation"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report <recording>",
		Short: "Print the totals stored in the recording of a traced run.",
		Long: `Read the SQLite recording written by a run with --tracing, ` +
			`given as <prefix>.sqlite3 or <prefix>, and print the run ` +
			`summary, the totals of each device and the number of trace ` +
			`records of each kind as YAML.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return &configError{err: err}
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]
			if !strings.HasSuffix(filename, ".sqlite3") {
				filename += ".sqlite3"
			}

			report, err := simulation.LoadReport(cmd.Context(), filename)
			if errors.Is(err, datarecording.ErrNoRecording) {
				return &configError{err: err}
			}

			if err != nil {
				return err
			}

			return report.Write(opts.out)
		},
	}
}

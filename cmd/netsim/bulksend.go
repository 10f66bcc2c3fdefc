package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/netsim/scenario"
	"github.com/sarchlab/netsim/simulation"
)

func newBulkSendCmd(opts *rootOptions) *cobra.Command {
	set := scenario.BulkSendOptions()

	cmd := &cobra.Command{
		Use:   "bulksend",
		Short: "Push TCP segments from one WiFi station to a sink.",
		Long: `The first station sends as much data as its window admits to ` +
			`a sink on the second station, from time zero to the stop ` +
			`time. The total received by the sink is printed at the end.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadOptions(cmd, opts, set); err != nil {
				return err
			}

			cfg := scenario.BulkSendConfigFrom(set)

			return runScenario(opts, set, cfg.CommonConfig,
				func(s *simulation.Simulation) (scenarioRun, error) {
					b, err := scenario.BuildBulkSend(s, cfg)
					if err != nil {
						return scenarioRun{}, err
					}

					return scenarioRun{
						stop: b.StopTime,
						report: func(w io.Writer) error {
							_, err := fmt.Fprintf(w, "Total Bytes Received: %d\n",
								b.Sink.TotalBytesReceived())
							return err
						},
					}, nil
				})
		},
	}

	set.BindFlags(cmd.Flags())

	return cmd
}

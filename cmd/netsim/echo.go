package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/netsim/scenario"
	"github.com/sarchlab/netsim/simulation"
)

func newEchoCmd(opts *rootOptions) *cobra.Command {
	set := scenario.EchoOptions()

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Exchange UDP echoes between two WiFi stations.",
		Long: `The first station sends echo requests to an echo server on ` +
			`the second one, through an access point's network. The server ` +
			`starts at 1s and the client at 2s.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadOptions(cmd, opts, set); err != nil {
				return err
			}

			cfg := scenario.EchoConfigFrom(set)

			return runScenario(opts, set, cfg.CommonConfig,
				func(s *simulation.Simulation) (scenarioRun, error) {
					e, err := scenario.BuildEcho(s, cfg)
					if err != nil {
						return scenarioRun{}, err
					}

					return scenarioRun{stop: e.StopTime}, nil
				})
		},
	}

	set.BindFlags(cmd.Flags())

	return cmd
}

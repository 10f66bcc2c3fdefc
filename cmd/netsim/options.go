package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/netsim/config"
	"github.com/sarchlab/netsim/scenario"
)

var optionSets = map[string]func() *config.Set{
	"echo":     scenario.EchoOptions,
	"bulksend": scenario.BulkSendOptions,
}

func newOptionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "options <echo|bulksend>",
		Short:     "Print the effective options of a scenario as YAML.",
		Long:      "Print the options of a scenario after applying the configuration file and the environment. The output can be used as a configuration file.",
		ValidArgs: []string{"echo", "bulksend"},
		Args: func(cmd *cobra.Command, args []string) error {
			err := cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs)(cmd, args)
			if err != nil {
				return &configError{err: err}
			}

			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			set := optionSets[args[0]]()

			if err := loadOptions(nil, opts, set); err != nil {
				return err
			}

			out, err := set.YAML()
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(opts.out, string(out))

			return err
		},
	}
}

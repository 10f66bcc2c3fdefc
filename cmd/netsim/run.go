package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/netsim/config"
	"github.com/sarchlab/netsim/logging"
	"github.com/sarchlab/netsim/scenario"
	"github.com/sarchlab/netsim/sim"
	"github.com/sarchlab/netsim/simulation"
)

// A scenarioRun is what a scenario builder hands back to the runner.
type scenarioRun struct {
	stop sim.VTime

	// report, if set, prints the result of the run.
	report func(w io.Writer) error
}

type scenarioBuilder func(s *simulation.Simulation) (scenarioRun, error)

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return &configError{err: err}
	}

	return nil
}

// loadOptions applies the configuration file, then the environment, then the
// flags given on the command line.
func loadOptions(cmd *cobra.Command, opts *rootOptions, set *config.Set) error {
	err := godotenv.Load(opts.envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &configError{err: fmt.Errorf("loading %s: %w", opts.envFile, err)}
	}

	if opts.configFile != "" {
		if err := set.LoadFile(opts.configFile); err != nil {
			return &configError{err: err}
		}
	}

	if err := set.LoadEnv(); err != nil {
		return &configError{err: err}
	}

	if cmd != nil {
		if err := set.ApplyFlags(cmd.Flags()); err != nil {
			return &configError{err: err}
		}
	}

	return nil
}

func (o *rootOptions) validate() error {
	if o.monitorPort != 0 && !o.monitor {
		return &configError{err: errors.New("--monitor-port requires --monitor")}
	}

	if o.openMonitor && !o.monitor {
		return &configError{err: errors.New("--open-monitor requires --monitor")}
	}

	return nil
}

func (o *rootOptions) newLogging(verbose bool) (*logging.Factory, error) {
	cfg := scenario.LoggingConfig(o.logLevel, verbose)
	cfg.Format = logging.Format(o.logFormat)
	cfg.Output = o.errOut

	f, err := logging.New(cfg)
	if err != nil {
		return nil, &configError{err: err}
	}

	return f, nil
}

// runScenario builds a simulation, lets the scenario populate it, runs it to
// the stop time and writes the requested outputs.
func runScenario(
	opts *rootOptions,
	set *config.Set,
	common scenario.CommonConfig,
	build scenarioBuilder,
) (err error) {
	if err := opts.validate(); err != nil {
		return err
	}

	logs, err := opts.newLogging(common.Verbose)
	if err != nil {
		return err
	}

	builder := simulation.MakeBuilder().
		WithSeed(common.Seed).
		WithLogging(logs).
		WithOutputPrefix(opts.outputPrefix)

	if common.Tracing {
		builder = builder.WithTracing(simulation.TraceOptions{
			CSV:  true,
			Pcap: true,
			DB:   true,
		})
	}

	if opts.monitor {
		builder = builder.WithMonitoring().WithMonitorPort(opts.monitorPort)
	}

	s, err := builder.Build()
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, s.Terminate())
	}()

	logger := logs.For("Simulation")
	logger.Info("scenario options",
		zap.String("scenario", set.Name()),
		zap.String("values", set.Summary()))

	r, err := build(s)
	if err != nil {
		return err
	}

	s.StartTracing()

	if opts.openMonitor {
		if err := s.Monitor().OpenBrowser(); err != nil {
			logger.Warn("cannot open the monitor", zap.Error(err))
		}
	}

	if err := s.RunUntil(r.stop); err != nil {
		return err
	}

	if r.report != nil {
		if err := r.report(opts.out); err != nil {
			return err
		}
	}

	if opts.summary {
		if err := s.WriteSummary(opts.out); err != nil {
			return err
		}
	}

	if opts.dumpState {
		return dumpState(s)
	}

	return nil
}

// dumpState serializes the final device counters into <prefix>_state.json.
func dumpState(s *simulation.Simulation) error {
	summary := s.Summary()

	f, err := os.Create(s.OutputPrefix() + "_state.json")
	if err != nil {
		return err
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&summary)
	serializer.SetMaxDepth(3)

	if err := serializer.Serialize(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sarchlab/netsim/config"
	"github.com/sarchlab/netsim/ipv4"
	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
)

// Exit codes of the process.
const (
	exitOK     = 0
	exitFatal  = 1
	exitConfig = 2
)

// rootOptions holds the flags shared by all the subcommands.
type rootOptions struct {
	configFile   string
	envFile      string
	logLevel     string
	logFormat    string
	monitor      bool
	monitorPort  int
	openMonitor  bool
	dumpState    bool
	summary      bool
	outputPrefix string

	out    io.Writer
	errOut io.Writer
}

// A configError is raised before any simulation entity is built.
type configError struct {
	err error
}

func (e *configError) Error() string {
	return e.err.Error()
}

func (e *configError) Unwrap() error {
	return e.err
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &rootOptions{out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "netsim",
		Short: "netsim runs discrete-event simulations of small WiFi networks.",
		Long: `netsim runs discrete-event simulations of small WiFi ` +
			`networks. The echo scenario exchanges one UDP echo between two ` +
			`stations. The bulksend scenario pushes TCP segments from one ` +
			`station to a sink on another. The report command reads back ` +
			`the recording of a traced run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &configError{err: err}
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "",
		"YAML, JSON or TOML file with scenario options")
	flags.StringVar(&opts.envFile, "env-file", ".env",
		"File with NETSIM_* environment variables, ignored if missing")
	flags.StringVar(&opts.logLevel, "log-level", "warn",
		"Global log level: debug, info, warn or error")
	flags.StringVar(&opts.logFormat, "log-format", "console",
		"Log format: console or json")
	flags.BoolVar(&opts.monitor, "monitor", false,
		"Serve the simulation monitor over HTTP")
	flags.IntVar(&opts.monitorPort, "monitor-port", 0,
		"Port of the monitor, random if below 1000")
	flags.BoolVar(&opts.openMonitor, "open-monitor", false,
		"Open the monitor in a web browser")
	flags.BoolVar(&opts.dumpState, "dump-state", false,
		"Write the final network state into <prefix>_state.json")
	flags.BoolVar(&opts.summary, "summary", false,
		"Print the run summary as YAML")
	flags.StringVar(&opts.outputPrefix, "output-prefix", "",
		"Prefix of the trace files, netsim_<run id> if empty")

	rootCmd.AddCommand(newEchoCmd(opts))
	rootCmd.AddCommand(newBulkSendCmd(opts))
	rootCmd.AddCommand(newOptionsCmd(opts))
	rootCmd.AddCommand(newReportCmd(opts))

	return rootCmd
}

func run(args []string, out, errOut io.Writer) int {
	rootCmd := newRootCmd(out, errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return reportError(errOut, err)
}

// reportError prints the error of a run and returns the exit code.
func reportError(w io.Writer, err error) int {
	if err == nil {
		return exitOK
	}

	var cbErr *sim.CallbackError
	if errors.As(err, &cbErr) {
		component := cbErr.Component
		if component == "" {
			component = "<anonymous>"
		}

		fmt.Fprintf(w, "netsim: fatal failure in %s at %s: %v\n",
			component, cbErr.Time, cbErr.Err)

		return exitFatal
	}

	if isConfigError(err) {
		fmt.Fprintf(w, "netsim: invalid configuration: %v\n", err)
		return exitConfig
	}

	fmt.Fprintf(w, "netsim: %v\n", err)

	return exitFatal
}

func isConfigError(err error) bool {
	var cfgErr *configError
	var optErr *config.OptionError

	return errors.As(err, &cfgErr) ||
		errors.As(err, &optErr) ||
		errors.Is(err, config.ErrUnknownOption) ||
		errors.Is(err, config.ErrInvalidOptionValue) ||
		errors.Is(err, ipv4.ErrInvalidSubnet) ||
		errors.Is(err, ipv4.ErrAddressSpaceExhausted) ||
		errors.Is(err, network.ErrInvalidAppWindow)
}

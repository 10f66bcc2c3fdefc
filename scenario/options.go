package scenario

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/sarchlab/netsim/channel"
	"github.com/sarchlab/netsim/config"
	"github.com/sarchlab/netsim/ipv4"
	"github.com/sarchlab/netsim/logging"
	"github.com/sarchlab/netsim/sim"
)

// Names of the applications. They are also the logger names that the verbose
// option turns on.
const (
	EchoClientName = "EchoClient"
	EchoServerName = "EchoServer"
	BulkSenderName = "BulkSender"
	SinkName       = "Sink"
)

// Port is the port the servers listen on.
const Port = 9

func validPhyMode(v any) error {
	_, err := channel.PhyModeRate(v.(string))
	return err
}

func validAddr(v any) error {
	_, err := netip.ParseAddr(v.(string))
	return err
}

func validMask(v any) error {
	_, err := ipv4.ParseMask(v.(string))
	return err
}

func positiveDuration(v any) error {
	if v.(time.Duration) <= 0 {
		return fmt.Errorf("must be positive")
	}

	return nil
}

func addCommonOptions(set *config.Set, phyMode string) {
	set.Add(config.Option{
		Name:     "nWifi",
		Kind:     config.KindInt,
		Default:  MinStations,
		Usage:    "Number of wifi STA devices",
		Validate: config.AtLeast(MinStations),
	}).Add(config.Option{
		Name:    "verbose",
		Kind:    config.KindBool,
		Default: true,
		Usage:   "Tell applications to log if true",
	}).Add(config.Option{
		Name:    "tracing",
		Kind:    config.KindBool,
		Default: false,
		Usage:   "Enable csv, pcap and database tracing",
	}).Add(config.Option{
		Name:     "phyMode",
		Kind:     config.KindString,
		Default:  phyMode,
		Usage:    "Wifi Phy mode",
		Validate: validPhyMode,
	}).Add(config.Option{
		Name:     "stopTime",
		Kind:     config.KindDuration,
		Default:  10 * time.Second,
		Usage:    "Virtual time at which the simulation stops",
		Validate: positiveDuration,
	}).Add(config.Option{
		Name:    "seed",
		Kind:    config.KindInt,
		Default: 1,
		Usage:   "Seed of the random number generator",
	}).Add(config.Option{
		Name:     "subnet",
		Kind:     config.KindString,
		Default:  "10.1.1.0",
		Usage:    "Base address of the wifi subnet",
		Validate: validAddr,
	}).Add(config.Option{
		Name:     "mask",
		Kind:     config.KindString,
		Default:  "255.255.255.0",
		Usage:    "Mask of the wifi subnet",
		Validate: validMask,
	})
}

// CommonConfig holds the options shared by all scenarios.
type CommonConfig struct {
	Wifi     WifiConfig
	Verbose  bool
	Tracing  bool
	StopTime sim.VTime
	Seed     int64
}

func commonConfigFrom(set *config.Set) CommonConfig {
	wifi := DefaultWifiConfig()
	wifi.NWifi = set.Int("nWifi")
	wifi.PhyMode = set.String("phyMode")
	wifi.Subnet = netip.MustParseAddr(set.String("subnet"))
	wifi.Mask, _ = ipv4.ParseMask(set.String("mask"))

	return CommonConfig{
		Wifi:     wifi,
		Verbose:  set.Bool("verbose"),
		Tracing:  set.Bool("tracing"),
		StopTime: sim.VTime(set.Duration("stopTime")),
		Seed:     int64(set.Int("seed")),
	}
}

// LoggingConfig returns the logging configuration of a scenario run. Verbose
// runs log the applications at info level.
func LoggingConfig(level string, verbose bool) logging.Config {
	cfg := logging.Config{
		Level:      level,
		Components: map[string]string{},
	}

	if verbose {
		for _, name := range []string{
			EchoClientName, EchoServerName, BulkSenderName, SinkName,
		} {
			cfg.Components[name] = "info"
		}
	}

	return cfg
}

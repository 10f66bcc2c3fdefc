package scenario

import (
	"fmt"
	"net/netip"

	"github.com/sarchlab/netsim/app"
	"github.com/sarchlab/netsim/config"
	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
	"github.com/sarchlab/netsim/simulation"
)

// EchoOptions declares the options of the echo scenario.
func EchoOptions() *config.Set {
	set := config.NewSet("echo")
	addCommonOptions(set, "OfdmRate54Mbps")

	set.Add(config.Option{
		Name:    "maxPackets",
		Kind:    config.KindUint,
		Default: uint64(1),
		Usage:   "Number of echo requests, 0 for no limit",
	}).Add(config.Option{
		Name:     "interval",
		Kind:     config.KindDuration,
		Default:  sim.Second.Duration(),
		Usage:    "Time between two echo requests",
		Validate: positiveDuration,
	}).Add(config.Option{
		Name:     "packetSize",
		Kind:     config.KindInt,
		Default:  1024,
		Usage:    "Payload size of an echo request",
		Validate: config.Between(1, 65507),
	})

	return set
}

// EchoConfig configures the echo scenario.
type EchoConfig struct {
	CommonConfig

	MaxPackets  uint64
	Interval    sim.VTime
	PacketSize  int
	ServerStart sim.VTime
	ClientStart sim.VTime
}

// EchoConfigFrom reads the echo scenario options.
func EchoConfigFrom(set *config.Set) EchoConfig {
	return EchoConfig{
		CommonConfig: commonConfigFrom(set),
		MaxPackets:   set.Uint("maxPackets"),
		Interval:     sim.VTime(set.Duration("interval")),
		PacketSize:   set.Int("packetSize"),
		ServerStart:  sim.Second,
		ClientStart:  2 * sim.Second,
	}
}

// Echo is a built echo scenario.
type Echo struct {
	Topology *Topology
	Client   *app.EchoClient
	Server   *app.EchoServer
	StopTime sim.VTime
}

// BuildEcho installs an echo server on the second station and an echo client
// on the first one. Both applications stop at the stop time.
func BuildEcho(s *simulation.Simulation, cfg EchoConfig) (*Echo, error) {
	if cfg.StopTime <= cfg.ClientStart {
		return nil, &config.OptionError{
			Name:  "stopTime",
			Value: cfg.StopTime.Duration(),
			Err: fmt.Errorf("%w: must be after the client start at %s",
				config.ErrInvalidOptionValue, cfg.ClientStart.Duration()),
		}
	}

	t, err := BuildWifi(s, cfg.Wifi)
	if err != nil {
		return nil, err
	}

	e := &Echo{
		Topology: t,
		Server:   app.NewEchoServer(EchoServerName, Port),
		StopTime: cfg.StopTime,
		Client: app.MakeEchoClientBuilder().
			WithRemote(netip.AddrPortFrom(t.StaDevices[1].Address(), Port)).
			WithMaxPackets(cfg.MaxPackets).
			WithInterval(cfg.Interval).
			WithPacketSize(cfg.PacketSize).
			Build(EchoClientName),
	}

	_, err = s.Registry().AttachApplication(t.Stations[1],
		network.ApplicationConfig{
			App:   e.Server,
			Start: cfg.ServerStart,
			Stop:  cfg.StopTime,
		})
	if err != nil {
		return nil, err
	}

	_, err = s.Registry().AttachApplication(t.Stations[0],
		network.ApplicationConfig{
			App:   e.Client,
			Start: cfg.ClientStart,
			Stop:  cfg.StopTime,
		})
	if err != nil {
		return nil, err
	}

	return e, nil
}

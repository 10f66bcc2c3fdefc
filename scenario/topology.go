// Package scenario builds the example WiFi simulations: a UDP echo exchange
// and a TCP bulk transfer between two stations of an infrastructure network.
package scenario

import (
	"fmt"
	"net/netip"

	"github.com/sarchlab/netsim/channel"
	"github.com/sarchlab/netsim/config"
	"github.com/sarchlab/netsim/mobility"
	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/simulation"
)

// MinStations is the smallest number of stations a scenario can use. The
// first station talks to the second one.
const MinStations = 2

// WifiConfig describes the infrastructure network of a scenario.
type WifiConfig struct {
	// NWifi is the number of stations. An access point is added.
	NWifi int

	Subnet netip.Addr
	Mask   netip.Addr

	// PhyMode selects the data rate of every device.
	PhyMode string

	// FixedRss, when set, fixes the received signal strength to RssDbm and
	// drops everything below the receiver sensitivity.
	FixedRss bool
	RssDbm   float64

	// LossRate drops each reception with this probability.
	LossRate float64
}

// DefaultWifiConfig returns the two-station network on 10.1.1.0/24.
func DefaultWifiConfig() WifiConfig {
	return WifiConfig{
		NWifi:   MinStations,
		Subnet:  netip.MustParseAddr("10.1.1.0"),
		Mask:    netip.MustParseAddr("255.255.255.0"),
		PhyMode: "OfdmRate54Mbps",
	}
}

// A Topology is the set of entities of an infrastructure network.
type Topology struct {
	Stations   []*network.Node
	AP         *network.Node
	StaDevices []*network.Device
	APDevice   *network.Device
	Channel    *channel.WirelessChannel
	Positions  *mobility.ConstantPositionModel
}

func (c WifiConfig) validate() error {
	if c.NWifi < MinStations {
		return &config.OptionError{
			Name:  "nWifi",
			Value: c.NWifi,
			Err: fmt.Errorf("%w: at least %d stations are needed",
				config.ErrInvalidOptionValue, MinStations),
		}
	}

	if c.LossRate < 0 || c.LossRate > 1 {
		return &config.OptionError{
			Name:  "lossRate",
			Value: c.LossRate,
			Err: fmt.Errorf("%w: must be within [0, 1]",
				config.ErrInvalidOptionValue),
		}
	}

	return nil
}

func (c WifiConfig) lossModel(s *simulation.Simulation) channel.LossModel {
	var chain channel.ChainLoss

	if c.FixedRss {
		chain = append(chain, channel.FixedRssLoss{
			RssDbm:         c.RssDbm,
			SensitivityDbm: channel.DefaultSensitivityDbm,
		})
	}

	if c.LossRate > 0 {
		chain = append(chain, channel.RandomLoss{
			Rate: c.LossRate,
			Rand: s.Rand(),
		})
	}

	switch len(chain) {
	case 0:
		return channel.NoLoss{}
	case 1:
		return chain[0]
	default:
		return chain
	}
}

// BuildWifi creates the stations and the access point, places them on a grid
// five meters wide and ten meters deep with two nodes per row, connects all
// of them to one wireless channel and assigns the access point the first
// address of the subnet.
func BuildWifi(s *simulation.Simulation, cfg WifiConfig) (*Topology, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	rate, err := channel.PhyModeRate(cfg.PhyMode)
	if err != nil {
		return nil, &config.OptionError{
			Name:  "phyMode",
			Value: cfg.PhyMode,
			Err:   fmt.Errorf("%w: %v", config.ErrInvalidOptionValue, err),
		}
	}

	registry := s.Registry()

	stations, err := registry.CreateNodes(cfg.NWifi)
	if err != nil {
		return nil, err
	}

	aps, err := registry.CreateNodes(1)
	if err != nil {
		return nil, err
	}

	t := &Topology{
		Stations:  stations,
		AP:        aps[0],
		Positions: mobility.NewConstantPositionModel(),
	}

	grid := &mobility.GridPositionAllocator{
		DeltaX:    5,
		DeltaY:    10,
		GridWidth: 2,
		Layout:    mobility.RowFirst,
	}

	if err := mobility.Install(t.Positions, grid, stations...); err != nil {
		return nil, err
	}

	if err := mobility.Install(t.Positions, grid, t.AP); err != nil {
		return nil, err
	}

	t.Channel = channel.MakeWirelessBuilder().
		WithEngine(s.Engine()).
		WithDelayModel(channel.ConstantSpeedDelay{Positions: t.Positions}).
		WithLossModel(cfg.lossModel(s)).
		Build("wifi")

	devCfg := network.DeviceConfig{
		Channel:  t.Channel,
		Base:     cfg.Subnet,
		Mask:     cfg.Mask,
		DataRate: rate,
	}

	t.APDevice, err = registry.AttachDevice(t.AP, devCfg)
	if err != nil {
		return nil, err
	}

	for _, sta := range stations {
		d, err := registry.AttachDevice(sta, devCfg)
		if err != nil {
			return nil, err
		}

		t.StaDevices = append(t.StaDevices, d)
	}

	return t, nil
}

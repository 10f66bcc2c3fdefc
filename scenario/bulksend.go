package scenario

import (
	"net/netip"

	"github.com/sarchlab/netsim/app"
	"github.com/sarchlab/netsim/config"
	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
	"github.com/sarchlab/netsim/simulation"
	"github.com/sarchlab/netsim/tracing"
)

// BulkSendOptions declares the options of the bulk-send scenario.
func BulkSendOptions() *config.Set {
	set := config.NewSet("bulksend")
	addCommonOptions(set, "VhtMcs1")

	set.Add(config.Option{
		Name:    "maxBytes",
		Kind:    config.KindUint,
		Default: uint64(0),
		Usage:   "Total number of bytes for application to send",
	}).Add(config.Option{
		Name:    "rss",
		Kind:    config.KindFloat,
		Default: -80.0,
		Usage:   "Received signal strength in dBm",
	}).Add(config.Option{
		Name:     "lossRate",
		Kind:     config.KindFloat,
		Default:  0.0,
		Usage:    "Probability that a reception is lost",
		Validate: config.Between(0, 1),
	}).Add(config.Option{
		Name:     "sendSize",
		Kind:     config.KindInt,
		Default:  512,
		Usage:    "Payload size of each segment",
		Validate: config.Between(1, 65495),
	})

	return set
}

// BulkSendConfig configures the bulk-send scenario.
type BulkSendConfig struct {
	CommonConfig

	MaxBytes uint64
	SendSize int
}

// BulkSendConfigFrom reads the bulk-send scenario options.
func BulkSendConfigFrom(set *config.Set) BulkSendConfig {
	cfg := BulkSendConfig{
		CommonConfig: commonConfigFrom(set),
		MaxBytes:     set.Uint("maxBytes"),
		SendSize:     set.Int("sendSize"),
	}

	cfg.Wifi.FixedRss = true
	cfg.Wifi.RssDbm = set.Float("rss")
	cfg.Wifi.LossRate = set.Float("lossRate")

	return cfg
}

// BulkSend is a built bulk-send scenario.
type BulkSend struct {
	Topology *Topology
	Sender   *app.BulkSender
	Sink     *app.Sink
	StopTime sim.VTime

	// Delivered counts the data segments the sink device accepted.
	Delivered *tracing.CountTracer
}

// BuildBulkSend installs a bulk sender on the first station that sends to a
// sink on the second one. Both run from time zero to the stop time.
func BuildBulkSend(
	s *simulation.Simulation,
	cfg BulkSendConfig,
) (*BulkSend, error) {
	t, err := BuildWifi(s, cfg.Wifi)
	if err != nil {
		return nil, err
	}

	sinkDevice := t.StaDevices[1]

	b := &BulkSend{
		Topology: t,
		Sink:     app.NewSink(SinkName, Port),
		StopTime: cfg.StopTime,
		Sender: app.MakeBulkSenderBuilder().
			WithRemote(netip.AddrPortFrom(sinkDevice.Address(), Port)).
			WithMaxBytes(cfg.MaxBytes).
			WithSendSize(cfg.SendSize).
			Build(BulkSenderName),
		Delivered: tracing.NewCountTracer(func(rec tracing.Record) bool {
			return rec.Kind == tracing.KindRx &&
				rec.Packet.Flags&network.FlagData != 0
		}),
	}

	tracing.CollectTrace(s.Engine(), sinkDevice, b.Delivered)

	_, err = s.Registry().AttachApplication(t.Stations[1],
		network.ApplicationConfig{App: b.Sink, Start: 0, Stop: cfg.StopTime})
	if err != nil {
		return nil, err
	}

	_, err = s.Registry().AttachApplication(t.Stations[0],
		network.ApplicationConfig{App: b.Sender, Start: 0, Stop: cfg.StopTime})
	if err != nil {
		return nil, err
	}

	return b, nil
}

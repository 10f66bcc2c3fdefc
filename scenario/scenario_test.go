package scenario

import (
	"bytes"
	"net/netip"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/netsim/config"
	"github.com/sarchlab/netsim/ipv4"
	"github.com/sarchlab/netsim/logging"
	"github.com/sarchlab/netsim/mobility"
	"github.com/sarchlab/netsim/sim"
	"github.com/sarchlab/netsim/simulation"
	"github.com/sarchlab/netsim/tracing"
)

func newSimulation(seed int64, f *logging.Factory) *simulation.Simulation {
	s, err := simulation.MakeBuilder().
		WithSeed(seed).
		WithLogging(f).
		WithOutputPrefix(filepath.Join(GinkgoT().TempDir(), "run")).
		Build()
	Expect(err).NotTo(HaveOccurred())

	DeferCleanup(s.Terminate)

	return s
}

var _ = Describe("Wifi topology", func() {
	It("should address the access point first", func() {
		s := newSimulation(1, nil)

		t, err := BuildWifi(s, DefaultWifiConfig())
		Expect(err).NotTo(HaveOccurred())

		Expect(t.Stations).To(HaveLen(2))
		Expect(t.APDevice.Address()).
			To(Equal(netip.MustParseAddr("10.1.1.1")))
		Expect(t.StaDevices[0].Address()).
			To(Equal(netip.MustParseAddr("10.1.1.2")))
		Expect(t.StaDevices[1].Address()).
			To(Equal(netip.MustParseAddr("10.1.1.3")))
	})

	It("should place the access point after the stations on the grid", func() {
		s := newSimulation(1, nil)
		cfg := DefaultWifiConfig()
		cfg.NWifi = 3

		t, err := BuildWifi(s, cfg)
		Expect(err).NotTo(HaveOccurred())

		pos, err := t.Positions.PositionOf(t.Stations[1].ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(pos).To(Equal(mobility.Vector{X: 5}))

		pos, err = t.Positions.PositionOf(t.AP.ID())
		Expect(err).NotTo(HaveOccurred())
		Expect(pos).To(Equal(mobility.Vector{X: 5, Y: 10}))
	})

	It("should reject less than two stations", func() {
		s := newSimulation(1, nil)
		cfg := DefaultWifiConfig()
		cfg.NWifi = 1

		_, err := BuildWifi(s, cfg)

		Expect(err).To(MatchError(config.ErrInvalidOptionValue))
		Expect(s.Registry().Nodes()).To(BeEmpty())
	})

	It("should reject an unknown phy mode", func() {
		s := newSimulation(1, nil)
		cfg := DefaultWifiConfig()
		cfg.PhyMode = "Bogus"

		_, err := BuildWifi(s, cfg)

		Expect(err).To(MatchError(config.ErrInvalidOptionValue))
	})

	It("should report an exhausted subnet", func() {
		s := newSimulation(1, nil)
		cfg := DefaultWifiConfig()
		cfg.Mask = netip.MustParseAddr("255.255.255.252")

		_, err := BuildWifi(s, cfg)

		Expect(err).To(MatchError(ipv4.ErrAddressSpaceExhausted))
	})
})

var _ = Describe("Options", func() {
	It("should reject a station count below two", func() {
		err := EchoOptions().Apply(map[string]any{"nWifi": 1})

		Expect(err).To(MatchError(config.ErrInvalidOptionValue))
	})

	It("should reject an unknown phy mode", func() {
		err := BulkSendOptions().Apply(map[string]any{"phyMode": "Bogus"})

		Expect(err).To(MatchError(config.ErrInvalidOptionValue))
	})

	It("should reject a loss rate above one", func() {
		err := BulkSendOptions().Apply(map[string]any{"lossRate": 1.5})

		Expect(err).To(MatchError(config.ErrInvalidOptionValue))
	})

	It("should reject an unknown option", func() {
		err := EchoOptions().Apply(map[string]any{"maxBytes": 10})

		Expect(err).To(MatchError(config.ErrUnknownOption))
	})

	It("should read the echo defaults", func() {
		cfg := EchoConfigFrom(EchoOptions())

		Expect(cfg.Wifi.NWifi).To(Equal(2))
		Expect(cfg.Wifi.PhyMode).To(Equal("OfdmRate54Mbps"))
		Expect(cfg.StopTime).To(Equal(10 * sim.Second))
		Expect(cfg.MaxPackets).To(Equal(uint64(1)))
		Expect(cfg.PacketSize).To(Equal(1024))
		Expect(cfg.Verbose).To(BeTrue())
		Expect(cfg.Tracing).To(BeFalse())
	})

	It("should read the bulk-send defaults", func() {
		set := BulkSendOptions()
		Expect(set.Apply(map[string]any{"stopTime": "2s"})).To(Succeed())

		cfg := BulkSendConfigFrom(set)

		Expect(cfg.Wifi.PhyMode).To(Equal("VhtMcs1"))
		Expect(cfg.Wifi.FixedRss).To(BeTrue())
		Expect(cfg.Wifi.RssDbm).To(Equal(-80.0))
		Expect(cfg.MaxBytes).To(BeZero())
		Expect(cfg.SendSize).To(Equal(512))
		Expect(cfg.StopTime).To(Equal(sim.VTime(2 * time.Second)))
	})

	It("should turn on the application loggers when verbose", func() {
		cfg := LoggingConfig("warn", true)

		Expect(cfg.Components).To(HaveKeyWithValue(EchoClientName, "info"))
		Expect(cfg.Components).To(HaveKeyWithValue(SinkName, "info"))
		Expect(LoggingConfig("warn", false).Components).To(BeEmpty())
	})
})

var _ = Describe("Echo", func() {
	It("should complete one round trip", func() {
		s := newSimulation(1, nil)
		e, err := BuildEcho(s, EchoConfigFrom(EchoOptions()))
		Expect(err).NotTo(HaveOccurred())

		tracer := tracing.NewMemoryTracer()
		s.AddTracer(tracer)
		s.StartTracing()

		Expect(s.RunUntil(e.StopTime)).To(Succeed())

		Expect(e.Client.Sent()).To(Equal(uint64(1)))
		Expect(e.Client.Received()).To(Equal(uint64(1)))
		Expect(e.Server.Received()).To(Equal(uint64(1)))
		Expect(e.Server.Echoed()).To(Equal(uint64(1)))

		for _, rec := range tracer.Records() {
			if rec.Kind == tracing.KindTx {
				Expect(rec.Time).To(BeNumerically(">=", 2*sim.Second))
				Expect(rec.Time).To(BeNumerically("<", 3*sim.Second))
			}
		}
	})

	It("should log the exchange when verbose", func() {
		buf := &bytes.Buffer{}
		cfg := LoggingConfig("warn", true)
		cfg.Output = buf
		f, err := logging.New(cfg)
		Expect(err).NotTo(HaveOccurred())

		s := newSimulation(1, f)
		e, err := BuildEcho(s, EchoConfigFrom(EchoOptions()))
		Expect(err).NotTo(HaveOccurred())

		Expect(s.RunUntil(e.StopTime)).To(Succeed())

		Expect(buf.String()).To(ContainSubstring("client sent"))
		Expect(buf.String()).To(ContainSubstring("server received"))
		Expect(buf.String()).To(ContainSubstring("client received"))
	})

	It("should reject a stop time before the client starts", func() {
		set := EchoOptions()
		Expect(set.Apply(map[string]any{"stopTime": "1500ms"})).To(Succeed())

		s := newSimulation(1, nil)
		_, err := BuildEcho(s, EchoConfigFrom(set))

		Expect(err).To(MatchError(config.ErrInvalidOptionValue))
		Expect(err.Error()).To(ContainSubstring("stopTime"))
		Expect(s.Registry().Nodes()).To(BeEmpty())
	})

	It("should not log the exchange when quiet", func() {
		buf := &bytes.Buffer{}
		cfg := LoggingConfig("warn", false)
		cfg.Output = buf
		f, err := logging.New(cfg)
		Expect(err).NotTo(HaveOccurred())

		s := newSimulation(1, f)
		e, err := BuildEcho(s, EchoConfigFrom(EchoOptions()))
		Expect(err).NotTo(HaveOccurred())

		Expect(s.RunUntil(e.StopTime)).To(Succeed())

		Expect(buf.String()).NotTo(ContainSubstring("client sent"))
	})
})

var _ = Describe("BulkSend", func() {
	build := func(seed int64, values map[string]any) (
		*simulation.Simulation, *BulkSend,
	) {
		set := BulkSendOptions()
		Expect(set.Apply(values)).To(Succeed())

		s := newSimulation(seed, nil)
		b, err := BuildBulkSend(s, BulkSendConfigFrom(set))
		Expect(err).NotTo(HaveOccurred())

		Expect(s.RunUntil(b.StopTime)).To(Succeed())

		return s, b
	}

	It("should deliver every byte of the budget", func() {
		_, b := build(1, map[string]any{
			"maxBytes": 100_000,
			"stopTime": "1s",
		})

		Expect(b.Sender.TotalBytesSent()).To(Equal(uint64(100_000)))
		Expect(b.Sender.Done()).To(BeTrue())
		Expect(b.Sink.TotalBytesReceived()).To(Equal(uint64(100_000)))
		Expect(b.Delivered.PayloadBytes()).To(Equal(uint64(100_000)))
	})

	It("should send until the stop time without a budget", func() {
		s, b := build(1, map[string]any{"stopTime": "100ms"})

		Expect(b.Sender.TotalBytesSent()).To(BeNumerically(">", 100_000))
		Expect(b.Sink.TotalBytesReceived()).
			To(Equal(b.Delivered.PayloadBytes()))
		Expect(b.Sink.TotalBytesReceived()).
			To(BeNumerically("<=", b.Sender.TotalBytesSent()))
		Expect(s.Summary().Devices[2].RxPayloadBytes).
			To(BeNumerically(">=", b.Sink.TotalBytesReceived()))
	})

	It("should receive nothing below the receiver sensitivity", func() {
		_, b := build(1, map[string]any{
			"rss":      -120.0,
			"stopTime": "1s",
		})

		Expect(b.Sink.TotalBytesReceived()).To(BeZero())
		Expect(b.Sender.SegmentsLost()).To(BeNumerically(">", 0))
	})

	It("should repeat a lossy run with the same seed", func() {
		values := map[string]any{
			"lossRate": 0.3,
			"maxBytes": 50_000,
			"stopTime": "1s",
		}

		_, first := build(7, values)
		_, second := build(7, values)

		Expect(first.Sender.SegmentsLost()).To(BeNumerically(">", 0))
		Expect(second.Sender.SegmentsLost()).
			To(Equal(first.Sender.SegmentsLost()))
		Expect(second.Sink.TotalBytesReceived()).
			To(Equal(first.Sink.TotalBytesReceived()))
		Expect(second.Sink.TotalBytesReceived()).
			To(BeNumerically("<=", 50_000))
	})
})

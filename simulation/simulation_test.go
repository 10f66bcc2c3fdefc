package simulation

import (
	"bytes"
	"context"
	"net/netip"
	"os"
	"path/filepath"

	ginkgo "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/netsim/app"
	"github.com/sarchlab/netsim/channel"
	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
	"github.com/sarchlab/netsim/tracing"
)

func buildEcho(s *Simulation) {
	ch := channel.MakePointToPointBuilder().
		WithEngine(s.Engine()).
		WithDelay(2 * sim.Millisecond).
		Build("p2p")

	nodes, err := s.Registry().CreateNodes(2)
	Expect(err).NotTo(HaveOccurred())

	var devs []*network.Device
	for _, n := range nodes {
		d, err := s.Registry().AttachDevice(n, network.DeviceConfig{
			Channel:  ch,
			Base:     netip.MustParseAddr("10.1.1.0"),
			Mask:     netip.MustParseAddr("255.255.255.0"),
			DataRate: 5_000_000,
		})
		Expect(err).NotTo(HaveOccurred())
		devs = append(devs, d)
	}

	_, err = s.Registry().AttachApplication(nodes[1], network.ApplicationConfig{
		App:   app.NewEchoServer("EchoServer", 9),
		Start: sim.Second,
		Stop:  10 * sim.Second,
	})
	Expect(err).NotTo(HaveOccurred())

	client := app.MakeEchoClientBuilder().
		WithRemote(netip.AddrPortFrom(devs[1].Address(), 9)).
		Build("EchoClient")
	_, err = s.Registry().AttachApplication(nodes[0], network.ApplicationConfig{
		App:   client,
		Start: 2 * sim.Second,
		Stop:  10 * sim.Second,
	})
	Expect(err).NotTo(HaveOccurred())
}

var _ = ginkgo.Describe("Builder", func() {
	ginkgo.It("should reject a monitor port without monitoring", func() {
		_, err := MakeBuilder().WithMonitorPort(8080).Build()

		Expect(err).To(HaveOccurred())
	})

	ginkgo.It("should name outputs after the run ID by default", func() {
		s, err := MakeBuilder().Build()
		Expect(err).NotTo(HaveOccurred())
		defer s.Terminate()

		Expect(s.ID()).NotTo(BeEmpty())
		Expect(s.OutputPrefix()).To(Equal("netsim_" + s.ID()))
		Expect(s.Monitor()).To(BeNil())
		Expect(s.DataRecorder()).To(BeNil())
	})

	ginkgo.It("should give each simulation its own state", func() {
		a, err := MakeBuilder().WithSeed(5).Build()
		Expect(err).NotTo(HaveOccurred())
		defer a.Terminate()
		b, err := MakeBuilder().WithSeed(5).Build()
		Expect(err).NotTo(HaveOccurred())
		defer b.Terminate()

		Expect(a.ID()).NotTo(Equal(b.ID()))
		Expect(a.Engine()).NotTo(BeIdenticalTo(b.Engine()))
		Expect(a.Rand().Int63()).To(Equal(b.Rand().Int63()))
	})
})

var _ = ginkgo.Describe("Simulation", func() {
	var prefix string

	ginkgo.BeforeEach(func() {
		prefix = filepath.Join(ginkgo.GinkgoT().TempDir(), "run")
	})

	ginkgo.It("should run without hooks when tracing is off", func() {
		s, err := MakeBuilder().WithOutputPrefix(prefix).Build()
		Expect(err).NotTo(HaveOccurred())
		buildEcho(s)
		s.StartTracing()

		Expect(s.RunUntil(10 * sim.Second)).To(Succeed())

		for _, d := range s.Registry().Devices() {
			Expect(d.NumHooks()).To(Equal(0))
		}
		Expect(s.Terminate()).To(Succeed())

		_, err = os.Stat(prefix + ".csv")
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	ginkgo.It("should write every trace output", func() {
		s, err := MakeBuilder().
			WithOutputPrefix(prefix).
			WithTracing(TraceOptions{CSV: true, Pcap: true, DB: true}).
			Build()
		Expect(err).NotTo(HaveOccurred())
		buildEcho(s)

		counter := tracing.NewCountTracer(tracing.KindIs(tracing.KindRx))
		s.AddTracer(counter)
		s.StartTracing()

		Expect(s.RunUntil(10 * sim.Second)).To(Succeed())
		Expect(counter.Count()).To(Equal(uint64(2)))
		Expect(s.Terminate()).To(Succeed())
		Expect(s.Terminate()).To(Succeed())

		Expect(prefix + ".csv").To(BeAnExistingFile())
		Expect(prefix + "-0-0.pcap").To(BeAnExistingFile())
		Expect(prefix + "-1-0.pcap").To(BeAnExistingFile())

		reader, err := datarecording.NewReader(prefix + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()

		reader.MapTable(DeviceTable, DeviceSummary{})
		reader.MapTable(tracing.TraceTable, tracing.TraceEntry{})

		devices, total, err := reader.Query(context.Background(), DeviceTable,
			datarecording.QueryParams{OrderBy: "Name"})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))
		Expect(devices[0].(*DeviceSummary).TxPackets).To(Equal(uint64(1)))

		_, traced, err := reader.Query(context.Background(), tracing.TraceTable,
			datarecording.QueryParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(traced).To(Equal(4))
	})

	ginkgo.It("should write the summary as YAML", func() {
		s, err := MakeBuilder().WithOutputPrefix(prefix).Build()
		Expect(err).NotTo(HaveOccurred())
		defer s.Terminate()
		buildEcho(s)

		Expect(s.RunUntil(10 * sim.Second)).To(Succeed())

		buf := &bytes.Buffer{}
		Expect(s.WriteSummary(buf)).To(Succeed())

		var summary Summary
		Expect(yaml.Unmarshal(buf.Bytes(), &summary)).To(Succeed())
		Expect(summary.ID).To(Equal(s.ID()))
		Expect(summary.VirtualTime).To(BeNumerically("~", 10.0))
		Expect(summary.Devices).To(HaveLen(2))
		Expect(summary.Devices[1].RxPayloadBytes).To(Equal(uint64(1024)))
	})

	ginkgo.It("should serve the monitor while it runs", func() {
		s, err := MakeBuilder().
			WithOutputPrefix(prefix).
			WithMonitoring().
			Build()
		Expect(err).NotTo(HaveOccurred())
		buildEcho(s)

		Expect(s.RunUntil(10 * sim.Second)).To(Succeed())

		Expect(s.Monitor().URL()).NotTo(BeEmpty())
		Expect(s.Monitor().Status().Now).To(BeNumerically(">=", 2.0))
		Expect(s.Monitor().Devices()).To(HaveLen(2))
		Expect(s.Terminate()).To(Succeed())
		Expect(s.Monitor().URL()).To(BeEmpty())
	})
})

var _ = ginkgo.Describe("Report", func() {
	var prefix string

	ginkgo.BeforeEach(func() {
		prefix = filepath.Join(ginkgo.GinkgoT().TempDir(), "run")
	})

	ginkgo.It("should read a traced run back", func() {
		s, err := MakeBuilder().
			WithOutputPrefix(prefix).
			WithTracing(TraceOptions{DB: true}).
			Build()
		Expect(err).NotTo(HaveOccurred())
		buildEcho(s)
		s.StartTracing()

		Expect(s.RunUntil(10 * sim.Second)).To(Succeed())
		Expect(s.Terminate()).To(Succeed())

		report, err := LoadReport(context.Background(), prefix+".sqlite3")
		Expect(err).NotTo(HaveOccurred())

		Expect(report.ID).To(Equal(s.ID()))
		Expect(report.VirtualTime).To(BeNumerically("~", 10.0))
		Expect(report.Devices).To(HaveLen(2))
		Expect(report.Devices[0].Address).To(Equal("10.1.1.1"))
		Expect(report.Devices[0].TxPackets).To(Equal(uint64(1)))
		Expect(report.Devices[1].RxPayloadBytes).To(Equal(uint64(1024)))
		Expect(report.TraceCounts).To(Equal(map[string]int{"tx": 2, "rx": 2}))

		buf := &bytes.Buffer{}
		Expect(report.Write(buf)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("trace_counts:"))
		Expect(buf.String()).To(ContainSubstring("tx_packets: 1"))
	})

	ginkgo.It("should reject a recording without a run summary", func() {
		recorder, err := datarecording.New(prefix)
		Expect(err).NotTo(HaveOccurred())
		Expect(recorder.CreateTable(RunTable, RunRecord{})).To(Succeed())
		Expect(recorder.Close()).To(Succeed())

		_, err = LoadReport(context.Background(), prefix+".sqlite3")

		Expect(err).To(MatchError(ErrNoRunSummary))
	})

	ginkgo.It("should reject a missing recording", func() {
		_, err := LoadReport(context.Background(), prefix+".sqlite3")

		Expect(err).To(MatchError(datarecording.ErrNoRecording))
	})
})

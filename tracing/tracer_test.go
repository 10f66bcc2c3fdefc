package tracing

import (
	"context"
	"encoding/csv"
	"io"
	"math/rand"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/netsim/app"
	"github.com/sarchlab/netsim/channel"
	"github.com/sarchlab/netsim/datarecording"
	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
)

func pendingAtExit(c io.Closer) bool {
	openFiles.Lock()
	defer openFiles.Unlock()

	_, found := openFiles.closers[c]

	return found
}

type echoNetwork struct {
	engine   *sim.SerialEngine
	registry *network.Registry
	devs     []*network.Device
}

func buildEchoNetwork(loss channel.LossModel) *echoNetwork {
	engine := sim.NewSerialEngine()
	registry := network.MakeRegistryBuilder().
		WithEngine(engine).
		WithRand(rand.New(rand.NewSource(1))).
		Build()
	ch := channel.MakeWirelessBuilder().
		WithEngine(engine).
		WithDelayModel(channel.FixedDelay{Value: sim.Microsecond}).
		WithLossModel(loss).
		Build("wifi")

	nodes, err := registry.CreateNodes(3)
	Expect(err).NotTo(HaveOccurred())

	n := &echoNetwork{engine: engine, registry: registry}
	for _, node := range nodes {
		d, err := registry.AttachDevice(node, network.DeviceConfig{
			Channel:  ch,
			Base:     netip.MustParseAddr("10.1.1.0"),
			Mask:     netip.MustParseAddr("255.255.255.0"),
			DataRate: 58_500_000,
		})
		Expect(err).NotTo(HaveOccurred())
		n.devs = append(n.devs, d)
	}

	server := app.NewEchoServer("EchoServer", 9)
	client := app.MakeEchoClientBuilder().
		WithRemote(netip.AddrPortFrom(n.devs[1].Address(), 9)).
		WithPacketSize(100).
		Build("EchoClient")

	_, err = registry.AttachApplication(nodes[1], network.ApplicationConfig{
		App: server, Start: sim.Second, Stop: 10 * sim.Second,
	})
	Expect(err).NotTo(HaveOccurred())
	_, err = registry.AttachApplication(nodes[0], network.ApplicationConfig{
		App: client, Start: 2 * sim.Second, Stop: 10 * sim.Second,
	})
	Expect(err).NotTo(HaveOccurred())

	return n
}

var _ = Describe("CollectTrace", func() {
	var (
		mockCtrl *gomock.Controller
		net      *echoNetwork
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		net = buildEchoNetwork(channel.NoLoss{})
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should forward device events to the tracer", func() {
		tracer := NewMockTracer(mockCtrl)
		CollectTrace(net.engine, net.devs[0], tracer)

		var records []Record
		tracer.EXPECT().
			Trace(gomock.Any()).
			Do(func(rec Record) { records = append(records, rec) }).
			Times(2)

		Expect(net.engine.RunUntil(10 * sim.Second)).To(Succeed())

		Expect(records[0].Kind).To(Equal(KindTx))
		Expect(records[0].Time).To(Equal(2 * sim.Second))
		Expect(records[0].Node).To(Equal(net.devs[0].Node().ID()))
		Expect(records[0].DeviceIndex).To(Equal(0))
		Expect(records[0].Packet.PayloadSize()).To(Equal(100))
		Expect(records[1].Kind).To(Equal(KindRx))
		Expect(records[1].Time).To(BeNumerically(">", records[0].Time))
	})

	It("should refuse the same tracer twice on a device", func() {
		tracer := NewMemoryTracer()
		CollectTrace(net.engine, net.devs[0], tracer)

		Expect(func() {
			CollectTrace(net.engine, net.devs[0], tracer)
		}).To(Panic())
	})

	It("should leave devices without tracers hook free", func() {
		Expect(net.devs[2].NumHooks()).To(Equal(0))
		Expect(net.engine.RunUntil(10 * sim.Second)).To(Succeed())
	})

	It("should record the whole round trip from all devices", func() {
		tracer := NewMemoryTracer()
		CollectTraceFromAll(net.engine, net.registry, tracer)

		Expect(net.engine.RunUntil(10 * sim.Second)).To(Succeed())

		kinds := []Kind{}
		for _, rec := range tracer.Records() {
			kinds = append(kinds, rec.Kind)
		}
		Expect(kinds).To(Equal([]Kind{KindTx, KindRx, KindTx, KindRx}))
	})

	It("should record drops with their reason", func() {
		net = buildEchoNetwork(channel.RandomLoss{
			Rate: 1, Rand: rand.New(rand.NewSource(1)),
		})
		tracer := NewMemoryTracer()
		CollectTraceFromAll(net.engine, net.registry, tracer)

		Expect(net.engine.RunUntil(10 * sim.Second)).To(Succeed())

		records := tracer.Records()
		Expect(records).To(HaveLen(2))
		Expect(records[1].Kind).To(Equal(KindDrop))
		Expect(records[1].Detail).To(Equal("random loss"))
		Expect(records[1].String()).To(ContainSubstring("(random loss)"))
	})
})

var _ = Describe("CountTracer", func() {
	It("should count filtered records", func() {
		net := buildEchoNetwork(channel.NoLoss{})
		counter := NewCountTracer(KindIs(KindRx))
		CollectTraceFromAll(net.engine, net.registry, counter)

		Expect(net.engine.RunUntil(10 * sim.Second)).To(Succeed())

		Expect(counter.Count()).To(Equal(uint64(2)))
		Expect(counter.PayloadBytes()).To(Equal(uint64(200)))
		Expect(counter.WireBytes()).To(Equal(uint64(2 * (100 + 28))))
	})
})

var _ = Describe("CSVTraceWriter", func() {
	It("should write a header and one row per record", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		writer := NewCSVTraceWriter(path)
		Expect(writer.Init()).To(Succeed())

		net := buildEchoNetwork(channel.NoLoss{})
		CollectTraceFromAll(net.engine, net.registry, writer)
		Expect(net.engine.RunUntil(10 * sim.Second)).To(Succeed())
		Expect(writer.Close()).To(Succeed())

		f, err := os.Open(writer.Filename())
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		rows, err := csv.NewReader(f).ReadAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(5))
		Expect(rows[0]).To(Equal(csvHeader))
		Expect(rows[1][1]).To(Equal("tx"))
		Expect(rows[1][5]).To(Equal("UDP"))
		Expect(rows[1][7]).To(Equal(net.devs[1].Address().String() + ":9"))
	})

	It("should leave the exit handler once closed", func() {
		writer := NewCSVTraceWriter(filepath.Join(GinkgoT().TempDir(), "trace"))
		Expect(writer.Init()).To(Succeed())
		Expect(pendingAtExit(writer)).To(BeTrue())

		Expect(writer.Close()).To(Succeed())
		Expect(pendingAtExit(writer)).To(BeFalse())
		Expect(writer.Close()).To(Succeed())
	})

	It("should not overwrite an existing file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		Expect(os.WriteFile(path+".csv", nil, 0o600)).To(Succeed())

		err := NewCSVTraceWriter(path).Init()

		Expect(err).To(MatchError(ErrTraceFileExists))
	})
})

var _ = Describe("DBTracer", func() {
	It("should store records in the trace table", func() {
		path := filepath.Join(GinkgoT().TempDir(), "trace")
		recorder, err := datarecording.New(path)
		Expect(err).NotTo(HaveOccurred())

		tracer, err := NewDBTracer(recorder, KindIs(KindTx))
		Expect(err).NotTo(HaveOccurred())

		net := buildEchoNetwork(channel.NoLoss{})
		CollectTraceFromAll(net.engine, net.registry, tracer)
		Expect(net.engine.RunUntil(10 * sim.Second)).To(Succeed())
		Expect(recorder.Close()).To(Succeed())

		reader, err := datarecording.NewReader(path + ".sqlite3")
		Expect(err).NotTo(HaveOccurred())
		defer reader.Close()
		reader.MapTable(TraceTable, TraceEntry{})

		results, total, err := reader.Query(context.Background(), TraceTable,
			datarecording.QueryParams{OrderBy: "Time"})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))

		first := results[0].(*TraceEntry)
		Expect(first.Kind).To(Equal("tx"))
		Expect(first.Time).To(Equal(int64(2 * sim.Second)))
		Expect(first.TimeSec).To(BeNumerically("~", 2.0))
		Expect(first.Size).To(Equal(128))
	})
})

var _ = Describe("PcapTracer", func() {
	It("should ignore records after Close", func() {
		prefix := filepath.Join(GinkgoT().TempDir(), "bulk")
		tracer := NewPcapTracer(prefix)
		Expect(pendingAtExit(tracer)).To(BeTrue())

		Expect(tracer.Close()).To(Succeed())
		Expect(pendingAtExit(tracer)).To(BeFalse())

		net := buildEchoNetwork(channel.NoLoss{})
		CollectTraceFromAll(net.engine, net.registry, tracer)
		Expect(net.engine.RunUntil(10 * sim.Second)).To(Succeed())

		Expect(tracer.Filename(net.devs[0].Node().ID(), 0)).NotTo(BeAnExistingFile())
	})

	It("should write one capture file per device", func() {
		prefix := filepath.Join(GinkgoT().TempDir(), "bulk")
		tracer := NewPcapTracer(prefix)

		net := buildEchoNetwork(channel.NoLoss{})
		CollectTraceFromAll(net.engine, net.registry, tracer)
		Expect(net.engine.RunUntil(10 * sim.Second)).To(Succeed())
		Expect(tracer.Close()).To(Succeed())

		node0 := net.devs[0].Node().ID()
		f, err := os.Open(tracer.Filename(node0, 0))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		r, err := pcapgo.NewReader(f)
		Expect(err).NotTo(HaveOccurred())
		Expect(r.LinkType()).To(Equal(layers.LinkTypeRaw))

		var frames [][]byte
		for {
			data, _, err := r.ReadPacketData()
			if err == io.EOF {
				break
			}
			Expect(err).NotTo(HaveOccurred())
			frames = append(frames, data)
		}
		Expect(frames).To(HaveLen(2))

		p := gopacket.NewPacket(frames[0], layers.LayerTypeIPv4, gopacket.Default)
		udp, ok := p.Layer(layers.LayerTypeUDP).(*layers.UDP)
		Expect(ok).To(BeTrue())
		Expect(udp.DstPort).To(Equal(layers.UDPPort(9)))
		Expect(udp.Payload).To(HaveLen(100))

		node2 := net.devs[2].Node().ID()
		_, err = os.Stat(tracer.Filename(node2, 0))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	It("should encode TCP acknowledgements", func() {
		data, err := EncodePacket(network.Packet{
			Protocol: network.ProtocolTCP,
			Src:      netip.MustParseAddrPort("10.1.1.3:9"),
			Dst:      netip.MustParseAddrPort("10.1.1.2:49152"),
			Flags:    network.FlagAck,
			Seq:      7,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(HaveLen(40))

		p := gopacket.NewPacket(data, layers.LayerTypeIPv4, gopacket.Default)
		tcp, ok := p.Layer(layers.LayerTypeTCP).(*layers.TCP)
		Expect(ok).To(BeTrue())
		Expect(tcp.ACK).To(BeTrue())
		Expect(tcp.Ack).To(Equal(uint32(7)))
	})
})

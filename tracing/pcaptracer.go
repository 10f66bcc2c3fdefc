package tracing

import (
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sarchlab/netsim/network"
)

const pcapSnapLen = 65535

type pcapKey struct {
	node  network.NodeID
	index int
}

type pcapFile struct {
	file   *os.File
	writer *pcapgo.Writer
}

// PcapTracer writes transmitted and received packets as raw IPv4 frames into
// one pcap file per device, named "<prefix>-<node>-<device>.pcap".
type PcapTracer struct {
	prefix string
	files  map[pcapKey]*pcapFile
	err    error
	closed bool
}

// NewPcapTracer creates a PcapTracer. Files are created when a device sees
// its first packet. Records traced after Close are ignored.
func NewPcapTracer(prefix string) *PcapTracer {
	t := &PcapTracer{
		prefix: prefix,
		files:  make(map[pcapKey]*pcapFile),
	}

	closeAtExit(t)

	return t
}

// Filename returns the pcap file name of a device.
func (t *PcapTracer) Filename(node network.NodeID, deviceIndex int) string {
	return fmt.Sprintf("%s-%d-%d.pcap", t.prefix, node, deviceIndex)
}

// Trace writes tx and rx records into the device's file. The first write
// error is kept and reported by Err and Close.
func (t *PcapTracer) Trace(rec Record) {
	if rec.Kind == KindDrop || t.err != nil || t.closed {
		return
	}

	f, err := t.fileOf(rec)
	if err != nil {
		t.err = err
		return
	}

	data, err := EncodePacket(rec.Packet)
	if err != nil {
		t.err = err
		return
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     time.Unix(0, int64(rec.Time)).UTC(),
		CaptureLength: len(data),
		Length:        len(data),
	}

	if err := f.writer.WritePacket(ci, data); err != nil {
		t.err = err
	}
}

func (t *PcapTracer) fileOf(rec Record) (*pcapFile, error) {
	key := pcapKey{node: rec.Node, index: rec.DeviceIndex}
	if f, ok := t.files[key]; ok {
		return f, nil
	}

	file, err := os.Create(t.Filename(rec.Node, rec.DeviceIndex))
	if err != nil {
		return nil, err
	}

	w := pcapgo.NewWriter(file)
	if err := w.WriteFileHeader(pcapSnapLen, layers.LinkTypeRaw); err != nil {
		file.Close()
		return nil, err
	}

	f := &pcapFile{file: file, writer: w}
	t.files[key] = f

	return f, nil
}

// Err returns the first error met while writing.
func (t *PcapTracer) Err() error {
	return t.err
}

// Close closes all the files in a stable order. Closing twice does nothing.
func (t *PcapTracer) Close() error {
	if t.closed {
		return nil
	}

	t.closed = true
	forgetAtExit(t)

	keys := make([]pcapKey, 0, len(t.files))
	for k := range t.files {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].node != keys[j].node {
			return keys[i].node < keys[j].node
		}

		return keys[i].index < keys[j].index
	})

	err := t.err
	for _, k := range keys {
		if closeErr := t.files[k].file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}

		delete(t.files, k)
	}

	return err
}

// EncodePacket serializes a packet as an IPv4 datagram carrying a UDP or TCP
// segment.
func EncodePacket(pkt network.Packet) ([]byte, error) {
	ip := &layers.IPv4{
		Version: 4,
		IHL:     5,
		TTL:     64,
		Id:      uint16(pkt.ID),
		SrcIP:   net.IP(pkt.Src.Addr().AsSlice()),
		DstIP:   net.IP(pkt.Dst.Addr().AsSlice()),
	}

	var transport gopacket.SerializableLayer

	switch pkt.Protocol {
	case network.ProtocolTCP:
		ip.Protocol = layers.IPProtocolTCP
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(pkt.Src.Port()),
			DstPort: layers.TCPPort(pkt.Dst.Port()),
			Seq:     pkt.Seq,
			PSH:     pkt.Flags&network.FlagData != 0,
			Window:  65535,
		}

		if pkt.Flags&network.FlagAck != 0 {
			tcp.ACK = true
			tcp.Ack = pkt.Seq
		}

		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}

		transport = tcp
	default:
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(pkt.Src.Port()),
			DstPort: layers.UDPPort(pkt.Dst.Port()),
		}

		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}

		transport = udp
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	err := gopacket.SerializeLayers(buf, opts,
		ip, transport, gopacket.Payload(pkt.Payload))
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

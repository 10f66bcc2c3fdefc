package app

import (
	"net/netip"

	"github.com/sarchlab/netsim/network"
	"go.uber.org/zap"
)

// A Sink accepts data segments, acknowledges each one and counts the bytes.
type Sink struct {
	name     string
	protocol network.Protocol
	port     uint16

	ctx        network.AppContext
	totalBytes uint64
	packets    uint64
}

// NewSink creates a TCP Sink that listens on the port.
func NewSink(name string, port uint16) *Sink {
	return NewSinkWithProtocol(name, network.ProtocolTCP, port)
}

// NewSinkWithProtocol creates a Sink for the given protocol. Only TCP
// segments are acknowledged.
func NewSinkWithProtocol(
	name string,
	protocol network.Protocol,
	port uint16,
) *Sink {
	if port == 0 {
		panic("sink requires a port")
	}

	return &Sink{
		name:     name,
		protocol: protocol,
		port:     port,
	}
}

// Name returns the name of the sink.
func (s *Sink) Name() string {
	return s.name
}

// TotalBytesReceived returns the payload bytes received.
func (s *Sink) TotalBytesReceived() uint64 {
	return s.totalBytes
}

// PacketsReceived returns the number of data segments received.
func (s *Sink) PacketsReceived() uint64 {
	return s.packets
}

// StartApplication binds the listening port.
func (s *Sink) StartApplication(ctx network.AppContext) error {
	s.ctx = ctx

	_, err := ctx.Bind(s.protocol, s.port)

	return err
}

// StopApplication logs the total.
func (s *Sink) StopApplication() error {
	s.ctx.Logger().Info("sink stopped",
		zap.Stringer("time", s.ctx.Now()),
		zap.Uint64("bytes", s.totalBytes))

	return nil
}

// OnPacketReceived counts a data segment and acknowledges it.
func (s *Sink) OnPacketReceived(pkt network.Packet) {
	if pkt.Flags&network.FlagData == 0 {
		return
	}

	s.totalBytes += uint64(pkt.PayloadSize())
	s.packets++

	if s.protocol != network.ProtocolTCP || s.ctx.Stopped() {
		return
	}

	ack := network.Packet{
		Protocol: network.ProtocolTCP,
		Src:      netip.AddrPortFrom(netip.Addr{}, s.port),
		Dst:      pkt.Src,
		Flags:    network.FlagAck,
		Seq:      pkt.Seq,
	}

	if _, err := s.ctx.Send(ack); err != nil {
		s.ctx.Logger().Warn("ack failed", zap.Error(err))
	}
}

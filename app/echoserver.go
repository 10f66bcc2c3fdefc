package app

import (
	"net/netip"

	"github.com/sarchlab/netsim/network"
	"go.uber.org/zap"
)

// An EchoServer sends every UDP packet it receives back to its sender.
type EchoServer struct {
	name string
	port uint16

	ctx      network.AppContext
	received uint64
	echoed   uint64
}

// NewEchoServer creates an EchoServer that listens on the port.
func NewEchoServer(name string, port uint16) *EchoServer {
	if port == 0 {
		panic("echo server requires a port")
	}

	return &EchoServer{
		name: name,
		port: port,
	}
}

// Name returns the name of the server.
func (s *EchoServer) Name() string {
	return s.name
}

// Port returns the listening port.
func (s *EchoServer) Port() uint16 {
	return s.port
}

// Received returns the number of packets received.
func (s *EchoServer) Received() uint64 {
	return s.received
}

// Echoed returns the number of packets sent back.
func (s *EchoServer) Echoed() uint64 {
	return s.echoed
}

// StartApplication binds the listening port.
func (s *EchoServer) StartApplication(ctx network.AppContext) error {
	s.ctx = ctx

	_, err := ctx.Bind(network.ProtocolUDP, s.port)

	return err
}

// StopApplication does nothing beyond what the context already does.
func (s *EchoServer) StopApplication() error {
	return nil
}

// OnPacketReceived echoes the packet unless the server has stopped.
func (s *EchoServer) OnPacketReceived(pkt network.Packet) {
	s.received++

	logger := s.ctx.Logger()
	logger.Info("server received",
		zap.Stringer("time", s.ctx.Now()),
		zap.Int("bytes", pkt.PayloadSize()),
		zap.Stringer("from", pkt.Src.Addr()),
		zap.Uint16("port", pkt.Src.Port()))

	if s.ctx.Stopped() {
		return
	}

	reply := network.Packet{
		Protocol: network.ProtocolUDP,
		Src:      netip.AddrPortFrom(netip.Addr{}, s.port),
		Dst:      pkt.Src,
		Flags:    network.FlagData,
		Seq:      pkt.Seq,
		Payload:  pkt.Payload,
	}

	if _, err := s.ctx.Send(reply); err != nil {
		logger.Warn("echo failed", zap.Error(err))
		return
	}

	s.echoed++

	logger.Info("server sent",
		zap.Stringer("time", s.ctx.Now()),
		zap.Int("bytes", pkt.PayloadSize()),
		zap.Stringer("to", pkt.Src.Addr()),
		zap.Uint16("port", pkt.Src.Port()))
}

package app

import (
	"net/netip"

	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
	"go.uber.org/zap"
)

// An EchoClient sends fixed-size UDP packets to an echo server at a fixed
// interval and counts the echoes.
type EchoClient struct {
	name       string
	remote     netip.AddrPort
	maxPackets uint64
	interval   sim.VTime
	size       int
	fill       []byte

	ctx      network.AppContext
	sendEvt  sim.EventHandle
	sent     uint64
	received uint64
}

// EchoClientBuilder can build echo clients.
type EchoClientBuilder struct {
	remote     netip.AddrPort
	maxPackets uint64
	interval   sim.VTime
	size       int
	fill       []byte
}

// MakeEchoClientBuilder creates an EchoClientBuilder that sends one 1024-byte
// packet.
func MakeEchoClientBuilder() EchoClientBuilder {
	return EchoClientBuilder{
		maxPackets: 1,
		interval:   sim.Second,
		size:       1024,
	}
}

// WithRemote sets the address and port of the echo server.
func (b EchoClientBuilder) WithRemote(remote netip.AddrPort) EchoClientBuilder {
	b.remote = remote
	return b
}

// WithMaxPackets sets how many packets to send. Zero means no limit.
func (b EchoClientBuilder) WithMaxPackets(n uint64) EchoClientBuilder {
	b.maxPackets = n
	return b
}

// WithInterval sets the time between two packets.
func (b EchoClientBuilder) WithInterval(d sim.VTime) EchoClientBuilder {
	b.interval = d
	return b
}

// WithPacketSize sets the payload size of each packet.
func (b EchoClientBuilder) WithPacketSize(n int) EchoClientBuilder {
	b.size = n
	return b
}

// WithFill sets a pattern that is repeated to fill the payload.
func (b EchoClientBuilder) WithFill(pattern []byte) EchoClientBuilder {
	b.fill = pattern
	return b
}

// Build creates an EchoClient.
func (b EchoClientBuilder) Build(name string) *EchoClient {
	if !b.remote.IsValid() {
		panic("echo client requires a remote address")
	}

	if b.interval <= 0 {
		panic("echo client interval must be positive")
	}

	if b.size < 0 {
		panic("packet size must not be negative")
	}

	return &EchoClient{
		name:       name,
		remote:     b.remote,
		maxPackets: b.maxPackets,
		interval:   b.interval,
		size:       b.size,
		fill:       b.fill,
	}
}

// Name returns the name of the client.
func (c *EchoClient) Name() string {
	return c.name
}

// Sent returns the number of packets sent.
func (c *EchoClient) Sent() uint64 {
	return c.sent
}

// Received returns the number of echoes received.
func (c *EchoClient) Received() uint64 {
	return c.received
}

// StartApplication binds a local port and sends the first packet right away.
func (c *EchoClient) StartApplication(ctx network.AppContext) error {
	c.ctx = ctx

	if _, err := ctx.Bind(network.ProtocolUDP, 0); err != nil {
		return err
	}

	return c.scheduleSend(0)
}

// StopApplication cancels the next send.
func (c *EchoClient) StopApplication() error {
	c.ctx.Cancel(c.sendEvt)
	return nil
}

func (c *EchoClient) scheduleSend(delay sim.VTime) error {
	var err error

	c.sendEvt, err = c.ctx.Schedule(delay, c.send)

	return err
}

func (c *EchoClient) send() error {
	pkt := network.Packet{
		Protocol: network.ProtocolUDP,
		Dst:      c.remote,
		Flags:    network.FlagData,
		Seq:      uint32(c.sent),
		Payload:  c.payload(),
	}

	if _, err := c.ctx.Send(pkt); err != nil {
		return err
	}

	c.sent++

	c.ctx.Logger().Info("client sent",
		zap.Stringer("time", c.ctx.Now()),
		zap.Int("bytes", c.size),
		zap.Stringer("to", c.remote.Addr()),
		zap.Uint16("port", c.remote.Port()))

	if c.maxPackets == 0 || c.sent < c.maxPackets {
		return c.scheduleSend(c.interval)
	}

	return nil
}

func (c *EchoClient) payload() []byte {
	p := make([]byte, c.size)

	if len(c.fill) > 0 {
		for i := 0; i < len(p); i += len(c.fill) {
			copy(p[i:], c.fill)
		}
	}

	return p
}

// OnPacketReceived counts an echo.
func (c *EchoClient) OnPacketReceived(pkt network.Packet) {
	c.received++

	c.ctx.Logger().Info("client received",
		zap.Stringer("time", c.ctx.Now()),
		zap.Int("bytes", pkt.PayloadSize()),
		zap.Stringer("from", pkt.Src.Addr()),
		zap.Uint16("port", pkt.Src.Port()))
}

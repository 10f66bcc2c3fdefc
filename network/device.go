package network

import (
	"fmt"
	"net/netip"

	"github.com/sarchlab/netsim/sim"
)

// DeviceID identifies a device within a registry.
type DeviceID uint32

// HookPosPacketTx marks a packet leaving a device.
var HookPosPacketTx = &sim.HookPos{Name: "PacketTx"}

// HookPosPacketRx marks a packet accepted by a device.
var HookPosPacketRx = &sim.HookPos{Name: "PacketRx"}

// HookPosPacketDrop marks a packet lost on its way to a device.
var HookPosPacketDrop = &sim.HookPos{Name: "PacketDrop"}

// DeviceStats counts the traffic of a device.
type DeviceStats struct {
	TxPackets       uint64
	TxBytes         uint64
	RxPackets       uint64
	RxBytes         uint64
	RxPayloadBytes  uint64
	FilteredPackets uint64
	DroppedPackets  uint64
}

// DeviceConfig describes a device to attach to a node.
type DeviceConfig struct {
	// Channel, if set, is the channel the device is attached to.
	Channel Channel

	// Base and Mask select the subnet the device address is allocated from.
	// A device without a Base gets no address.
	Base netip.Addr
	Mask netip.Addr

	// DataRate is the transmitter rate in bits per second. Zero means
	// transmissions take no time.
	DataRate uint64
}

// A Device is a network interface of a node.
type Device struct {
	sim.HookableBase

	id       DeviceID
	node     *Node
	channel  Channel
	addr     netip.Addr
	prefix   netip.Prefix
	dataRate uint64

	busyUntil sim.VTime
	stats     DeviceStats
}

// ID returns the ID of the device.
func (d *Device) ID() DeviceID {
	return d.id
}

// Name returns a printable name such as "node1/dev0".
func (d *Device) Name() string {
	return fmt.Sprintf("node%d/dev%d", d.node.id, d.id)
}

// Node returns the node that owns the device.
func (d *Device) Node() *Node {
	return d.node
}

// Channel returns the channel the device is attached to, or nil.
func (d *Device) Channel() Channel {
	return d.channel
}

// Address returns the IPv4 address of the device.
func (d *Device) Address() netip.Addr {
	return d.addr
}

// Prefix returns the subnet of the device.
func (d *Device) Prefix() netip.Prefix {
	return d.prefix
}

// DataRate returns the transmitter rate in bits per second.
func (d *Device) DataRate() uint64 {
	return d.dataRate
}

// Stats returns a snapshot of the traffic counters.
func (d *Device) Stats() DeviceStats {
	return d.stats
}

// TxTime returns how long the transmitter is busy sending the packet.
func (d *Device) TxTime(pkt Packet) sim.VTime {
	if d.dataRate == 0 {
		return 0
	}

	bits := uint64(pkt.WireSize()) * 8

	return sim.VTime(bits * uint64(sim.Second) / d.dataRate)
}

// ReserveTransmitter books the transmitter for the packet and returns the
// delay from now until its last bit is sent. A device sends one frame at a
// time, so a frame queued behind another waits for it to finish.
func (d *Device) ReserveTransmitter(pkt Packet) sim.VTime {
	now := d.node.registry.engine.Now()

	start := now
	if d.busyUntil > start {
		start = d.busyUntil
	}

	d.busyUntil = start + d.TxTime(pkt)

	return d.busyUntil - now
}

// Send puts a packet on the channel.
func (d *Device) Send(pkt Packet) (DeliveryOutcome, error) {
	if d.channel == nil {
		return DeliveryOutcome{}, fmt.Errorf("%w: %s", ErrNoChannel, d.Name())
	}

	d.stats.TxPackets++
	d.stats.TxBytes += uint64(pkt.WireSize())

	d.invokePacketHook(HookPosPacketTx, pkt, nil)

	return d.channel.Transmit(d, pkt), nil
}

// Accepts tells if the device takes a packet addressed to dst.
func (d *Device) Accepts(dst netip.Addr) bool {
	if !d.addr.IsValid() {
		return false
	}

	if dst == d.addr || dst == limitedBroadcast {
		return true
	}

	return d.prefix.Bits() < 31 && dst == broadcastOf(d.prefix)
}

// Receive handles a packet that arrived from the channel. Packets not
// addressed to the device are filtered out.
func (d *Device) Receive(pkt Packet) {
	if !d.Accepts(pkt.Dst.Addr()) {
		d.stats.FilteredPackets++
		return
	}

	d.stats.RxPackets++
	d.stats.RxBytes += uint64(pkt.WireSize())
	d.stats.RxPayloadBytes += uint64(pkt.PayloadSize())

	d.invokePacketHook(HookPosPacketRx, pkt, nil)

	d.node.deliver(pkt)
}

// Drop records a packet lost on its way to the device. Only packets addressed
// to the device are counted.
func (d *Device) Drop(pkt Packet, reason string) {
	if !d.Accepts(pkt.Dst.Addr()) {
		return
	}

	d.stats.DroppedPackets++

	d.invokePacketHook(HookPosPacketDrop, pkt, reason)
}

func (d *Device) invokePacketHook(pos *sim.HookPos, pkt Packet, detail any) {
	if d.NumHooks() == 0 {
		return
	}

	d.InvokeHook(sim.HookCtx{
		Domain: d,
		Pos:    pos,
		Item:   pkt,
		Detail: detail,
	})
}

var limitedBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

func broadcastOf(p netip.Prefix) netip.Addr {
	a := p.Masked().Addr().As4()
	hostBits := 32 - p.Bits()

	for i := 3; i >= 0 && hostBits > 0; i-- {
		n := min(hostBits, 8)
		a[i] |= byte(1<<uint(n) - 1)
		hostBits -= n
	}

	return netip.AddrFrom4(a)
}

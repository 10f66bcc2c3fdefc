package network

import (
	"fmt"
	"net/netip"
)

// NodeID identifies a node within a registry.
type NodeID uint32

// NodeStats counts the packets a node could not hand to an application.
type NodeStats struct {
	NoPortDrops uint64
}

type portKey struct {
	proto Protocol
	port  uint16
}

// A Node is a simulated host. It owns devices and applications.
type Node struct {
	id       NodeID
	registry *Registry

	devices []*Device
	apps    []*AppHandle

	ports         map[portKey]*AppHandle
	nextEphemeral uint16
	stats         NodeStats
}

const (
	ephemeralPortFirst = 49152
	ephemeralPortLast  = 65535
)

func newNode(id NodeID, r *Registry) *Node {
	return &Node{
		id:            id,
		registry:      r,
		ports:         make(map[portKey]*AppHandle),
		nextEphemeral: ephemeralPortFirst,
	}
}

// ID returns the ID of the node.
func (n *Node) ID() NodeID {
	return n.id
}

// Name returns a printable name such as "node3".
func (n *Node) Name() string {
	return fmt.Sprintf("node%d", n.id)
}

// Devices returns the devices of the node in attach order.
func (n *Node) Devices() []*Device {
	return append([]*Device(nil), n.devices...)
}

// Applications returns the applications of the node in attach order.
func (n *Node) Applications() []*AppHandle {
	return append([]*AppHandle(nil), n.apps...)
}

// Stats returns a snapshot of the node counters.
func (n *Node) Stats() NodeStats {
	return n.stats
}

// Address returns the address of the first device that has one.
func (n *Node) Address() netip.Addr {
	for _, d := range n.devices {
		if d.addr.IsValid() {
			return d.addr
		}
	}

	return netip.Addr{}
}

// Route selects the device to send a packet to dst. The device whose subnet
// contains dst wins. Otherwise, the first device attached to a channel is
// used.
func (n *Node) Route(dst netip.Addr) (*Device, error) {
	var fallback *Device

	for _, d := range n.devices {
		if d.channel == nil {
			continue
		}

		if d.prefix.IsValid() && d.prefix.Contains(dst) {
			return d, nil
		}

		if fallback == nil {
			fallback = d
		}
	}

	if fallback == nil {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoRoute, n.Name(), dst)
	}

	return fallback, nil
}

func (n *Node) bind(proto Protocol, port uint16, h *AppHandle) (uint16, error) {
	if port == 0 {
		return n.bindEphemeral(proto, h)
	}

	key := portKey{proto: proto, port: port}
	if owner, found := n.ports[key]; found {
		if owner == h {
			return port, nil
		}

		return 0, fmt.Errorf("%w: %s %s port %d",
			ErrPortInUse, n.Name(), proto, port)
	}

	n.ports[key] = h
	h.ports = append(h.ports, key)

	return port, nil
}

func (n *Node) bindEphemeral(proto Protocol, h *AppHandle) (uint16, error) {
	for i := 0; i <= ephemeralPortLast-ephemeralPortFirst; i++ {
		port := n.nextEphemeral

		n.nextEphemeral++
		if n.nextEphemeral == 0 {
			n.nextEphemeral = ephemeralPortFirst
		}

		key := portKey{proto: proto, port: port}
		if _, found := n.ports[key]; !found {
			n.ports[key] = h
			h.ports = append(h.ports, key)

			return port, nil
		}
	}

	return 0, fmt.Errorf("%w: %s has no free ephemeral %s port",
		ErrPortInUse, n.Name(), proto)
}

func (n *Node) deliver(pkt Packet) {
	h, found := n.ports[portKey{proto: pkt.Protocol, port: pkt.Dst.Port()}]
	if !found {
		n.stats.NoPortDrops++
		return
	}

	h.receive(pkt)
}

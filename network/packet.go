package network

import (
	"fmt"
	"net/netip"
)

// Protocol is the transport protocol of a packet.
type Protocol uint8

// Supported transport protocols.
const (
	ProtocolUDP Protocol = 17
	ProtocolTCP Protocol = 6
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "UDP"
	case ProtocolTCP:
		return "TCP"
	default:
		return fmt.Sprintf("Protocol(%d)", uint8(p))
	}
}

// Header sizes, in bytes.
const (
	IPv4HeaderSize = 20
	UDPHeaderSize  = 8
	TCPHeaderSize  = 20
)

// Flags mark the role of a segment.
type Flags uint8

// Segment flags.
const (
	FlagData Flags = 1 << iota
	FlagAck
)

func (f Flags) String() string {
	switch f {
	case 0:
		return "-"
	case FlagData:
		return "DATA"
	case FlagAck:
		return "ACK"
	case FlagData | FlagAck:
		return "DATA|ACK"
	default:
		return fmt.Sprintf("Flags(%d)", uint8(f))
	}
}

// A Packet is the unit carried by channels. The payload is shared by every
// receiver and must not be modified once sent.
type Packet struct {
	ID       uint64
	Protocol Protocol
	Src      netip.AddrPort
	Dst      netip.AddrPort
	Flags    Flags
	Seq      uint32
	Payload  []byte
}

// PayloadSize returns the number of payload bytes.
func (p Packet) PayloadSize() int {
	return len(p.Payload)
}

// HeaderSize returns the size of the IPv4 and transport headers.
func (p Packet) HeaderSize() int {
	switch p.Protocol {
	case ProtocolTCP:
		return IPv4HeaderSize + TCPHeaderSize
	default:
		return IPv4HeaderSize + UDPHeaderSize
	}
}

// WireSize returns the number of bytes the packet occupies on a link.
func (p Packet) WireSize() int {
	return p.HeaderSize() + len(p.Payload)
}

func (p Packet) String() string {
	return fmt.Sprintf("%s %s > %s %s seq=%d len=%d",
		p.Protocol, p.Src, p.Dst, p.Flags, p.Seq, len(p.Payload))
}

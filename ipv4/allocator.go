// Package ipv4 assigns IPv4 addresses to devices out of configured subnets.
package ipv4

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"net/netip"
)

// ErrInvalidSubnet is returned when a base address and mask do not describe a
// subnet.
var ErrInvalidSubnet = errors.New("invalid subnet")

// ErrAddressSpaceExhausted is returned when every usable host address of a
// subnet has been handed out.
var ErrAddressSpaceExhausted = errors.New("address space exhausted")

// ParseMask parses a dotted-decimal subnet mask such as 255.255.255.0.
func ParseMask(s string) (netip.Addr, error) {
	mask, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", ErrInvalidSubnet, err)
	}

	if _, err := MaskBits(mask); err != nil {
		return netip.Addr{}, err
	}

	return mask, nil
}

// MaskBits returns the prefix length of a contiguous IPv4 mask.
func MaskBits(mask netip.Addr) (int, error) {
	if !mask.Is4() {
		return 0, fmt.Errorf("%w: mask %s is not IPv4", ErrInvalidSubnet, mask)
	}

	m := toUint32(mask)
	ones := bits.LeadingZeros32(^m)

	if bits.TrailingZeros32(m) != 32-ones {
		return 0, fmt.Errorf("%w: mask %s is not contiguous", ErrInvalidSubnet, mask)
	}

	return ones, nil
}

// UsableHosts returns the number of host addresses a prefix length provides.
// The network and broadcast addresses are excluded, except for /31 and /32
// subnets, which have no room for them.
func UsableHosts(prefixLen int) uint64 {
	hostBits := 32 - prefixLen

	switch {
	case hostBits == 0:
		return 1
	case hostBits == 1:
		return 2
	default:
		return 1<<uint(hostBits) - 2
	}
}

type subnet struct {
	base      uint32
	prefixLen int
	assigned  uint64
}

func (s *subnet) firstHost() uint32 {
	if s.prefixLen >= 31 {
		return s.base
	}

	return s.base + 1
}

// A SubnetAllocator hands out host addresses in ascending order. Every
// distinct base and mask pair keeps its own counter.
type SubnetAllocator struct {
	subnets map[netip.Prefix]*subnet
}

// NewSubnetAllocator creates an allocator with no address assigned.
func NewSubnetAllocator() *SubnetAllocator {
	return &SubnetAllocator{
		subnets: make(map[netip.Prefix]*subnet),
	}
}

// AssignNext returns the next unused host address of the subnet.
func (a *SubnetAllocator) AssignNext(base, mask netip.Addr) (netip.Addr, error) {
	s, err := a.subnetOf(base, mask)
	if err != nil {
		return netip.Addr{}, err
	}

	if s.assigned >= UsableHosts(s.prefixLen) {
		return netip.Addr{}, fmt.Errorf(
			"%w: %s/%d has %d usable hosts",
			ErrAddressSpaceExhausted, base, s.prefixLen,
			UsableHosts(s.prefixLen))
	}

	addr := fromUint32(s.firstHost() + uint32(s.assigned))
	s.assigned++

	return addr, nil
}

// Assigned returns how many addresses of the subnet have been handed out.
func (a *SubnetAllocator) Assigned(base, mask netip.Addr) uint64 {
	s, err := a.subnetOf(base, mask)
	if err != nil {
		return 0
	}

	return s.assigned
}

func (a *SubnetAllocator) subnetOf(base, mask netip.Addr) (*subnet, error) {
	if !base.Is4() {
		return nil, fmt.Errorf("%w: base %s is not IPv4", ErrInvalidSubnet, base)
	}

	prefixLen, err := MaskBits(mask)
	if err != nil {
		return nil, err
	}

	prefix := netip.PrefixFrom(base, prefixLen)
	if prefix.Masked().Addr() != base {
		return nil, fmt.Errorf(
			"%w: base %s has host bits set for mask %s",
			ErrInvalidSubnet, base, mask)
	}

	s, found := a.subnets[prefix]
	if !found {
		s = &subnet{base: toUint32(base), prefixLen: prefixLen}
		a.subnets[prefix] = s
	}

	return s, nil
}

func toUint32(a netip.Addr) uint32 {
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func fromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)

	return netip.AddrFrom4(b)
}

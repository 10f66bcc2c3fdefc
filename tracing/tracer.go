// Package tracing collects packet-level traces from network devices.
package tracing

import (
	"fmt"

	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
)

// Kind tells what happened to a packet at a device.
type Kind string

// Kinds of trace records.
const (
	KindTx   Kind = "tx"
	KindRx   Kind = "rx"
	KindDrop Kind = "drop"
)

// A Record describes one packet event observed at a device.
type Record struct {
	Time        sim.VTime
	Kind        Kind
	Node        network.NodeID
	Device      network.DeviceID
	DeviceIndex int
	Packet      network.Packet
	Detail      string
}

func (r Record) String() string {
	s := fmt.Sprintf("%s %s node%d/dev%d id=%d %s",
		r.Time, r.Kind, r.Node, r.DeviceIndex, r.Packet.ID, r.Packet)

	if r.Detail != "" {
		s += " (" + r.Detail + ")"
	}

	return s
}

// A Tracer receives trace records.
type Tracer interface {
	Trace(rec Record)
}

// Filter selects the records a tracer is interested in.
type Filter func(rec Record) bool

// KindIs returns a filter that accepts records of the given kinds.
func KindIs(kinds ...Kind) Filter {
	return func(rec Record) bool {
		for _, k := range kinds {
			if rec.Kind == k {
				return true
			}
		}

		return false
	}
}

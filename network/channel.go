package network

import "fmt"

// A Channel carries packets between the devices attached to it.
type Channel interface {
	// Name identifies the channel in traces.
	Name() string

	// Attach connects a device to the channel.
	Attach(dev *Device) error

	// Detach disconnects a device. Detaching a device that is not attached
	// does nothing.
	Detach(dev *Device)

	// Transmit sends a packet from the source device. Every reachable device
	// gets a future delivery event unless the loss model drops the packet.
	// Transmit never blocks and never waits for the receivers.
	Transmit(src *Device, pkt Packet) DeliveryOutcome
}

// DeliveryStatus summarizes a DeliveryOutcome.
type DeliveryStatus int

// Delivery statuses.
const (
	NoReceiver DeliveryStatus = iota
	Delivered
	Dropped
	PartiallyDropped
)

func (s DeliveryStatus) String() string {
	switch s {
	case NoReceiver:
		return "NoReceiver"
	case Delivered:
		return "Delivered"
	case Dropped:
		return "Dropped"
	case PartiallyDropped:
		return "PartiallyDropped"
	default:
		return fmt.Sprintf("DeliveryStatus(%d)", int(s))
	}
}

// DeliveryOutcome counts what a transmission did to each receiver.
type DeliveryOutcome struct {
	Scheduled int
	Dropped   int
}

// Status summarizes the outcome.
func (o DeliveryOutcome) Status() DeliveryStatus {
	switch {
	case o.Scheduled == 0 && o.Dropped == 0:
		return NoReceiver
	case o.Dropped == 0:
		return Delivered
	case o.Scheduled == 0:
		return Dropped
	default:
		return PartiallyDropped
	}
}

// Package channel provides the link models that carry packets between
// devices.
package channel

import (
	"errors"
	"fmt"

	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
)

// ErrAlreadyAttached is returned when attaching a device twice.
var ErrAlreadyAttached = errors.New("device already attached")

// ErrChannelFull is returned when attaching a third device to a
// point-to-point channel.
var ErrChannelFull = errors.New("channel is full")

// Stats counts the activity of a channel.
type Stats struct {
	Transmissions uint64
	Deliveries    uint64
	Drops         uint64
}

// A WirelessChannel is a shared medium. Every transmission reaches every
// other attached device, each after its own propagation delay and each
// subject to the loss model.
type WirelessChannel struct {
	name    string
	engine  sim.EventScheduler
	delay   DelayModel
	loss    LossModel
	devices []*network.Device
	stats   Stats
}

// Name returns the name of the channel.
func (c *WirelessChannel) Name() string {
	return c.name
}

// Devices returns the attached devices in attach order.
func (c *WirelessChannel) Devices() []*network.Device {
	return append([]*network.Device(nil), c.devices...)
}

// Stats returns a snapshot of the channel counters.
func (c *WirelessChannel) Stats() Stats {
	return c.stats
}

// Attach adds a device to the medium.
func (c *WirelessChannel) Attach(dev *network.Device) error {
	for _, d := range c.devices {
		if d == dev {
			return fmt.Errorf("%w: %s on %s", ErrAlreadyAttached, dev.Name(), c.name)
		}
	}

	c.devices = append(c.devices, dev)

	return nil
}

// Detach removes a device from the medium. Deliveries already scheduled to
// the device still happen.
func (c *WirelessChannel) Detach(dev *network.Device) {
	for i, d := range c.devices {
		if d == dev {
			c.devices = append(c.devices[:i], c.devices[i+1:]...)
			return
		}
	}
}

// Transmit schedules the reception of the packet on every other device. The
// delay of each reception is the sender's transmission time plus the
// propagation delay to the receiver.
func (c *WirelessChannel) Transmit(
	src *network.Device,
	pkt network.Packet,
) network.DeliveryOutcome {
	c.stats.Transmissions++

	txDelay := src.ReserveTransmitter(pkt)

	var outcome network.DeliveryOutcome

	for _, dst := range c.devices {
		if dst == src {
			continue
		}

		if c.deliver(src, dst, pkt, txDelay) {
			outcome.Scheduled++
		} else {
			outcome.Dropped++
		}
	}

	return outcome
}

func (c *WirelessChannel) deliver(
	src, dst *network.Device,
	pkt network.Packet,
	txDelay sim.VTime,
) bool {
	if dropped, reason := c.loss.Drop(src, dst, pkt); dropped {
		c.stats.Drops++
		dst.Drop(pkt, reason)

		return false
	}

	delay := txDelay + c.delay.Delay(src, dst)

	return scheduleReceive(c.engine, c.name, &c.stats, dst, pkt, delay)
}

func scheduleReceive(
	engine sim.EventScheduler,
	component string,
	stats *Stats,
	dst *network.Device,
	pkt network.Packet,
	delay sim.VTime,
) bool {
	_, err := engine.Schedule(delay, component, func() error {
		dst.Receive(pkt)
		return nil
	})
	if err != nil {
		stats.Drops++
		dst.Drop(pkt, err.Error())

		return false
	}

	stats.Deliveries++

	return true
}

package channel

import (
	"fmt"

	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
)

// A PointToPointChannel links exactly two devices.
type PointToPointChannel struct {
	name   string
	engine sim.EventScheduler
	delay  sim.VTime
	loss   LossModel
	ends   [2]*network.Device
	stats  Stats
}

// Name returns the name of the channel.
func (c *PointToPointChannel) Name() string {
	return c.name
}

// Stats returns a snapshot of the channel counters.
func (c *PointToPointChannel) Stats() Stats {
	return c.stats
}

// Attach connects one end of the link.
func (c *PointToPointChannel) Attach(dev *network.Device) error {
	if c.ends[0] == dev || c.ends[1] == dev {
		return fmt.Errorf("%w: %s on %s", ErrAlreadyAttached, dev.Name(), c.name)
	}

	for i, d := range c.ends {
		if d == nil {
			c.ends[i] = dev
			return nil
		}
	}

	return fmt.Errorf("%w: %s already links two devices", ErrChannelFull, c.name)
}

// Detach disconnects one end of the link.
func (c *PointToPointChannel) Detach(dev *network.Device) {
	for i, d := range c.ends {
		if d == dev {
			c.ends[i] = nil
		}
	}
}

// Transmit sends the packet to the other end of the link.
func (c *PointToPointChannel) Transmit(
	src *network.Device,
	pkt network.Packet,
) network.DeliveryOutcome {
	c.stats.Transmissions++

	txDelay := src.ReserveTransmitter(pkt)

	var outcome network.DeliveryOutcome

	for _, dst := range c.ends {
		if dst == nil || dst == src {
			continue
		}

		if dropped, reason := c.loss.Drop(src, dst, pkt); dropped {
			c.stats.Drops++
			dst.Drop(pkt, reason)
			outcome.Dropped++

			continue
		}

		if scheduleReceive(c.engine, c.name, &c.stats, dst, pkt, txDelay+c.delay) {
			outcome.Scheduled++
		} else {
			outcome.Dropped++
		}
	}

	return outcome
}

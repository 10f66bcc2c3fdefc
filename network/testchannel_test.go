package network

import "github.com/sarchlab/netsim/sim"

// busChannel delivers every packet to every other attached device after a
// fixed delay plus the sender's transmitter delay.
type busChannel struct {
	engine  sim.EventScheduler
	delay   sim.VTime
	devices []*Device
}

func (c *busChannel) Name() string {
	return "bus"
}

func (c *busChannel) Attach(dev *Device) error {
	c.devices = append(c.devices, dev)
	return nil
}

func (c *busChannel) Detach(dev *Device) {
	for i, d := range c.devices {
		if d == dev {
			c.devices = append(c.devices[:i], c.devices[i+1:]...)
			return
		}
	}
}

func (c *busChannel) Transmit(src *Device, pkt Packet) DeliveryOutcome {
	var outcome DeliveryOutcome

	delay := src.ReserveTransmitter(pkt) + c.delay

	for _, d := range c.devices {
		if d == src {
			continue
		}

		dst := d
		_, err := c.engine.Schedule(delay, c.Name(), func() error {
			dst.Receive(pkt)
			return nil
		})
		if err != nil {
			outcome.Dropped++
			continue
		}

		outcome.Scheduled++
	}

	return outcome
}

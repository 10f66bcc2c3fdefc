package channel

import "github.com/sarchlab/netsim/sim"

// WirelessBuilder can build wireless channels.
type WirelessBuilder struct {
	engine sim.EventScheduler
	delay  DelayModel
	loss   LossModel
}

// MakeWirelessBuilder creates a WirelessBuilder with no propagation delay and
// no loss.
func MakeWirelessBuilder() WirelessBuilder {
	return WirelessBuilder{
		delay: FixedDelay{},
		loss:  NoLoss{},
	}
}

// WithEngine sets the engine that schedules receptions.
func (b WirelessBuilder) WithEngine(e sim.EventScheduler) WirelessBuilder {
	b.engine = e
	return b
}

// WithDelayModel sets the propagation delay model.
func (b WirelessBuilder) WithDelayModel(m DelayModel) WirelessBuilder {
	b.delay = m
	return b
}

// WithLossModel sets the loss model.
func (b WirelessBuilder) WithLossModel(m LossModel) WirelessBuilder {
	b.loss = m
	return b
}

// Build creates a wireless channel.
func (b WirelessBuilder) Build(name string) *WirelessChannel {
	if b.engine == nil {
		panic("wireless channel requires an engine")
	}

	return &WirelessChannel{
		name:   name,
		engine: b.engine,
		delay:  b.delay,
		loss:   b.loss,
	}
}

// PointToPointBuilder can build point-to-point channels.
type PointToPointBuilder struct {
	engine sim.EventScheduler
	delay  sim.VTime
	loss   LossModel
}

// MakePointToPointBuilder creates a PointToPointBuilder with no delay and no
// loss.
func MakePointToPointBuilder() PointToPointBuilder {
	return PointToPointBuilder{
		loss: NoLoss{},
	}
}

// WithEngine sets the engine that schedules receptions.
func (b PointToPointBuilder) WithEngine(e sim.EventScheduler) PointToPointBuilder {
	b.engine = e
	return b
}

// WithDelay sets the propagation delay of the link.
func (b PointToPointBuilder) WithDelay(d sim.VTime) PointToPointBuilder {
	b.delay = d
	return b
}

// WithLossModel sets the loss model.
func (b PointToPointBuilder) WithLossModel(m LossModel) PointToPointBuilder {
	b.loss = m
	return b
}

// Build creates a point-to-point channel.
func (b PointToPointBuilder) Build(name string) *PointToPointChannel {
	if b.engine == nil {
		panic("point-to-point channel requires an engine")
	}

	if b.delay < 0 {
		panic("delay must not be negative")
	}

	return &PointToPointChannel{
		name:   name,
		engine: b.engine,
		delay:  b.delay,
		loss:   b.loss,
	}
}

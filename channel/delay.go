package channel

import (
	"fmt"
	"math"

	"github.com/sarchlab/netsim/mobility"
	"github.com/sarchlab/netsim/network"
	"github.com/sarchlab/netsim/sim"
)

// SpeedOfLight is the propagation speed of radio waves, in meters per second.
const SpeedOfLight = 299_792_458.0

// A DelayModel computes how long a signal takes to travel between two
// devices.
type DelayModel interface {
	Delay(src, dst *network.Device) sim.VTime
}

// A Positioner tells where a node is.
type Positioner interface {
	PositionOf(node network.NodeID) (mobility.Vector, error)
}

// ConstantSpeedDelay derives the delay from the distance between the nodes
// of the two devices.
type ConstantSpeedDelay struct {
	Positions Positioner

	// Speed in meters per second. Zero means the speed of light.
	Speed float64
}

// Delay returns distance over speed. Both nodes must have a position.
func (m ConstantSpeedDelay) Delay(src, dst *network.Device) sim.VTime {
	a := m.mustPosition(src)
	b := m.mustPosition(dst)

	speed := m.Speed
	if speed == 0 {
		speed = SpeedOfLight
	}

	seconds := mobility.Distance(a, b) / speed

	return sim.VTime(math.Round(seconds * float64(sim.Second)))
}

func (m ConstantSpeedDelay) mustPosition(d *network.Device) mobility.Vector {
	pos, err := m.Positions.PositionOf(d.Node().ID())
	if err != nil {
		panic(fmt.Errorf("propagation delay of %s: %w", d.Name(), err))
	}

	return pos
}

// FixedDelay applies the same delay to every pair of devices.
type FixedDelay struct {
	Value sim.VTime
}

// Delay returns the fixed delay.
func (m FixedDelay) Delay(_, _ *network.Device) sim.VTime {
	return m.Value
}

package channel

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/netsim/network"
)

// DefaultSensitivityDbm is the weakest signal a receiver decodes.
const DefaultSensitivityDbm = -101.0

// A LossModel decides whether a packet reaches a receiver. When it does not,
// the reason is reported to traces.
type LossModel interface {
	Drop(src, dst *network.Device, pkt network.Packet) (bool, string)
}

// NoLoss never drops.
type NoLoss struct{}

// Drop always returns false.
func (NoLoss) Drop(_, _ *network.Device, _ network.Packet) (bool, string) {
	return false, ""
}

// FixedRssLoss receives every signal at the same strength, regardless of
// distance. The packet is lost if that strength is below the receiver
// sensitivity.
type FixedRssLoss struct {
	RssDbm float64

	// SensitivityDbm of zero means DefaultSensitivityDbm.
	SensitivityDbm float64
}

// Drop compares the fixed RSS with the sensitivity.
func (m FixedRssLoss) Drop(_, _ *network.Device, _ network.Packet) (bool, string) {
	sensitivity := m.SensitivityDbm
	if sensitivity == 0 {
		sensitivity = DefaultSensitivityDbm
	}

	if m.RssDbm < sensitivity {
		return true, fmt.Sprintf("rss %.1f dBm below sensitivity %.1f dBm",
			m.RssDbm, sensitivity)
	}

	return false, ""
}

// RandomLoss drops each packet independently with a fixed probability.
type RandomLoss struct {
	Rate float64
	Rand *rand.Rand
}

// Drop draws from the random source.
func (m RandomLoss) Drop(_, _ *network.Device, _ network.Packet) (bool, string) {
	if m.Rate <= 0 {
		return false, ""
	}

	if m.Rand.Float64() < m.Rate {
		return true, "random loss"
	}

	return false, ""
}

// ChainLoss drops a packet if any of its models does. Models are consulted in
// order and the first drop wins.
type ChainLoss []LossModel

// Drop consults the models in order.
func (c ChainLoss) Drop(
	src, dst *network.Device,
	pkt network.Packet,
) (bool, string) {
	for _, m := range c {
		if dropped, reason := m.Drop(src, dst, pkt); dropped {
			return true, reason
		}
	}

	return false, ""
}

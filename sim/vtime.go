package sim

import (
	"fmt"
	"math"
	"time"
)

// VTime is a point in (or a span of) simulated time, counted in nanoseconds.
//
// The engine never stores a negative VTime. The type is signed so that a
// negative delay can be detected and rejected instead of wrapping around.
type VTime int64

// Common VTime units.
const (
	Nanosecond  VTime = 1
	Microsecond       = 1000 * Nanosecond
	Millisecond       = 1000 * Microsecond
	Second            = 1000 * Millisecond
)

// MaxVTime is the largest representable virtual time.
const MaxVTime VTime = math.MaxInt64

// Seconds converts a floating point number of seconds to VTime, rounding to
// the nearest nanosecond.
func Seconds(s float64) VTime {
	return VTime(math.Round(s * float64(Second)))
}

// InSec returns the time in seconds.
func (t VTime) InSec() float64 {
	return float64(t) / float64(Second)
}

// Duration converts the VTime into a time.Duration of the same length.
func (t VTime) Duration() time.Duration {
	return time.Duration(t)
}

// String formats the time in seconds with a sign and nanosecond digits, for
// example "+2.000000000s".
func (t VTime) String() string {
	sign := "+"
	if t < 0 {
		sign = "-"
		t = -t
	}

	return fmt.Sprintf("%s%d.%09ds", sign, t/Second, t%Second)
}

// addDelay returns t+d, or false if the sum overflows or d is negative.
func addDelay(t, d VTime) (VTime, bool) {
	if d < 0 {
		return 0, false
	}

	if t > MaxVTime-d {
		return 0, false
	}

	return t + d, true
}

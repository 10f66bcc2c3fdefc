package channel

import (
	"fmt"
	"sort"
)

// Data rates in bits per second for one spatial stream and the long guard
// interval. VHT modes use the 80 MHz channel of 802.11ac, HT modes a 20 MHz
// channel.
var phyModeRates = map[string]uint64{
	"DsssRate1Mbps":   1_000_000,
	"DsssRate2Mbps":   2_000_000,
	"DsssRate5_5Mbps": 5_500_000,
	"DsssRate11Mbps":  11_000_000,

	"OfdmRate6Mbps":  6_000_000,
	"OfdmRate9Mbps":  9_000_000,
	"OfdmRate12Mbps": 12_000_000,
	"OfdmRate18Mbps": 18_000_000,
	"OfdmRate24Mbps": 24_000_000,
	"OfdmRate36Mbps": 36_000_000,
	"OfdmRate48Mbps": 48_000_000,
	"OfdmRate54Mbps": 54_000_000,

	"HtMcs0": 6_500_000,
	"HtMcs1": 13_000_000,
	"HtMcs2": 19_500_000,
	"HtMcs3": 26_000_000,
	"HtMcs4": 39_000_000,
	"HtMcs5": 52_000_000,
	"HtMcs6": 58_500_000,
	"HtMcs7": 65_000_000,

	"VhtMcs0": 29_250_000,
	"VhtMcs1": 58_500_000,
	"VhtMcs2": 87_750_000,
	"VhtMcs3": 117_000_000,
	"VhtMcs4": 175_500_000,
	"VhtMcs5": 234_000_000,
	"VhtMcs6": 263_250_000,
	"VhtMcs7": 292_500_000,
	"VhtMcs8": 351_000_000,
	"VhtMcs9": 390_000_000,
}

// PhyModeRate returns the data rate of a WiFi PHY mode, such as VhtMcs1.
func PhyModeRate(mode string) (uint64, error) {
	rate, found := phyModeRates[mode]
	if !found {
		return 0, fmt.Errorf("unknown phy mode %q", mode)
	}

	return rate, nil
}

// PhyModes lists the known PHY modes in alphabetical order.
func PhyModes() []string {
	modes := make([]string, 0, len(phyModeRates))
	for m := range phyModeRates {
		modes = append(modes, m)
	}

	sort.Strings(modes)

	return modes
}

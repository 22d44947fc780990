package params

import (
	"fmt"
	"sort"
)

// BWPConfig holds the dependent configuration keys derived from a bandwidth
// selection: carrier bandwidth in resource blocks and the encoded initial
// BWP location-and-bandwidth value.
type BWPConfig struct {
	CarrierBandwidthPRB     int
	BWPLocationAndBandwidth int
}

// bandwidthTable maps (bandwidth label, subcarrier spacing kHz) to the
// dependent key values for Band 78. New bandwidths or numerologies are
// additive rows here, never inline branches.
var bandwidthTable = map[string]map[int]BWPConfig{
	"10MHz": {
		30: {CarrierBandwidthPRB: 24, BWPLocationAndBandwidth: 6325},
	},
	"20MHz": {
		30: {CarrierBandwidthPRB: 51, BWPLocationAndBandwidth: 13750},
	},
}

// scsKHzByCode is the fixed numerology translation table from the
// configuration file's subcarrier spacing enum code to kHz.
var scsKHzByCode = map[int]int{
	0: 15,
	1: 30,
	2: 60,
	3: 120,
}

// ssbPeriodMsByCode is the fixed SSB periodicity translation table from the
// configuration file's enum code to milliseconds.
var ssbPeriodMsByCode = map[int]int{
	0: 5,
	1: 10,
	2: 20,
	3: 40,
	4: 80,
	5: 160,
}

// mhzPerPRB maps subcarrier spacing in kHz to the per-resource-block channel
// width in MHz (12 subcarriers per PRB).
var mhzPerPRB = map[int]float64{
	15:  0.18,
	30:  0.36,
	60:  0.72,
	120: 1.44,
}

// AllowedBandwidths returns the supported bandwidth labels in sorted order.
func AllowedBandwidths() []string {
	labels := make([]string, 0, len(bandwidthTable))
	for label := range bandwidthTable {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// LookupBandwidth returns the dependent key values for a bandwidth choice at
// the given subcarrier spacing.
func LookupBandwidth(bandwidth string, scsKHz int) (BWPConfig, error) {
	byScs, ok := bandwidthTable[bandwidth]
	if !ok {
		return BWPConfig{}, fmt.Errorf("%w: bandwidth %q not in allowed set %v", ErrValidation, bandwidth, AllowedBandwidths())
	}
	cfg, ok := byScs[scsKHz]
	if !ok {
		return BWPConfig{}, fmt.Errorf("%w: bandwidth %q has no entry for %d kHz subcarrier spacing", ErrValidation, bandwidth, scsKHz)
	}
	return cfg, nil
}

// NominalBandwidth reverse-maps a carrier bandwidth in resource blocks at a
// subcarrier spacing back to its nominal channel bandwidth label.
func NominalBandwidth(prb, scsKHz int) (string, bool) {
	for _, label := range AllowedBandwidths() {
		if cfg, ok := bandwidthTable[label][scsKHz]; ok && cfg.CarrierBandwidthPRB == prb {
			return label, true
		}
	}
	return "", false
}

// SubcarrierSpacingKHz translates a subcarrier spacing enum code to kHz.
func SubcarrierSpacingKHz(code int) (int, bool) {
	khz, ok := scsKHzByCode[code]
	return khz, ok
}

// SSBPeriodicityMs translates an SSB periodicity enum code to milliseconds.
func SSBPeriodicityMs(code int) (int, bool) {
	ms, ok := ssbPeriodMsByCode[code]
	return ms, ok
}

// MHzPerPRB returns the per-PRB channel width in MHz for a subcarrier
// spacing in kHz.
func MHzPerPRB(scsKHz int) (float64, bool) {
	factor, ok := mhzPerPRB[scsKHz]
	return factor, ok
}

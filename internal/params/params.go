package params

import (
	"errors"
	"fmt"
)

// ErrValidation is the normalized code for a domain or range violation.
// Validation happens before any side effect occurs.
var ErrValidation = errors.New("VALIDATION")

// Family identifies one tunable parameter family.
type Family string

const (
	FamilyBandwidth     Family = "bandwidth"
	FamilyDownlinkMCS   Family = "dl_mcs"
	FamilyUplinkMCS     Family = "ul_mcs"
	FamilyTxAttenuation Family = "att_tx"
	FamilyRxAttenuation Family = "att_rx"
)

// MCS and attenuation value domains.
const (
	MCSMin         = 0
	MCSMax         = 28
	AttenuationMin = 0
	AttenuationMax = 30
)

// Change is one requested parameter change. Bandwidth carries a label from
// the enumerated set; all other families carry an integer value.
type Change struct {
	Family    Family `json:"family"`
	Bandwidth string `json:"bandwidth,omitempty"`
	Value     int    `json:"value,omitempty"`
}

// String renders the change for audit records and diagnostics.
func (c Change) String() string {
	if c.Family == FamilyBandwidth {
		return fmt.Sprintf("%s=%s", c.Family, c.Bandwidth)
	}
	return fmt.Sprintf("%s=%d", c.Family, c.Value)
}

// Validate checks a proposed change against its family's value domain.
// Pure and idempotent; safe to call concurrently.
func Validate(c Change) error {
	switch c.Family {
	case FamilyBandwidth:
		if _, ok := bandwidthTable[c.Bandwidth]; !ok {
			return fmt.Errorf("%w: bandwidth %q not in allowed set %v", ErrValidation, c.Bandwidth, AllowedBandwidths())
		}
		return nil
	case FamilyDownlinkMCS, FamilyUplinkMCS:
		if c.Value < MCSMin {
			return fmt.Errorf("%w: %s value %d below minimum %d", ErrValidation, c.Family, c.Value, MCSMin)
		}
		if c.Value > MCSMax {
			return fmt.Errorf("%w: %s value %d above maximum %d", ErrValidation, c.Family, c.Value, MCSMax)
		}
		return nil
	case FamilyTxAttenuation, FamilyRxAttenuation:
		if c.Value < AttenuationMin {
			return fmt.Errorf("%w: %s value %d below minimum %d dB", ErrValidation, c.Family, c.Value, AttenuationMin)
		}
		if c.Value > AttenuationMax {
			return fmt.Errorf("%w: %s value %d above maximum %d dB", ErrValidation, c.Family, c.Value, AttenuationMax)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown parameter family %q", ErrValidation, c.Family)
	}
}

// ValidateAll validates every change in order and returns the first failure.
func ValidateAll(changes []Change) error {
	for _, c := range changes {
		if err := Validate(c); err != nil {
			return err
		}
	}
	return nil
}

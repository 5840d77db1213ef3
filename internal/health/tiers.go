package health

import "fmt"

// TierStandard is the tier used when none is configured.
const TierStandard = "standard"

// Tiers maps a client tier to its thresholds.
type Tiers map[string]Thresholds

// DefaultTiers returns the standard tier plus a stricter "royal" tier.
func DefaultTiers() Tiers {
	royal := DefaultThresholds()
	royal.MaxHighSeverity = 1
	royal.MaxRecentErrors = 5
	return Tiers{
		TierStandard: DefaultThresholds(),
		"royal":      royal,
	}
}

// Resolve returns the thresholds for tier. An empty tier resolves to standard.
func (t Tiers) Resolve(tier string) (Thresholds, error) {
	if tier == "" {
		tier = TierStandard
	}
	th, ok := t[tier]
	if !ok {
		if tier == TierStandard {
			return DefaultThresholds(), nil
		}
		return Thresholds{}, fmt.Errorf("unknown health tier %q", tier)
	}
	return th.withDefaults(), nil
}

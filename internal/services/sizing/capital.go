package sizing

import (
	"math"

	"TradeGate/internal/domain/models"
)

// Size returns the base allocation: floor(capital/marginPerUnit) clamped to
// [minUnits, maxUnits]. Negative capital sizes to minUnits.
func Size(capital, marginPerUnit float64, minUnits, maxUnits int) (int, error) {
	if err := ValidateSizing(marginPerUnit, minUnits, maxUnits); err != nil {
		return 0, err
	}
	raw := math.Floor(capital / marginPerUnit)
	if raw < float64(minUnits) {
		return minUnits, nil
	}
	if raw > float64(maxUnits) {
		return maxUnits, nil
	}
	return int(raw), nil
}

// ValidateSizing rejects static parameters Size cannot work with.
func ValidateSizing(marginPerUnit float64, minUnits, maxUnits int) error {
	if marginPerUnit <= 0 || math.IsNaN(marginPerUnit) {
		return models.NewConfigurationError("margin_per_unit", "must be > 0, got %v", marginPerUnit)
	}
	if minUnits < 0 {
		return models.NewConfigurationError("min_units", "must be >= 0, got %d", minUnits)
	}
	if minUnits > maxUnits {
		return models.NewConfigurationError("min_units", "min_units %d > max_units %d", minUnits, maxUnits)
	}
	return nil
}

// ReducedUnits maps a base allocation to the reduced posture.
func ReducedUnits(baseUnits int, factor float64) int {
	if baseUnits <= 0 {
		return 0
	}
	n := int(math.Floor(float64(baseUnits) * factor))
	if n < 1 {
		n = 1
	}
	return n
}

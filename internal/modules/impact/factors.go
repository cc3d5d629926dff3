package impact

import (
	"math"

	"github.com/aristath/ecovest/internal/domain"
)

// BaselineDurationMonths is the project length at which the duration factor is 1.
const BaselineDurationMonths = 12

// DurationFactor scales impact linearly below the 12-month baseline and with a
// dampened square root above it. It is continuous at the baseline.
func DurationFactor(months int) float64 {
	ratio := float64(months) / BaselineDurationMonths
	if ratio < 1 {
		return ratio
	}
	return 1 + (math.Sqrt(ratio)-1)*0.5
}

// ScaleFactor is a concave, non-decreasing credit for project scale rank.
func ScaleFactor(scale int) float64 {
	return 0.3 + 0.7*math.Pow(float64(scale), 0.4)
}

const (
	rainfallWaterBoost = 1.25
	solarEnergyBoost   = 1.15
)

// highRainfallStates get a water boost regardless of category.
var highRainfallStates = map[string]bool{
	"Assam":             true,
	"Meghalaya":         true,
	"Arunachal Pradesh": true,
	"Kerala":            true,
	"Sikkim":            true,
	"Mizoram":           true,
	"Manipur":           true,
	"Nagaland":          true,
	"Tripura":           true,
	"Goa":               true,
}

// solarBeltStates get an energy boost for renewable energy projects.
var solarBeltStates = map[string]bool{
	"Rajasthan": true,
	"Gujarat":   true,
}

// applyLocationBoosts applies regional multipliers. location must already be
// resolved to a canonical state.
func applyLocationBoosts(est domain.ImpactEstimate, location, primary string) domain.ImpactEstimate {
	if highRainfallStates[location] {
		est.Water *= rainfallWaterBoost
	}
	if solarBeltStates[location] && primary == "Renewable Energy" {
		est.Energy *= solarEnergyBoost
	}
	return est
}

package domain

import "math"

// Metric names one component of an impact estimate.
type Metric string

const (
	MetricCarbon Metric = "carbon" // kg CO2 reduced
	MetricEnergy Metric = "energy" // kWh saved
	MetricWater  Metric = "water"  // liters conserved
)

// Metrics lists every impact metric in canonical order.
var Metrics = []Metric{MetricCarbon, MetricEnergy, MetricWater}

// ImpactEstimate is the (carbon, energy, water) triple attributed to an amount
// invested in a project. All components are non-negative once finalised.
type ImpactEstimate struct {
	Carbon float64 `json:"carbon"`
	Energy float64 `json:"energy"`
	Water  float64 `json:"water"`
}

// Get returns the value of a single metric.
func (e ImpactEstimate) Get(m Metric) float64 {
	switch m {
	case MetricCarbon:
		return e.Carbon
	case MetricEnergy:
		return e.Energy
	case MetricWater:
		return e.Water
	}
	return 0
}

// With returns a copy with one metric replaced.
func (e ImpactEstimate) With(m Metric, v float64) ImpactEstimate {
	switch m {
	case MetricCarbon:
		e.Carbon = v
	case MetricEnergy:
		e.Energy = v
	case MetricWater:
		e.Water = v
	}
	return e
}

// Map applies fn to every metric.
func (e ImpactEstimate) Map(fn func(m Metric, v float64) float64) ImpactEstimate {
	for _, m := range Metrics {
		e = e.With(m, fn(m, e.Get(m)))
	}
	return e
}

// Add sums two estimates component-wise.
func (e ImpactEstimate) Add(o ImpactEstimate) ImpactEstimate {
	return ImpactEstimate{
		Carbon: e.Carbon + o.Carbon,
		Energy: e.Energy + o.Energy,
		Water:  e.Water + o.Water,
	}
}

// Scale multiplies every component by f.
func (e ImpactEstimate) Scale(f float64) ImpactEstimate {
	return ImpactEstimate{Carbon: e.Carbon * f, Energy: e.Energy * f, Water: e.Water * f}
}

// Floor clamps every component to >= 0. NaN is treated as zero.
func (e ImpactEstimate) Floor() ImpactEstimate {
	return e.Map(func(_ Metric, v float64) float64 {
		if math.IsNaN(v) || v < 0 {
			return 0
		}
		return v
	})
}

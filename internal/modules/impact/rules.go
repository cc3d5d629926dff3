package impact

import (
	"math"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/modules/impact/features"
)

// Policy decides how one metric of a category relates to the model output.
type Policy int

const (
	// PolicyModel keeps the model output unchanged.
	PolicyModel Policy = iota
	// PolicyZero forces the metric to zero: the category has no such impact.
	PolicyZero
	// PolicyReference replaces the model output with the reference rate.
	PolicyReference
	// PolicyBlend averages model and reference, capped at blendCap × reference.
	PolicyBlend
)

func (p Policy) String() string {
	switch p {
	case PolicyModel:
		return "model"
	case PolicyZero:
		return "zero"
	case PolicyReference:
		return "reference"
	case PolicyBlend:
		return "blend"
	}
	return "unknown"
}

const (
	blendWeight = 0.5
	blendCap    = 2.5
)

// RuleInput is what an override rule may look at. Input is normalised.
type RuleInput struct {
	Input          features.Input
	Primary        string
	DurationFactor float64
	ScaleFactor    float64
}

// Rule adjusts a baseline estimate for one category. Rules are pure.
type Rule func(baseline domain.ImpactEstimate, in RuleInput) domain.ImpactEstimate

// MetricRule pairs a policy with its reference base rate per 1000 invested.
type MetricRule struct {
	Policy  Policy
	RatePer float64
}

// CategoryRule is the table-driven override for one category.
type CategoryRule struct {
	Carbon MetricRule
	Energy MetricRule
	Water  MetricRule
}

func (c CategoryRule) metric(m domain.Metric) MetricRule {
	switch m {
	case domain.MetricCarbon:
		return c.Carbon
	case domain.MetricEnergy:
		return c.Energy
	case domain.MetricWater:
		return c.Water
	}
	return MetricRule{}
}

// Reference returns the rate-derived estimate for an input.
func (c CategoryRule) Reference(in RuleInput) domain.ImpactEstimate {
	units := in.Input.Amount / 1000
	return domain.ImpactEstimate{}.Map(func(m domain.Metric, _ float64) float64 {
		return c.metric(m).RatePer * units * in.DurationFactor * in.ScaleFactor
	})
}

// Rule turns the table entry into a Rule.
func (c CategoryRule) Rule() Rule {
	return func(baseline domain.ImpactEstimate, in RuleInput) domain.ImpactEstimate {
		ref := c.Reference(in)
		return baseline.Map(func(m domain.Metric, v float64) float64 {
			r := ref.Get(m)
			switch c.metric(m).Policy {
			case PolicyZero:
				return 0
			case PolicyReference:
				return r
			case PolicyBlend:
				return math.Min(blendWeight*v+(1-blendWeight)*r, blendCap*r)
			}
			return v
		})
	}
}

func blend(rate float64) MetricRule {
	return MetricRule{Policy: PolicyBlend, RatePer: rate}
}

func reference(rate float64) MetricRule {
	return MetricRule{Policy: PolicyReference, RatePer: rate}
}

var zero = MetricRule{Policy: PolicyZero}

// CategoryRules are the documented base rates per 1000 invested at a 12-month
// duration and scale rank 1. Carbon is kg CO2, energy kWh, water liters.
var CategoryRules = map[string]CategoryRule{
	"Renewable Energy":        {Carbon: blend(3.0), Energy: blend(6.0), Water: zero},
	"Recycling":               {Carbon: blend(3.2), Energy: blend(2.7), Water: blend(4.4)},
	"Emission Control":        {Carbon: blend(2.4), Energy: blend(1.8), Water: blend(1.2)},
	"Water Conservation":      {Carbon: blend(1.1), Energy: blend(1.1), Water: blend(105)},
	"Reforestation":           {Carbon: blend(3.5), Energy: zero, Water: reference(4.0)},
	"Sustainable Agriculture": {Carbon: blend(1.7), Energy: blend(1.1), Water: blend(5.5)},
	"Clean Transportation":    {Carbon: blend(2.8), Energy: blend(2.5), Water: zero},
	"Waste Management":        {Carbon: blend(2.2), Energy: blend(2.1), Water: blend(3.4)},
	"Green Technology":        {Carbon: blend(3.3), Energy: blend(3.8), Water: blend(4.5)},
	"Ocean Conservation":      {Carbon: blend(1.2), Energy: blend(0.6), Water: blend(22)},
}

// Rules maps a primary category to its override.
type Rules map[string]Rule

// DefaultRules builds the override table from CategoryRules.
func DefaultRules() Rules {
	rules := make(Rules, len(CategoryRules))
	for category, rule := range CategoryRules {
		rules[category] = rule.Rule()
	}
	return rules
}

// Apply runs the rule for in.Primary, or returns baseline if there is none.
func (r Rules) Apply(baseline domain.ImpactEstimate, in RuleInput) domain.ImpactEstimate {
	if rule, ok := r[in.Primary]; ok {
		return rule(baseline, in)
	}
	return baseline
}

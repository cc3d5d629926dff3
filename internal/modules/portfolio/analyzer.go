// Package portfolio analyses a user's impact investments: risk, diversification
// and concentration.
package portfolio

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/ecovest/internal/domain"
	"github.com/aristath/ecovest/internal/metrics"
	"github.com/aristath/ecovest/internal/modules/impact/features"
)

const (
	// fullyDiversifiedCategories is the distinct category count that scores 100.
	fullyDiversifiedCategories = 5

	categoryConcentration     = 40.0
	categoryConcentrationHigh = 60.0
	techConcentration         = 50.0
	techConcentrationHigh     = 70.0
)

var riskLevelWeights = map[domain.RiskLevel]float64{
	domain.RiskLow:    1,
	domain.RiskMedium: 3,
	domain.RiskHigh:   5,
}

// ScaleWeight maps scale rank 1..10 linearly onto 1..5. Out-of-range ranks
// are clamped.
func ScaleWeight(scale int) float64 {
	if scale < domain.MinScale {
		scale = domain.MinScale
	}
	if scale > domain.MaxScale {
		scale = domain.MaxScale
	}
	return 1 + float64(scale-domain.MinScale)*4/float64(domain.MaxScale-domain.MinScale)
}

// RiskLevelWeight returns 1, 3 or 5. Unknown levels weigh as medium.
func RiskLevelWeight(level domain.RiskLevel) float64 {
	if w, ok := riskLevelWeights[level]; ok {
		return w
	}
	return riskLevelWeights[domain.RiskMedium]
}

// RiskScore is the mean of the scale weight and the declared risk weight.
func RiskScore(p domain.ProjectProfile) float64 {
	return (ScaleWeight(p.Scale) + RiskLevelWeight(p.RiskLevel)) / 2
}

// RiskLabelFor buckets a score: ≤2 Low, ≤4 Medium, otherwise High.
func RiskLabelFor(score float64) RiskLabel {
	switch {
	case score <= 2:
		return RiskLabelLow
	case score <= 4:
		return RiskLabelMedium
	default:
		return RiskLabelHigh
	}
}

// Analyzer builds portfolio reports. It holds no per-user state.
type Analyzer struct {
	metrics *metrics.Registry
	log     zerolog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(reg *metrics.Registry, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		metrics: reg,
		log:     log.With().Str("component", "portfolio_analyzer").Logger(),
	}
}

// holdings converts investments to holdings, skipping the ones whose profile
// is missing or malformed.
func (a *Analyzer) holdings(investments []domain.Investment) ([]Holding, []int64) {
	out := make([]Holding, 0, len(investments))
	var skipped []int64

	for _, inv := range investments {
		h, err := holdingFor(inv)
		if err != nil {
			a.log.Warn().
				Err(err).
				Int64("investment_id", inv.ID).
				Int64("initiative_id", inv.InitiativeID).
				Msg("Excluding investment from portfolio analysis")
			skipped = append(skipped, inv.ID)
			continue
		}
		out = append(out, h)
	}
	return out, skipped
}

func holdingFor(inv domain.Investment) (Holding, error) {
	if inv.Profile == nil {
		return Holding{}, fmt.Errorf("no project profile")
	}
	if err := domain.ValidateAmount(inv.Amount); err != nil {
		return Holding{}, err
	}
	p := *inv.Profile
	if err := domain.ValidateScale(p.Scale); err != nil {
		return Holding{}, err
	}

	// An empty set resolves to the default category, as it does for estimates.
	categories, err := features.ResolveCategories(p.Categories)
	if err != nil {
		return Holding{}, err
	}

	score := RiskScore(p)
	return Holding{
		InvestmentID: inv.ID,
		InitiativeID: inv.InitiativeID,
		Amount:       inv.Amount,
		Impact:       inv.Impact.Floor(),
		Categories:   categories,
		Technology:   features.ResolveTechnology(p.Technology),
		RiskScore:    score,
		RiskLabel:    RiskLabelFor(score),
	}, nil
}

// Analyze aggregates totals, average risk and diversification. An empty list
// yields a zero report labelled Low.
func (a *Analyzer) Analyze(investments []domain.Investment) Report {
	holdings, skipped := a.holdings(investments)
	defer a.metrics.RecordPortfolioAnalysis(len(skipped))

	report := Report{
		RiskLabel:            RiskLabelLow,
		Holdings:             holdings,
		Diversification:      diversify(holdings),
		SkippedInvestmentIDs: skipped,
	}
	if report.SkippedInvestmentIDs == nil {
		report.SkippedInvestmentIDs = []int64{}
	}
	if len(holdings) == 0 {
		return report
	}

	total := decimal.Zero
	riskSum := 0.0
	distinct := make(map[string]bool)

	for _, h := range holdings {
		total = total.Add(decimal.NewFromFloat(h.Amount))
		report.TotalImpact = report.TotalImpact.Add(h.Impact)
		riskSum += h.RiskScore
		for _, c := range h.Categories {
			distinct[c] = true
		}
	}

	report.TotalInvested = total.InexactFloat64()
	report.RiskScore = riskSum / float64(len(holdings))
	report.RiskLabel = RiskLabelFor(report.RiskScore)
	report.DiversificationScore = DiversificationScore(len(distinct))

	a.log.Debug().
		Int("holdings", len(holdings)).
		Int("skipped", len(skipped)).
		Float64("total_invested", report.TotalInvested).
		Float64("risk_score", report.RiskScore).
		Msg("Analyzed portfolio")
	return report
}

// DiversificationScore is min(100, distinct/5 × 100).
func DiversificationScore(distinctCategories int) float64 {
	score := float64(distinctCategories) / fullyDiversifiedCategories * 100
	if score > 100 {
		return 100
	}
	return score
}

// Recommendations computes allocation shares and flags the largest category
// above 40% and the largest technology above 50%. A multi-category investment
// counts in full towards each of its categories, so category shares can add up
// to more than 100%.
func (a *Analyzer) Recommendations(investments []domain.Investment) Diversification {
	holdings, _ := a.holdings(investments)
	return diversify(holdings)
}

func diversify(holdings []Holding) Diversification {
	result := Diversification{
		CategoryDistribution:   make(map[string]float64),
		TechnologyDistribution: make(map[string]float64),
		Recommendations:        []Recommendation{},
	}

	total := decimal.Zero
	categoryAmounts := make(map[string]decimal.Decimal)
	techAmounts := make(map[string]decimal.Decimal)
	for _, h := range holdings {
		amount := decimal.NewFromFloat(h.Amount)
		total = total.Add(amount)
		for _, c := range h.Categories {
			categoryAmounts[c] = categoryAmounts[c].Add(amount)
		}
		techAmounts[h.Technology] = techAmounts[h.Technology].Add(amount)
	}
	if total.IsZero() {
		return result
	}

	hundred := decimal.NewFromInt(100)
	for c, amt := range categoryAmounts {
		result.CategoryDistribution[c] = amt.Div(total).Mul(hundred).InexactFloat64()
	}
	for tech, amt := range techAmounts {
		result.TechnologyDistribution[tech] = amt.Div(total).Mul(hundred).InexactFloat64()
	}

	if name, pct, ok := largest(result.CategoryDistribution); ok && pct > categoryConcentration {
		result.Recommendations = append(result.Recommendations, Recommendation{
			Type:       RecommendationCategory,
			Subject:    name,
			Percentage: pct,
			Message:    fmt.Sprintf("Consider diversifying from %s. Current allocation: %.1f%%", name, pct),
			Severity:   severity(pct, categoryConcentrationHigh),
		})
	}
	if name, pct, ok := largest(result.TechnologyDistribution); ok && pct > techConcentration {
		result.Recommendations = append(result.Recommendations, Recommendation{
			Type:       RecommendationTechnology,
			Subject:    name,
			Percentage: pct,
			Message:    fmt.Sprintf("Consider diversifying from %s technology. Current allocation: %.1f%%", name, pct),
			Severity:   severity(pct, techConcentrationHigh),
		})
	}
	return result
}

func severity(pct, highAbove float64) string {
	if pct > highAbove {
		return SeverityHigh
	}
	return SeverityMedium
}

// largest returns the biggest share; ties go to the alphabetically first name.
func largest(dist map[string]float64) (string, float64, bool) {
	if len(dist) == 0 {
		return "", 0, false
	}
	names := make([]string, 0, len(dist))
	for name := range dist {
		names = append(names, name)
	}
	sort.Strings(names)

	best := names[0]
	for _, name := range names[1:] {
		if dist[name] > dist[best] {
			best = name
		}
	}
	return best, dist[best], true
}

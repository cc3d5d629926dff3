package portfolio

import "github.com/aristath/ecovest/internal/domain"

// RiskLabel buckets a risk score.
type RiskLabel string

const (
	RiskLabelLow    RiskLabel = "Low"
	RiskLabelMedium RiskLabel = "Medium"
	RiskLabelHigh   RiskLabel = "High"
)

// Severity of a diversification recommendation.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Recommendation types.
const (
	RecommendationCategory   = "category_diversification"
	RecommendationTechnology = "technology_diversification"
)

// Holding is one investment as it contributes to a report.
type Holding struct {
	InvestmentID int64                 `json:"investment_id"`
	InitiativeID int64                 `json:"initiative_id"`
	Amount       float64               `json:"amount"`
	Impact       domain.ImpactEstimate `json:"impact"`
	Categories   []string              `json:"categories"`
	Technology   string                `json:"technology"`
	RiskScore    float64               `json:"risk_score"`
	RiskLabel    RiskLabel             `json:"risk_label"`
}

// Report is the aggregate view of a user's investments.
type Report struct {
	TotalInvested        float64               `json:"total_invested"`
	TotalImpact          domain.ImpactEstimate `json:"total_impact"`
	RiskScore            float64               `json:"risk_score"`
	RiskLabel            RiskLabel             `json:"risk_label"`
	DiversificationScore float64               `json:"diversification_score"`
	Holdings             []Holding             `json:"holdings"`
	Diversification
	// SkippedInvestmentIDs lists investments left out because their project
	// profile could not be used.
	SkippedInvestmentIDs []int64 `json:"skipped_investment_ids"`
}

// Recommendation flags an over-concentrated allocation.
type Recommendation struct {
	Type       string  `json:"type"`
	Subject    string  `json:"subject"`
	Percentage float64 `json:"percentage"`
	Message    string  `json:"message"`
	Severity   string  `json:"severity"`
}

// Diversification holds allocation shares (percent of total invested) and the
// resulting recommendations. Category shares may sum to more than 100 because
// a multi-category investment counts fully toward each of its categories.
type Diversification struct {
	CategoryDistribution   map[string]float64 `json:"category_distribution"`
	TechnologyDistribution map[string]float64 `json:"technology_distribution"`
	Recommendations        []Recommendation   `json:"recommendations"`
}

package domain

import (
	"math"
	"strings"
	"time"
)

// RiskLevel is the declared risk of a project.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRiskLevel accepts low/medium/high (case-insensitive, "moderate" as medium).
// An empty value defaults to medium.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return RiskMedium, nil
	case "low":
		return RiskLow, nil
	case "medium", "moderate":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return "", NewValidationError("risk_level", "unknown risk level %q", s)
}

// Scale bounds. Project scale is a 1-10 rank everywhere inside the engine.
const (
	MinScale = 1
	MaxScale = 10
)

// ValidateScale rejects scale ranks outside 1-10.
func ValidateScale(scale int) error {
	if scale < MinScale || scale > MaxScale {
		return NewValidationError("scale", "must be between %d and %d, got %d", MinScale, MaxScale, scale)
	}
	return nil
}

// ScaleFromTier converts the legacy 1-5 project tier (Small, Medium, Large,
// Very Large, Enterprise) into the 1-10 scale rank.
func ScaleFromTier(tier int) (int, error) {
	if tier < 1 || tier > 5 {
		return 0, NewValidationError("project_tier", "must be between 1 and 5, got %d", tier)
	}
	return int(math.Round(1 + float64(tier-1)*9/4)), nil
}

// ProjectProfile is the attribute bundle of a fundable project.
type ProjectProfile struct {
	ID             int64     `json:"id,omitempty"`
	Categories     []string  `json:"categories"`
	Location       string    `json:"location"`
	Technology     string    `json:"technology,omitempty"`
	DurationMonths int       `json:"duration_months"`
	Scale          int       `json:"scale"`
	RiskLevel      RiskLevel `json:"risk_level"`
	MinInvestment  float64   `json:"min_investment"`
	MaxInvestment  float64   `json:"max_investment,omitempty"` // 0 means unbounded
}

// Investment is a committed amount in one project with its impact cached at
// creation time.
type Investment struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	InitiativeID int64           `json:"initiative_id"`
	Amount       float64         `json:"amount"`
	Impact       ImpactEstimate  `json:"impact"`
	Profile      *ProjectProfile `json:"profile,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

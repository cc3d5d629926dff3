package testing

import "github.com/aristath/ecovest/internal/domain"

// NewProfileFixtures returns a spread of valid project profiles.
func NewProfileFixtures() []domain.ProjectProfile {
	return []domain.ProjectProfile{
		{
			Categories:     []string{"Reforestation"},
			Location:       "Assam",
			Technology:     "Manual",
			DurationMonths: 24,
			Scale:          3,
			RiskLevel:      domain.RiskLow,
			MinInvestment:  500,
		},
		{
			Categories:     []string{"Renewable Energy", "Green Technology"},
			Location:       "Rajasthan",
			Technology:     "Solar",
			DurationMonths: 36,
			Scale:          8,
			RiskLevel:      domain.RiskMedium,
			MinInvestment:  1000,
			MaxInvestment:  500000,
		},
		{
			Categories:     []string{"Ocean Conservation"},
			Location:       "Goa",
			Technology:     "Mechanical",
			DurationMonths: 6,
			Scale:          2,
			RiskLevel:      domain.RiskHigh,
		},
	}
}

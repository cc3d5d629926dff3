package initiatives

import (
	"errors"
	"time"

	"github.com/aristath/ecovest/internal/domain"
)

// ErrNotFound is returned when an initiative or investment does not exist.
var ErrNotFound = errors.New("not found")

// Initiative is a fundable project.
type Initiative struct {
	ID            int64                 `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Profile       domain.ProjectProfile `json:"profile"`
	GoalAmount    float64               `json:"goal_amount"`
	CurrentAmount float64               `json:"current_amount"`
	// Rates is the cached impact of investing 1000, nil until the first
	// persisted preview.
	Rates          *domain.ImpactEstimate `json:"rates_per_1000,omitempty"`
	RatesUpdatedAt *time.Time             `json:"rates_updated_at,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// FundingProgress returns current/goal as a percentage, capped at 100.
func (i Initiative) FundingProgress() float64 {
	if i.GoalAmount <= 0 {
		return 0
	}
	pct := i.CurrentAmount / i.GoalAmount * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// RowError reports a stored row that could not be turned into a domain value.
type RowError struct {
	ID  int64
	Err error
}

func (e RowError) Error() string {
	return e.Err.Error()
}

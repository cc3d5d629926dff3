package features

import (
	"math"

	"github.com/aristath/ecovest/internal/domain"
)

// Input is the raw, caller-facing description of one impact calculation.
type Input struct {
	Amount         float64
	Categories     []string
	DurationMonths int
	Scale          int
	Location       string
	Technology     string
}

// InputFromProfile builds an Input from an amount and a project profile.
func InputFromProfile(amount float64, p domain.ProjectProfile) Input {
	return Input{
		Amount:         amount,
		Categories:     p.Categories,
		DurationMonths: p.DurationMonths,
		Scale:          p.Scale,
		Location:       p.Location,
		Technology:     p.Technology,
	}
}

// Normalize validates numeric fields and resolves every label against the
// vocabularies. The returned Input is canonical: re-normalising it is a no-op.
func Normalize(in Input) (Input, error) {
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return Input{}, err
	}
	if in.DurationMonths <= 0 {
		return Input{}, domain.NewValidationError("duration_months", "must be positive, got %d", in.DurationMonths)
	}
	if err := domain.ValidateScale(in.Scale); err != nil {
		return Input{}, err
	}

	categories, err := ResolveCategories(in.Categories)
	if err != nil {
		return Input{}, err
	}

	return Input{
		Amount:         in.Amount,
		Categories:     categories,
		DurationMonths: in.DurationMonths,
		Scale:          in.Scale,
		Location:       ResolveLocation(in.Location),
		Technology:     ResolveTechnology(in.Technology),
	}, nil
}

// Encoder assembles raw feature vectors in schema order. Standardisation
// belongs to the model bundle, so the scaler and regressors that see a vector
// always come from the same bundle.
type Encoder struct{}

// NewEncoder returns an encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Raw builds the unscaled feature vector for in.
func (e *Encoder) Raw(in Input) ([]float64, error) {
	n, err := Normalize(in)
	if err != nil {
		return nil, err
	}

	x := make([]float64, FeatureCount)
	x[FeatureAmount] = math.Log1p(n.Amount)
	for _, c := range n.Categories {
		x[featureCategoryOffset+categoryIndex[key(c)]] = 1
	}
	x[FeatureDuration] = float64(n.DurationMonths)
	x[FeatureScale] = float64(n.Scale)
	x[FeatureLocation] = float64(locationIndex[key(n.Location)])
	x[FeatureTechnology] = float64(technologyIndex[key(n.Technology)])
	x[FeatureAmountDuration] = math.Log1p(n.Amount * float64(n.DurationMonths))
	return x, nil
}

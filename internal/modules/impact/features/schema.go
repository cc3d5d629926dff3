package features

// SchemaVersion tags every persisted model artifact. Bump it whenever the
// number or order of encoded fields changes so stale bundles trigger a retrain.
const SchemaVersion = "impact-v2"

// Feature positions within an encoded vector.
const (
	FeatureAmount         = 0
	featureCategoryOffset = 1
	FeatureDuration       = featureCategoryOffset + 10
	FeatureScale          = FeatureDuration + 1
	FeatureLocation       = FeatureScale + 1
	FeatureTechnology     = FeatureLocation + 1
	FeatureAmountDuration = FeatureTechnology + 1

	// FeatureCount is the width of an encoded vector.
	FeatureCount = FeatureAmountDuration + 1
)

// MonotoneFeatures are inputs along which predicted impact must never decrease.
var MonotoneFeatures = []int{FeatureAmount, FeatureDuration, FeatureScale, FeatureAmountDuration}

// FeatureNames returns a human-readable name for every field, in order.
func FeatureNames() []string {
	names := make([]string, 0, FeatureCount)
	names = append(names, "log_amount")
	for _, c := range Categories {
		names = append(names, "category:"+c)
	}
	return append(names, "duration_months", "scale", "location", "technology", "log_amount_x_duration")
}

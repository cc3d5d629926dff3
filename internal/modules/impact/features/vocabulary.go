// Package features turns project attributes into the fixed-width numeric
// vectors the impact regressors are trained on.
package features

import (
	"strings"

	"github.com/aristath/ecovest/internal/domain"
)

// Categories is the closed category vocabulary. Its order defines the position
// of each category indicator in the feature vector.
var Categories = []string{
	"Renewable Energy",
	"Recycling",
	"Emission Control",
	"Water Conservation",
	"Reforestation",
	"Sustainable Agriculture",
	"Clean Transportation",
	"Waste Management",
	"Green Technology",
	"Ocean Conservation",
}

// DefaultCategory replaces an empty category set.
const DefaultCategory = "Green Technology"

// CategoryPriority orders categories when picking a project's primary category.
var CategoryPriority = []string{
	"Reforestation",
	"Water Conservation",
	"Ocean Conservation",
	"Renewable Energy",
	"Clean Transportation",
	"Emission Control",
	"Sustainable Agriculture",
	"Waste Management",
	"Recycling",
	"Green Technology",
}

// Locations is the closed location vocabulary (Indian states).
var Locations = []string{
	"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
	"Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand",
	"Karnataka", "Kerala", "Madhya Pradesh", "Maharashtra", "Manipur",
	"Meghalaya", "Mizoram", "Nagaland", "Odisha", "Punjab",
	"Rajasthan", "Sikkim", "Tamil Nadu", "Telangana", "Tripura",
	"Uttar Pradesh", "Uttarakhand", "West Bengal",
}

// FallbackLocation is used for unknown, unaliased locations.
const FallbackLocation = "Karnataka"

// locationAliases maps legacy region names and common city or historical names
// onto a canonical state. Keys are lower-case.
var locationAliases = map[string]string{
	"north india": "Uttar Pradesh",
	"south india": "Karnataka",
	"east india":  "West Bengal",
	"west india":  "Maharashtra",
	"northeast":   "Assam",
	"bangalore":   "Karnataka",
	"bengaluru":   "Karnataka",
	"mysore":      "Karnataka",
	"bombay":      "Maharashtra",
	"mumbai":      "Maharashtra",
	"pune":        "Maharashtra",
	"calcutta":    "West Bengal",
	"kolkata":     "West Bengal",
	"madras":      "Tamil Nadu",
	"chennai":     "Tamil Nadu",
	"hyderabad":   "Telangana",
	"orissa":      "Odisha",
	"pondicherry": "Tamil Nadu",
	"uttaranchal": "Uttarakhand",
	"guwahati":    "Assam",
	"shillong":    "Meghalaya",
	"jaipur":      "Rajasthan",
	"ahmedabad":   "Gujarat",
	"kochi":       "Kerala",
	"delhi":       "Haryana",
	"new delhi":   "Haryana",
	"gurgaon":     "Haryana",
	"noida":       "Uttar Pradesh",
	"lucknow":     "Uttar Pradesh",
	"patna":       "Bihar",
}

// Technologies is the closed technology vocabulary.
var Technologies = []string{
	"Solar", "Wind", "Hydro", "Organic", "Mechanical",
	"Chemical", "Biofuel", "EV", "Manual", "AI",
}

// DefaultTechnology is used when technology is absent or unknown.
const DefaultTechnology = "Manual"

var technologyAliases = map[string]string{
	"electric vehicle":        "EV",
	"electric":                "EV",
	"photovoltaic":            "Solar",
	"pv":                      "Solar",
	"hydroelectric":           "Hydro",
	"biomass":                 "Biofuel",
	"artificial intelligence": "AI",
	"ml":                      "AI",
	"none":                    "Manual",
}

var (
	categoryIndex   = indexOf(Categories)
	locationIndex   = indexOf(Locations)
	technologyIndex = indexOf(Technologies)
)

func indexOf(labels []string) map[string]int {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[strings.ToLower(l)] = i
	}
	return idx
}

func key(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// ResolveCategories canonicalises a category set: labels are matched
// case-insensitively, duplicates dropped, and the result ordered by vocabulary
// position. An empty set becomes {DefaultCategory}. An unknown label is a
// ValidationError.
func ResolveCategories(labels []string) ([]string, error) {
	seen := make(map[int]bool, len(labels))
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			continue
		}
		i, ok := categoryIndex[key(l)]
		if !ok {
			return nil, domain.NewValidationError("categories", "unknown category %q", l)
		}
		seen[i] = true
	}
	if len(seen) == 0 {
		return []string{DefaultCategory}, nil
	}

	resolved := make([]string, 0, len(seen))
	for i, c := range Categories {
		if seen[i] {
			resolved = append(resolved, c)
		}
	}
	return resolved, nil
}

// ResolveLocation returns the canonical location for label, following the
// alias table and falling back to FallbackLocation.
func ResolveLocation(label string) string {
	k := key(label)
	if i, ok := locationIndex[k]; ok {
		return Locations[i]
	}
	if alias, ok := locationAliases[k]; ok {
		return alias
	}
	return FallbackLocation
}

// ResolveTechnology returns the canonical technology for label, defaulting to
// DefaultTechnology.
func ResolveTechnology(label string) string {
	k := key(label)
	if i, ok := technologyIndex[k]; ok {
		return Technologies[i]
	}
	if alias, ok := technologyAliases[k]; ok {
		return alias
	}
	return DefaultTechnology
}

// PrimaryCategory picks the highest-priority category of a resolved set.
func PrimaryCategory(categories []string) string {
	for _, p := range CategoryPriority {
		for _, c := range categories {
			if c == p {
				return p
			}
		}
	}
	return DefaultCategory
}

package recipe

import "strings"

// NoFilter is the dietary filter label that keeps every recipe.
const NoFilter = "None"

// FilterByDiet returns the recipes matching the dietary filter label. A recipe
// matches when one of its tags equals the label or its compliance notes
// mention it, both case-insensitively. NoFilter and a blank label return the
// input as is. The input is never modified.
func FilterByDiet(recipes []Recipe, label string) []Recipe {
	target := strings.ToLower(strings.TrimSpace(label))
	if target == "" || target == strings.ToLower(NoFilter) {
		return recipes
	}

	filtered := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		if matchesDiet(r, target) {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

func matchesDiet(r Recipe, target string) bool {
	for _, tag := range r.Tags {
		if strings.ToLower(tag) == target {
			return true
		}
	}
	return strings.Contains(strings.ToLower(r.DietaryComplianceNotes), target)
}

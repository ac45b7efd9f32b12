package recipe

import "strings"

// Difficulty is how hard a recipe is to cook.
type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// ParseDifficulty matches s case-insensitively against the known levels.
// Anything unknown is Medium.
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return Easy
	case "hard":
		return Hard
	default:
		return Medium
	}
}

// Step is one instruction of a recipe in cooking mode.
type Step struct {
	Instruction         string `json:"instruction"`
	DetailedDescription string `json:"detailedDescription"`
}

// Recipe represents a recipe suggested by the chef for the contents of a fridge.
type Recipe struct {
	ID                     string     `json:"id"`
	Title                  string     `json:"title"`
	Description            string     `json:"description"`
	Difficulty             Difficulty `json:"difficulty"`
	PrepTime               string     `json:"prepTime"`
	Calories               int        `json:"calories"`
	Steps                  []Step     `json:"steps"`
	MissingIngredients     []string   `json:"missingIngredients"`
	Tags                   []string   `json:"tags"`
	DietaryComplianceNotes string     `json:"dietaryComplianceNotes,omitempty"`
}

// AnalysisResult is what the chef sees in a fridge photo.
type AnalysisResult struct {
	DetectedIngredients []string `json:"detectedIngredients"`
	DetectedBeverages   []string `json:"detectedBeverages"`
	Recipes             []Recipe `json:"recipes"`
}

// Find returns the recipe with the given id.
func Find(recipes []Recipe, id string) (Recipe, bool) {
	for _, r := range recipes {
		if r.ID == id {
			return r, true
		}
	}
	return Recipe{}, false
}

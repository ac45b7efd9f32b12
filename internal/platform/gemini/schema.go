package gemini

import "github.com/google/generative-ai-go/genai"

func stringList() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
}

// RecipeSchema describes a single recipe.
func RecipeSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":          {Type: genai.TypeString},
			"title":       {Type: genai.TypeString, Description: "STRICTLY MAX 6 WORDS. Name ONLY."},
			"description": {Type: genai.TypeString, Description: "Brief appetizing description."},
			"difficulty":  {Type: genai.TypeString, Enum: []string{"Easy", "Medium", "Hard"}},
			"prepTime":    {Type: genai.TypeString},
			"calories":    {Type: genai.TypeInteger},
			"steps": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"instruction": {Type: genai.TypeString, Description: "The core action (e.g., 'Chop the onions')."},
						"detailedDescription": {
							Type:        genai.TypeString,
							Description: "A detailed paragraph (3-4 sentences) explaining exactly HOW to do it, visual cues to look for, and technical reasoning. NOT a tip box.",
						},
					},
				},
			},
			"missingIngredients": stringList(),
			"tags": {
				Type:        genai.TypeArray,
				Items:       &genai.Schema{Type: genai.TypeString},
				Description: "Must include dietary tags if applicable: 'Vegetarian', 'Vegan', 'Keto', 'Paleo', 'Gluten Free'.",
			},
			"dietaryComplianceNotes": {Type: genai.TypeString},
		},
	}
}

// RecipesSchema is the response of a recipe suggestion.
func RecipesSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"recipes": {Type: genai.TypeArray, Items: RecipeSchema()},
		},
	}
}

// AnalysisSchema is the response of a fridge analysis.
func AnalysisSchema() *genai.Schema {
	schema := RecipesSchema()
	schema.Properties["detectedIngredients"] = stringList()
	schema.Properties["detectedBeverages"] = stringList()
	return schema
}

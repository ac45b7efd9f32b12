package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgechef/internal/imagebudget"
	"fridgechef/internal/kitchen"
	"fridgechef/internal/recipe"
)

// fakeModel returns a canned response and records the prompt.
type fakeModel struct {
	parts       []genai.Part
	text        string
	returnError error
}

func (f *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	if f.returnError != nil {
		return nil, f.returnError
	}
	return textResponse(f.text), nil
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, genai.Text(p))
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestPrompts(t *testing.T) {
	assert.Equal(t, "Analyze this fridge image. Identify ingredients and suggest 6-8 recipes for Vegan diet. JSON ONLY.", AnalysisPrompt("Vegan"))
	assert.Equal(t, "Analyze this fridge image. Identify ingredients and suggest 6-8 recipes for None diet. JSON ONLY.", AnalysisPrompt(""))
	assert.Equal(t, "Ingredients: eggs, milk. Generate 5 recipes for Keto. JSON ONLY.", SuggestPrompt([]string{"eggs", "milk"}, "Keto"))
	assert.Equal(t, "Recipe: Omelette. Question: Can I skip milk?. Reply briefly.", AskPrompt("Omelette", "Can I skip milk?"))
	assert.Equal(t, "Recipe: Recipe. Question: Why?. Reply briefly.", AskPrompt("", "Why?"))
}

func TestSchemas(t *testing.T) {
	analysis := AnalysisSchema()
	assert.Equal(t, genai.TypeObject, analysis.Type)
	for _, key := range []string{"detectedIngredients", "detectedBeverages", "recipes"} {
		require.Contains(t, analysis.Properties, key)
	}

	r := analysis.Properties["recipes"].Items
	assert.Equal(t, []string{"Easy", "Medium", "Hard"}, r.Properties["difficulty"].Enum)
	assert.Equal(t, genai.TypeInteger, r.Properties["calories"].Type)
	assert.Equal(t, genai.TypeObject, r.Properties["steps"].Items.Type)

	// Building one schema does not leak into another
	assert.NotContains(t, RecipesSchema().Properties, "detectedIngredients")
}

func TestAnalyzeFridge(t *testing.T) {
	model := &fakeModel{text: "```json\n" + `{
		"detectedIngredients": ["eggs", "spinach"],
		"recipes": [{"title": "Spinach Omelette (quick)", "calories": "320 kcal", "steps": ["Whisk"]}]
	}` + "\n```"}
	c := &Client{analyze: model}

	result, err := c.AnalyzeFridge(context.Background(), "QUJD", "Vegetarian")
	require.NoError(t, err)

	require.Len(t, model.parts, 2)
	image, ok := model.parts[0].(genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", image.MIMEType)
	assert.Equal(t, []byte("ABC"), image.Data)
	assert.Equal(t, genai.Text(AnalysisPrompt("Vegetarian")), model.parts[1])

	assert.Equal(t, []string{"eggs", "spinach"}, result.DetectedIngredients)
	assert.Equal(t, []string{}, result.DetectedBeverages)
	require.Len(t, result.Recipes, 1)
	assert.Equal(t, "Spinach Omelette", result.Recipes[0].Title)
	assert.Equal(t, 320, result.Recipes[0].Calories)
	assert.Equal(t, "Whisk", result.Recipes[0].Steps[0].Instruction)
}

func TestAnalyzeFridge_Errors(t *testing.T) {
	c := &Client{analyze: &fakeModel{text: "{}"}}
	_, err := c.AnalyzeFridge(context.Background(), "not base64!", "None")
	assert.True(t, errors.Is(err, imagebudget.ErrDecode))

	c = &Client{analyze: &fakeModel{returnError: context.DeadlineExceeded}}
	_, err = c.AnalyzeFridge(context.Background(), "QUJD", "None")
	assert.True(t, errors.Is(err, kitchen.ErrChefUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	c = &Client{analyze: &fakeModel{text: "Sorry, I can't see a fridge."}}
	_, err = c.AnalyzeFridge(context.Background(), "QUJD", "None")
	assert.True(t, errors.Is(err, recipe.ErrMalformedResponse))
}

func TestSuggestRecipes(t *testing.T) {
	model := &fakeModel{text: `{"recipes": [{"id": "a", "title": "Rice Bowl"}, {"title": ""}]}`}
	c := &Client{suggest: model}

	recipes, err := c.SuggestRecipes(context.Background(), []string{"rice"}, "Vegan")
	require.NoError(t, err)
	assert.Equal(t, []genai.Part{genai.Text(SuggestPrompt([]string{"rice"}, "Vegan"))}, model.parts)
	require.Len(t, recipes, 2)
	assert.Equal(t, "a", recipes[0].ID)
	assert.Equal(t, recipe.DefaultTitle, recipes[1].Title)
}

func TestAskChef(t *testing.T) {
	c := &Client{ask: &fakeModel{text: "  Yes, use oat milk.\n"}}
	answer, err := c.AskChef(context.Background(), "Pancakes", "Dairy free?")
	require.NoError(t, err)
	assert.Equal(t, "Yes, use oat milk.", answer)

	c = &Client{ask: &fakeModel{returnError: errors.New("quota exceeded")}}
	_, err = c.AskChef(context.Background(), "Pancakes", "Dairy free?")
	assert.True(t, errors.Is(err, kitchen.ErrChefUnavailable))
}

func TestResponseText(t *testing.T) {
	text, err := ResponseText(textResponse(`{"recipes":`, `[]}`))
	require.NoError(t, err)
	assert.Equal(t, `{"recipes":[]}`, text)

	_, err = ResponseText(nil)
	assert.Error(t, err)
	_, err = ResponseText(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	blobOnly := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.ImageData("png", []byte{1})}},
	}}}
	_, err = ResponseText(blobOnly)
	assert.Error(t, err)
}

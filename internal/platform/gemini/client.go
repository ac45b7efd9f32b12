package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"fridgechef/internal/imagebudget"
	"fridgechef/internal/kitchen"
	"fridgechef/internal/recipe"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.5-flash"

// generator is the part of *genai.GenerativeModel the client uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client is a client for the Gemini API.
type Client struct {
	client  *genai.Client
	analyze generator
	suggest generator
	ask     generator
}

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini api key is missing")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	analyze := client.GenerativeModel(modelName)
	analyze.ResponseMIMEType = "application/json"
	analyze.ResponseSchema = AnalysisSchema()

	suggest := client.GenerativeModel(modelName)
	suggest.ResponseMIMEType = "application/json"
	suggest.ResponseSchema = RecipesSchema()

	return &Client{
		client:  client,
		analyze: analyze,
		suggest: suggest,
		ask:     client.GenerativeModel(modelName),
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// AnalysisPrompt asks for the ingredients of a fridge photo and recipes for them.
func AnalysisPrompt(dietaryFilter string) string {
	return fmt.Sprintf("Analyze this fridge image. Identify ingredients and suggest 6-8 recipes for %s diet. JSON ONLY.", filterOrNone(dietaryFilter))
}

// SuggestPrompt asks for recipes from a list of ingredients.
func SuggestPrompt(ingredients []string, dietaryFilter string) string {
	return fmt.Sprintf("Ingredients: %s. Generate 5 recipes for %s. JSON ONLY.", strings.Join(ingredients, ", "), filterOrNone(dietaryFilter))
}

// AskPrompt asks a short question about a recipe.
func AskPrompt(recipeTitle, question string) string {
	if strings.TrimSpace(recipeTitle) == "" {
		recipeTitle = "Recipe"
	}
	return fmt.Sprintf("Recipe: %s. Question: %s. Reply briefly.", recipeTitle, question)
}

// AnalyzeFridge identifies the ingredients in a base64 JPEG and suggests recipes.
func (c *Client) AnalyzeFridge(ctx context.Context, imageBase64, dietaryFilter string) (recipe.AnalysisResult, error) {
	imageData, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return recipe.AnalysisResult{}, fmt.Errorf("%w: %v", imagebudget.ErrDecode, err)
	}

	prompt := []genai.Part{
		genai.ImageData("jpeg", imageData),
		genai.Text(AnalysisPrompt(dietaryFilter)),
	}

	text, err := c.generate(ctx, c.analyze, prompt...)
	if err != nil {
		return recipe.AnalysisResult{}, err
	}
	return recipe.NormalizeText(text)
}

// SuggestRecipes generates recipes from a list of ingredients.
func (c *Client) SuggestRecipes(ctx context.Context, ingredients []string, dietaryFilter string) ([]recipe.Recipe, error) {
	text, err := c.generate(ctx, c.suggest, genai.Text(SuggestPrompt(ingredients, dietaryFilter)))
	if err != nil {
		return nil, err
	}
	result, err := recipe.NormalizeText(text)
	if err != nil {
		return nil, err
	}
	return result.Recipes, nil
}

// AskChef answers a question about a recipe in a few sentences.
func (c *Client) AskChef(ctx context.Context, recipeTitle, question string) (string, error) {
	text, err := c.generate(ctx, c.ask, genai.Text(AskPrompt(recipeTitle, question)))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) generate(ctx context.Context, model generator, parts ...genai.Part) (string, error) {
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		log.WithError(err).Error("gemini request failed")
		return "", fmt.Errorf("%w: %w", kitchen.ErrChefUnavailable, err)
	}
	return ResponseText(resp)
}

// ResponseText joins the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return sb.String(), nil
}

func filterOrNone(dietaryFilter string) string {
	if strings.TrimSpace(dietaryFilter) == "" {
		return recipe.NoFilter
	}
	return dietaryFilter
}

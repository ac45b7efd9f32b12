package localllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/apex/log"

	"fridgechef/internal/kitchen"
	"fridgechef/internal/platform/gemini"
	"fridgechef/internal/recipe"
)

const (
	// DefaultURL is the chat completions endpoint of a local LM Studio server.
	DefaultURL = "http://localhost:1234/v1/chat/completions"
	// DefaultModel is the vision model loaded by default.
	DefaultModel = "gemma-3-12b-it:2"
)

// jsonShape spells out the response format, since local servers take no schema.
const jsonShape = ` Respond with a single JSON object without markdown formatting. Keys: ` +
	`'detectedIngredients' (array of strings), 'detectedBeverages' (array of strings), 'recipes' (array of objects with ` +
	`'id', 'title', 'description', 'difficulty' (Easy, Medium or Hard), 'prepTime', 'calories' (integer), ` +
	`'steps' (array of objects with 'instruction' and 'detailedDescription'), 'missingIngredients' (array of strings), ` +
	`'tags' (array of strings) and 'dietaryComplianceNotes').`

// Client represents a client for the local LLM.
type Client struct {
	httpClient *http.Client
	apiURL     string
	model      string
}

// NewClient creates a new client for the local LLM.
func NewClient(apiURL, model string) *Client {
	if apiURL == "" {
		apiURL = DefaultURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: &http.Client{},
		apiURL:     apiURL,
		model:      model,
	}
}

// Request represents the request body for the local LLM.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// Message represents a message in the request.
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// Content represents the content of a message.
type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents the image URL in the content.
type ImageURL struct {
	URL string `json:"url"`
}

// Response represents the response from the local LLM.
type Response struct {
	Choices []Choice `json:"choices"`
}

// Choice represents a choice in the response.
type Choice struct {
	Message ResponseMessage `json:"message"`
}

// ResponseMessage represents a message in the response.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateContent sends a prompt, and optionally a base64 JPEG, to the local
// LLM and returns the text of the first choice.
func (c *Client) GenerateContent(ctx context.Context, text string, imageBase64 string) (string, error) {
	content := []Content{{Type: "text", Text: text}}
	if imageBase64 != "" {
		content = append(content, Content{
			Type:     "image_url",
			ImageURL: &ImageURL{URL: "data:image/jpeg;base64," + imageBase64},
		})
	}

	reqBody := Request{
		Model:       c.model,
		Messages:    []Message{{Role: "user", Content: content}},
		Temperature: 1,
		MaxTokens:   4096,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to send request: %w", kitchen.ErrChefUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: received non-OK status code: %d", kitchen.ErrChefUnavailable, resp.StatusCode)
	}

	var llmResp Response
	if err := json.NewDecoder(resp.Body).Decode(&llmResp); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(llmResp.Choices) > 0 {
		log.WithField("chars", len(llmResp.Choices[0].Message.Content)).Debug("local llm responded")
		return llmResp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("no content found in response")
}

// AnalyzeFridge identifies the ingredients in a base64 JPEG and suggests recipes.
func (c *Client) AnalyzeFridge(ctx context.Context, imageBase64, dietaryFilter string) (recipe.AnalysisResult, error) {
	responseText, err := c.GenerateContent(ctx, gemini.AnalysisPrompt(dietaryFilter)+jsonShape, imageBase64)
	if err != nil {
		return recipe.AnalysisResult{}, fmt.Errorf("failed to generate content: %w", err)
	}
	return recipe.NormalizeText(responseText)
}

// SuggestRecipes generates recipes from a list of ingredients.
func (c *Client) SuggestRecipes(ctx context.Context, ingredients []string, dietaryFilter string) ([]recipe.Recipe, error) {
	responseText, err := c.GenerateContent(ctx, gemini.SuggestPrompt(ingredients, dietaryFilter)+jsonShape, "")
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	result, err := recipe.NormalizeText(responseText)
	if err != nil {
		return nil, err
	}
	return result.Recipes, nil
}

// AskChef answers a question about a recipe.
func (c *Client) AskChef(ctx context.Context, recipeTitle, question string) (string, error) {
	responseText, err := c.GenerateContent(ctx, gemini.AskPrompt(recipeTitle, question), "")
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return strings.TrimSpace(responseText), nil
}

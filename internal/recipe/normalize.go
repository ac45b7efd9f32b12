package recipe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrMalformedResponse is returned when the model output cannot be parsed as a JSON object.
var ErrMalformedResponse = errors.New("malformed model response")

const (
	// MaxTitleLen is the longest recipe title kept, in characters.
	MaxTitleLen = 50

	DefaultTitle       = "Untitled Recipe"
	DefaultDescription = "No description available."
	DefaultPrepTime    = "15 min"
	DefaultInstruction = "Step"
	DefaultDetails     = "No details."
)

var leadingNumber = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)

// Payload is the model output decoded at the boundary. Every field is kept raw
// so that Sanitize can decide, field by field, what is usable.
type Payload struct {
	DetectedIngredients json.RawMessage `json:"detectedIngredients"`
	DetectedBeverages   json.RawMessage `json:"detectedBeverages"`
	Recipes             json.RawMessage `json:"recipes"`
}

type rawRecipe struct {
	ID                     json.RawMessage `json:"id"`
	Title                  json.RawMessage `json:"title"`
	Description            json.RawMessage `json:"description"`
	Difficulty             json.RawMessage `json:"difficulty"`
	PrepTime               json.RawMessage `json:"prepTime"`
	Calories               json.RawMessage `json:"calories"`
	Steps                  json.RawMessage `json:"steps"`
	MissingIngredients     json.RawMessage `json:"missingIngredients"`
	Tags                   json.RawMessage `json:"tags"`
	DietaryComplianceNotes json.RawMessage `json:"dietaryComplianceNotes"`
}

type rawStep struct {
	Instruction         json.RawMessage `json:"instruction"`
	DetailedDescription json.RawMessage `json:"detailedDescription"`
}

// CleanJSON strips markdown code fences and any prose around the outermost
// JSON object of a model response.
func CleanJSON(text string) string {
	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end != -1 && start < end {
		cleaned = cleaned[start : end+1]
	}
	return cleaned
}

// Parse extracts the JSON object from a model response.
func Parse(text string) (Payload, error) {
	cleaned := CleanJSON(text)
	if !strings.HasPrefix(cleaned, "{") {
		return Payload{}, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var p Payload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return p, nil
}

// NormalizeText parses a model response and sanitizes it into an AnalysisResult.
func NormalizeText(text string) (AnalysisResult, error) {
	p, err := Parse(text)
	if err != nil {
		return AnalysisResult{}, err
	}
	return Sanitize(p), nil
}

// Sanitize turns a decoded payload into a strictly shaped AnalysisResult.
// Fields of the wrong type are treated as missing.
func Sanitize(p Payload) AnalysisResult {
	result := AnalysisResult{
		DetectedIngredients: decodeStrings(p.DetectedIngredients),
		DetectedBeverages:   decodeStrings(p.DetectedBeverages),
	}
	for _, item := range decodeArray(p.Recipes) {
		var raw rawRecipe
		if err := json.Unmarshal(item, &raw); err != nil {
			continue
		}
		result.Recipes = append(result.Recipes, Recipe{
			ID:                     decodeString(raw.ID),
			Title:                  decodeString(raw.Title),
			Description:            decodeString(raw.Description),
			Difficulty:             Difficulty(decodeString(raw.Difficulty)),
			PrepTime:               decodeString(raw.PrepTime),
			Calories:               decodeCalories(raw.Calories),
			Steps:                  decodeSteps(raw.Steps),
			MissingIngredients:     decodeStrings(raw.MissingIngredients),
			Tags:                   decodeStrings(raw.Tags),
			DietaryComplianceNotes: decodeString(raw.DietaryComplianceNotes),
		})
	}
	return Normalize(result)
}

// Normalize fills in defaults and trims every field of a result.
// Normalize(Normalize(a)) equals Normalize(a).
func Normalize(a AnalysisResult) AnalysisResult {
	out := AnalysisResult{
		DetectedIngredients: cleanList(a.DetectedIngredients),
		DetectedBeverages:   cleanList(a.DetectedBeverages),
		Recipes:             NormalizeRecipes(a.Recipes),
	}
	return out
}

// NormalizeRecipes normalizes every recipe of a list. The result is never nil.
func NormalizeRecipes(recipes []Recipe) []Recipe {
	out := make([]Recipe, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, NormalizeRecipe(r))
	}
	return out
}

// NormalizeRecipe fills in the defaults of a single recipe.
func NormalizeRecipe(r Recipe) Recipe {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = uuid.NewString()
	}

	calories := r.Calories
	if calories < 0 {
		calories = 0
	}

	steps := make([]Step, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, Step{
			Instruction:         orDefault(s.Instruction, DefaultInstruction),
			DetailedDescription: orDefault(s.DetailedDescription, DefaultDetails),
		})
	}

	return Recipe{
		ID:                     id,
		Title:                  NormalizeTitle(r.Title),
		Description:            orDefault(r.Description, DefaultDescription),
		Difficulty:             ParseDifficulty(string(r.Difficulty)),
		PrepTime:               orDefault(r.PrepTime, DefaultPrepTime),
		Calories:               calories,
		Steps:                  steps,
		MissingIngredients:     uniqueList(r.MissingIngredients),
		Tags:                   cleanList(r.Tags),
		DietaryComplianceNotes: strings.TrimSpace(r.DietaryComplianceNotes),
	}
}

// NormalizeTitle drops a trailing parenthetical annotation and clips the title
// to MaxTitleLen characters.
func NormalizeTitle(title string) string {
	if i := strings.Index(title, "("); i >= 0 {
		title = title[:i]
	}
	title = strings.TrimSpace(truncate(strings.TrimSpace(title), MaxTitleLen))
	if title == "" {
		return DefaultTitle
	}
	return title
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func orDefault(s, def string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return s
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func uniqueList(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range cleanList(items) {
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func decodeValue(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

func decodeArray(raw json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func decodeString(raw json.RawMessage) string {
	switch v := decodeValue(raw).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func decodeStrings(raw json.RawMessage) []string {
	out := make([]string, 0)
	for _, item := range decodeArray(raw) {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func decodeSteps(raw json.RawMessage) []Step {
	steps := make([]Step, 0)
	for _, item := range decodeArray(raw) {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			steps = append(steps, Step{Instruction: s})
			continue
		}
		var rs rawStep
		if err := json.Unmarshal(item, &rs); err != nil {
			continue
		}
		steps = append(steps, Step{
			Instruction:         decodeString(rs.Instruction),
			DetailedDescription: decodeString(rs.DetailedDescription),
		})
	}
	return steps
}

// decodeCalories reads a number, or the leading number of a string such as "350 kcal".
func decodeCalories(raw json.RawMessage) int {
	var f float64
	switch v := decodeValue(raw).(type) {
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0
		}
		f = n
	case string:
		m := leadingNumber.FindStringSubmatch(v)
		if m == nil {
			return 0
		}
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if f < 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

// Package kitchen holds the application state of a household: the current
// fridge analysis, the dietary filter, cooking mode, the shopping list and
// the saved fridge profiles. Every operation is an explicit command; the ones
// that change persisted collections write them through immediately.
package kitchen

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"

	"fridgechef/internal/imagebudget"
	"fridgechef/internal/pantry"
	"fridgechef/internal/recipe"
)

// Chef is the generative AI service that looks at fridges and writes recipes.
type Chef interface {
	AnalyzeFridge(ctx context.Context, imageBase64, dietaryFilter string) (recipe.AnalysisResult, error)
	SuggestRecipes(ctx context.Context, ingredients []string, dietaryFilter string) ([]recipe.Recipe, error)
	AskChef(ctx context.Context, recipeTitle, question string) (string, error)
}

// ImageArchive keeps the photos that were analyzed.
type ImageArchive interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// View is the screen the user is on.
type View string

const (
	ViewCamera    View = "camera"
	ViewDashboard View = "dashboard"
	ViewCooking   View = "cooking"
)

const cacheKeyPrefix = "analysis:"

// State is the application state shown to the user.
type State struct {
	View          View                   `json:"view"`
	Analysis      *recipe.AnalysisResult `json:"analysis"`
	Selected      *recipe.Recipe         `json:"selectedRecipe"`
	CookingStep   int                    `json:"cookingStep"`
	DietaryFilter string                 `json:"dietaryFilter"`
	Loading       bool                   `json:"loading"`
	Error         string                 `json:"error,omitempty"`
	Notice        string                 `json:"notice,omitempty"`
}

// Snapshot is the State plus everything derived from it.
type Snapshot struct {
	State
	FilteredRecipes []recipe.Recipe        `json:"filteredRecipes"`
	ShoppingList    []string               `json:"shoppingList"`
	Profiles        []pantry.FridgeProfile `json:"profiles"`
}

// Config wires a Kitchen. Archive is optional.
type Config struct {
	Chef    Chef
	Store   pantry.Store
	Archive ImageArchive
	Budget  imagebudget.Options
}

// Kitchen is safe for concurrent use. AI calls run without holding the lock,
// so overlapping analyses are allowed and the last one to finish wins.
type Kitchen struct {
	chef    Chef
	store   pantry.Store
	archive ImageArchive
	budget  imagebudget.Options
	now     func() time.Time

	mu       sync.Mutex
	state    State
	inFlight int
	list     *pantry.ShoppingList
	profiles *pantry.Profiles
}

// New creates a Kitchen and loads the persisted collections from cfg.Store.
func New(ctx context.Context, cfg Config) *Kitchen {
	return &Kitchen{
		chef:     cfg.Chef,
		store:    cfg.Store,
		archive:  cfg.Archive,
		budget:   cfg.Budget,
		now:      time.Now,
		state:    State{View: ViewCamera, DietaryFilter: recipe.NoFilter},
		list:     pantry.LoadShoppingList(ctx, cfg.Store),
		profiles: pantry.LoadProfiles(ctx, cfg.Store),
	}
}

// GenerateImageHash calculates the SHA256 hash of the image data.
func GenerateImageHash(imageData []byte) string {
	hash := sha256.Sum256(imageData)
	return hex.EncodeToString(hash[:])
}

// Snapshot returns a copy of the current state.
func (k *Kitchen) Snapshot() Snapshot {
	k.mu.Lock()
	defer k.mu.Unlock()

	return Snapshot{
		State:           k.state,
		FilteredRecipes: k.filteredLocked(),
		ShoppingList:    k.list.Items(),
		Profiles:        k.profiles.List(),
	}
}

// Analyze budgets a base64 photo, asks the chef what is in it and makes the
// answer the current analysis. When ingredients were found but no recipes
// came back, recipes are requested again from the ingredient list.
func (k *Kitchen) Analyze(ctx context.Context, imageBase64 string) (recipe.AnalysisResult, error) {
	k.begin()
	defer k.end()

	filter := k.DietaryFilter()

	budgeted, err := imagebudget.Fit(imagebudget.StripDataURI(strings.TrimSpace(imageBase64)), k.budget)
	if err != nil {
		k.fail(analyzeMessage(err))
		return recipe.AnalysisResult{}, err
	}
	imageData, err := base64.StdEncoding.DecodeString(budgeted)
	if err != nil {
		err = fmt.Errorf("%w: %v", imagebudget.ErrDecode, err)
		k.fail(analyzeMessage(err))
		return recipe.AnalysisResult{}, err
	}

	imageHash := GenerateImageHash(imageData)
	logger := log.WithFields(log.Fields{"image_hash": imageHash, "filter": filter, "bytes": len(imageData)})

	if result, ok := k.cachedAnalysis(ctx, imageHash, filter); ok {
		logger.Info("analysis found in cache")
		k.setAnalysis(result)
		return result, nil
	}

	k.archiveImage(ctx, imageHash, imageData)

	logger.Info("analyzing fridge image")
	result, err := k.chef.AnalyzeFridge(ctx, budgeted, filter)
	if err != nil {
		logger.WithError(err).Error("fridge analysis failed")
		k.fail(analyzeMessage(err))
		return recipe.AnalysisResult{}, err
	}
	result = recipe.Normalize(result)
	k.setAnalysis(result)

	if len(result.DetectedIngredients) > 0 && len(result.Recipes) == 0 {
		logger.Warn("analysis returned ingredients but no recipes, regenerating")
		if recipes, err := k.Regenerate(ctx, result.DetectedIngredients, filter); err == nil {
			result.Recipes = recipes
		}
	}

	k.rememberAnalysis(ctx, imageHash, filter, result)
	return result, nil
}

// Regenerate asks the chef for new recipes and replaces the recipes of the
// current analysis with them. Empty ingredients default to the detected ones,
// an empty filter to the current one.
func (k *Kitchen) Regenerate(ctx context.Context, ingredients []string, dietaryFilter string) ([]recipe.Recipe, error) {
	k.mu.Lock()
	if k.state.Analysis == nil {
		k.mu.Unlock()
		return nil, ErrNoAnalysis
	}
	if len(ingredients) == 0 {
		ingredients = k.state.Analysis.DetectedIngredients
	}
	if strings.TrimSpace(dietaryFilter) == "" {
		dietaryFilter = k.state.DietaryFilter
	}
	k.mu.Unlock()

	k.begin()
	defer k.end()

	recipes, err := k.chef.SuggestRecipes(ctx, ingredients, dietaryFilter)
	if err != nil {
		log.WithError(err).WithField("filter", dietaryFilter).Error("failed to regenerate recipes")
		k.fail(UserMessage(err))
		return nil, err
	}
	recipes = recipe.NormalizeRecipes(recipes)

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state.Analysis != nil {
		next := *k.state.Analysis
		next.Recipes = recipes
		k.state.Analysis = &next
	}
	return recipes, nil
}

// DietaryFilter returns the current filter label.
func (k *Kitchen) DietaryFilter() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state.DietaryFilter
}

// SetDietaryFilter changes the filter and returns the recipes it keeps. A
// blank label means recipe.NoFilter.
func (k *Kitchen) SetDietaryFilter(label string) []recipe.Recipe {
	label = strings.TrimSpace(label)
	if label == "" {
		label = recipe.NoFilter
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.state.DietaryFilter = label
	return k.filteredLocked()
}

// FilteredRecipes returns the recipes of the current analysis that match the filter.
func (k *Kitchen) FilteredRecipes() []recipe.Recipe {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.filteredLocked()
}

// SelectRecipe enters cooking mode on the first step of a recipe.
func (k *Kitchen) SelectRecipe(id string) (recipe.Recipe, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	r, ok := k.findLocked(id)
	if !ok {
		return recipe.Recipe{}, fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
	}
	k.state.Selected = &r
	k.state.CookingStep = 0
	k.state.View = ViewCooking
	return r, nil
}

// MoveStep moves through the steps of the selected recipe and returns the new
// step index, clamped to the recipe.
func (k *Kitchen) MoveStep(delta int) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state.Selected == nil {
		return 0, ErrNotCooking
	}
	step := k.state.CookingStep + delta
	if last := len(k.state.Selected.Steps) - 1; step > last {
		step = last
	}
	if step < 0 {
		step = 0
	}
	k.state.CookingStep = step
	return step, nil
}

// Ask sends a question about a recipe to the chef. An empty recipeID means the
// recipe being cooked.
func (k *Kitchen) Ask(ctx context.Context, recipeID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	k.mu.Lock()
	var r recipe.Recipe
	var ok bool
	if recipeID == "" && k.state.Selected != nil {
		r, ok = *k.state.Selected, true
	} else {
		r, ok = k.findLocked(recipeID)
	}
	k.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRecipeNotFound, recipeID)
	}

	answer, err := k.chef.AskChef(ctx, r.Title, question)
	if err != nil {
		log.WithError(err).WithField("recipe", r.Title).Error("failed to ask the chef")
		return "", err
	}
	return answer, nil
}

// AddToShoppingList adds an item to the shopping list.
func (k *Kitchen) AddToShoppingList(ctx context.Context, item string) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	added, err := k.list.Add(ctx, item)
	if err != nil {
		return false, err
	}
	if added {
		k.state.Notice = fmt.Sprintf("Added %s to pantry", strings.TrimSpace(item))
	}
	return added, nil
}

// AddMissingToShoppingList puts every missing ingredient of a recipe on the
// shopping list and returns the ones that were not there yet.
func (k *Kitchen) AddMissingToShoppingList(ctx context.Context, recipeID string) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	r, ok := k.findLocked(recipeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, recipeID)
	}
	added, err := k.list.AddAll(ctx, r.MissingIngredients)
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		k.state.Notice = fmt.Sprintf("Added %d items to pantry", len(added))
	}
	return added, nil
}

// RemoveFromShoppingList removes an item from the shopping list.
func (k *Kitchen) RemoveFromShoppingList(ctx context.Context, item string) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.list.Remove(ctx, item)
}

// ShoppingList returns the items on the shopping list.
func (k *Kitchen) ShoppingList() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.list.Items()
}

// ShoppingListText returns the shopping list as a plain-text checklist.
func (k *Kitchen) ShoppingListText() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.list.ExportText()
}

// WriteShoppingListPDF renders the shopping list as a PDF into w.
func (k *Kitchen) WriteShoppingListPDF(w io.Writer) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.list.ExportPDF(w)
}

// Profiles returns the saved fridge profiles ordered by slot.
func (k *Kitchen) Profiles() []pantry.FridgeProfile {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.profiles.List()
}

// SaveProfile stores the current analysis and filter in a slot, overwriting
// it. A blank name gets a dated default.
func (k *Kitchen) SaveProfile(ctx context.Context, slot int, name string) (pantry.FridgeProfile, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.state.Analysis == nil {
		k.state.Error = MsgNoFridgeData
		return pantry.FridgeProfile{}, ErrNoAnalysis
	}
	if strings.TrimSpace(name) == "" {
		name = pantry.DefaultName(k.now())
	}

	profile, err := k.profiles.Save(ctx, slot, name, *k.state.Analysis, k.state.DietaryFilter)
	if err != nil {
		return pantry.FridgeProfile{}, err
	}
	k.state.Notice = fmt.Sprintf("Saved to Slot %d", slot)
	return profile, nil
}

// RenameProfile renames the profile in a slot.
func (k *Kitchen) RenameProfile(ctx context.Context, slot int, name string) (pantry.FridgeProfile, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	profile, err := k.profiles.Rename(ctx, slot, name)
	if err != nil {
		return pantry.FridgeProfile{}, err
	}
	k.state.Notice = "Profile updated"
	return profile, nil
}

// LoadProfile makes a saved profile the current analysis.
func (k *Kitchen) LoadProfile(slot int) (pantry.FridgeProfile, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !pantry.ValidSlot(slot) {
		return pantry.FridgeProfile{}, fmt.Errorf("%w: %d", pantry.ErrInvalidSlot, slot)
	}
	profile, ok := k.profiles.Get(slot)
	if !ok {
		return pantry.FridgeProfile{}, fmt.Errorf("%w: slot %d", pantry.ErrProfileNotFound, slot)
	}

	data := profile.Data
	k.state.Analysis = &data
	k.state.Selected = nil
	k.state.CookingStep = 0
	k.state.DietaryFilter = profile.DietaryFilter
	if strings.TrimSpace(k.state.DietaryFilter) == "" {
		k.state.DietaryFilter = recipe.NoFilter
	}
	k.state.View = ViewDashboard
	k.state.Error = ""
	k.state.Notice = fmt.Sprintf("Loaded %s", profile.Name)
	return profile, nil
}

// DeleteProfile clears a slot.
func (k *Kitchen) DeleteProfile(ctx context.Context, slot int) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	deleted, err := k.profiles.Delete(ctx, slot)
	if err != nil {
		return false, err
	}
	if deleted {
		k.state.Notice = fmt.Sprintf("Slot %d cleared", slot)
	}
	return deleted, nil
}

// Reset goes back to the camera with no analysis and no filter.
func (k *Kitchen) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.state.Analysis = nil
	k.state.Selected = nil
	k.state.CookingStep = 0
	k.state.Error = ""
	k.state.DietaryFilter = recipe.NoFilter
	k.state.View = ViewCamera
}

func (k *Kitchen) begin() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.inFlight++
	k.state.Loading = true
	k.state.Error = ""
}

func (k *Kitchen) end() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.inFlight--
	k.state.Loading = k.inFlight > 0
}

func (k *Kitchen) fail(msg string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state.Error = msg
}

func (k *Kitchen) setAnalysis(result recipe.AnalysisResult) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.state.Analysis = &result
	k.state.Selected = nil
	k.state.CookingStep = 0
	k.state.View = ViewDashboard
}

func (k *Kitchen) filteredLocked() []recipe.Recipe {
	if k.state.Analysis == nil {
		return []recipe.Recipe{}
	}
	return recipe.FilterByDiet(k.state.Analysis.Recipes, k.state.DietaryFilter)
}

func (k *Kitchen) findLocked(id string) (recipe.Recipe, bool) {
	if k.state.Analysis != nil {
		if r, ok := recipe.Find(k.state.Analysis.Recipes, id); ok {
			return r, true
		}
	}
	if k.state.Selected != nil && k.state.Selected.ID == id {
		return *k.state.Selected, true
	}
	return recipe.Recipe{}, false
}

func cacheKey(imageHash, dietaryFilter string) string {
	return cacheKeyPrefix + imageHash + ":" + strings.ToLower(dietaryFilter)
}

func (k *Kitchen) cachedAnalysis(ctx context.Context, imageHash, dietaryFilter string) (recipe.AnalysisResult, bool) {
	data, err := k.store.Load(ctx, cacheKey(imageHash, dietaryFilter))
	if err != nil {
		log.WithError(err).WithField("image_hash", imageHash).Warn("failed to read analysis cache")
		return recipe.AnalysisResult{}, false
	}
	if len(data) == 0 {
		return recipe.AnalysisResult{}, false
	}
	var result recipe.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.WithError(err).WithField("image_hash", imageHash).Warn("ignoring corrupt cached analysis")
		return recipe.AnalysisResult{}, false
	}
	if len(result.Recipes) == 0 {
		return recipe.AnalysisResult{}, false
	}
	return recipe.Normalize(result), true
}

func (k *Kitchen) rememberAnalysis(ctx context.Context, imageHash, dietaryFilter string, result recipe.AnalysisResult) {
	if len(result.Recipes) == 0 {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := k.store.Save(ctx, cacheKey(imageHash, dietaryFilter), data); err != nil {
		log.WithError(err).WithField("image_hash", imageHash).Warn("failed to cache analysis")
	}
}

func (k *Kitchen) archiveImage(ctx context.Context, imageHash string, imageData []byte) {
	if k.archive == nil {
		return
	}
	path, err := k.archive.PutObject(ctx, "fridges/"+imageHash+".jpg", imageData, "image/jpeg")
	if err != nil {
		log.WithError(err).WithField("image_hash", imageHash).Warn("failed to archive fridge image")
		return
	}
	log.WithFields(log.Fields{"image_hash": imageHash, "path": path}).Debug("archived fridge image")
}

func analyzeMessage(err error) string {
	if errors.Is(err, imagebudget.ErrDecode) {
		return MsgBadImage
	}
	return MsgAnalyzeFailed
}

package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"fridgechef/internal/imagebudget"
	"fridgechef/internal/kitchen"
	"fridgechef/internal/pantry"
	"fridgechef/internal/recipe"
)

// DefaultTimeout bounds a single AI call when none is configured.
const DefaultTimeout = 60 * time.Second

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
}

// Handler handles HTTP requests.
type Handler struct {
	Kitchen *kitchen.Kitchen
	Chef    kitchen.Chef
	Timeout time.Duration
}

// NewHandler creates a new Handler. chef serves the stateless /api/gemini routes.
func NewHandler(k *kitchen.Kitchen, chef kitchen.Chef, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Handler{Kitchen: k, Chef: chef, Timeout: timeout}
}

// RegisterRoutes mounts every route on r. aiLimit guards the routes that call the AI service.
func (h *Handler) RegisterRoutes(r gin.IRouter, aiLimit gin.HandlerFunc) {
	r.GET("/state", h.GetState)
	r.POST("/reset", h.Reset)

	r.POST("/analyze", aiLimit, h.Analyze)
	r.POST("/recipes/regenerate", aiLimit, h.Regenerate)
	r.GET("/recipes", h.GetRecipes)
	r.PUT("/filter", h.SetFilter)

	r.POST("/recipes/:id/cook", h.Cook)
	r.POST("/cooking/next", h.NextStep)
	r.POST("/cooking/prev", h.PrevStep)
	r.POST("/recipes/:id/ask", aiLimit, h.Ask)
	r.POST("/recipes/:id/missing", h.AddMissing)

	r.GET("/pantry", h.GetPantry)
	r.POST("/pantry", h.AddPantryItem)
	r.DELETE("/pantry/:item", h.RemovePantryItem)
	r.GET("/pantry/export", h.ExportPantry)
	r.GET("/pantry/export.pdf", h.ExportPantryPDF)

	r.GET("/profiles", h.GetProfiles)
	r.PUT("/profiles/:slot", h.SaveProfile)
	r.PATCH("/profiles/:slot", h.RenameProfile)
	r.DELETE("/profiles/:slot", h.DeleteProfile)
	r.POST("/profiles/:slot/load", h.LoadProfile)

	gemini := r.Group("/api/gemini", aiLimit)
	gemini.POST("/analyze-fridge", h.AnalyzeFridge)
	gemini.POST("/suggest-recipes", h.SuggestRecipes)
	gemini.POST("/ask-chef", h.AskChef)
}

// statusFor maps an error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	case errors.Is(err, kitchen.ErrRecipeNotFound), errors.Is(err, pantry.ErrProfileNotFound):
		return http.StatusNotFound
	case errors.Is(err, imagebudget.ErrDecode),
		errors.Is(err, kitchen.ErrNoAnalysis),
		errors.Is(err, kitchen.ErrNotCooking),
		errors.Is(err, kitchen.ErrEmptyQuestion),
		errors.Is(err, pantry.ErrInvalidSlot):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the user-facing message for err. fallback, when set,
// replaces the generic message of server errors.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	msg := kitchen.UserMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		msg = fallback
	}

	entry := log.WithError(err).WithFields(log.Fields{"path": c.FullPath(), "status": status})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Warn("request rejected")
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// bindOptionalJSON binds the body into v, allowing an empty body.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, fmt.Sprintf("invalid request body: %s", err.Error()))
		return false
	}
	return true
}

func (h *Handler) aiContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.Timeout)
}

// GetState returns the whole application state.
func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Kitchen.Snapshot())
}

// Reset goes back to the camera.
func (h *Handler) Reset(c *gin.Context) {
	h.Kitchen.Reset()
	c.JSON(http.StatusOK, h.Kitchen.Snapshot())
}

type analyzeRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Filter      string `json:"filter"`
}

// Analyze takes a fridge photo, either as a multipart "file" or as JSON
// {"imageBase64"}, and returns the analysis.
func (h *Handler) Analyze(c *gin.Context) {
	var imageBase64 string

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			badRequest(c, fmt.Sprintf("get form err: %s", err.Error()))
			return
		}
		extension := strings.ToLower(filepath.Ext(file.Filename))
		if !allowedExtensions[extension] {
			badRequest(c, "Invalid file type. Only JPEG, JPG, and PNG images are allowed.")
			return
		}
		imageData, err := readFormFile(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("read image err: %s", err.Error())})
			return
		}
		imageBase64 = base64.StdEncoding.EncodeToString(imageData)
	} else {
		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "imageBase64 is required")
			return
		}
		imageBase64 = req.ImageBase64
		if strings.TrimSpace(req.Filter) != "" {
			h.Kitchen.SetDietaryFilter(req.Filter)
		}
	}
	if strings.TrimSpace(imageBase64) == "" {
		badRequest(c, "imageBase64 is required")
		return
	}

	ctx, cancel := h.aiContext(c)
	defer cancel()

	result, err := h.Kitchen.Analyze(ctx, imageBase64)
	if err != nil {
		respondError(c, err, kitchen.MsgAnalyzeFailed)
		return
	}
	c.JSON(http.StatusOK, result)
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}

type regenerateRequest struct {
	Ingredients []string `json:"ingredients"`
	Filter      string   `json:"filter"`
}

// Regenerate replaces the recipes of the current analysis.
func (h *Handler) Regenerate(c *gin.Context) {
	var req regenerateRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	ctx, cancel := h.aiContext(c)
	defer cancel()

	recipes, err := h.Kitchen.Regenerate(ctx, req.Ingredients, req.Filter)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// GetRecipes lists the recipes matching the dietary filter. ?filter= overrides
// the current one without changing it.
func (h *Handler) GetRecipes(c *gin.Context) {
	filter, ok := c.GetQuery("filter")
	if !ok {
		c.JSON(http.StatusOK, gin.H{"filter": h.Kitchen.DietaryFilter(), "recipes": h.Kitchen.FilteredRecipes()})
		return
	}

	recipes := []recipe.Recipe{}
	if analysis := h.Kitchen.Snapshot().Analysis; analysis != nil {
		recipes = recipe.FilterByDiet(analysis.Recipes, filter)
	}
	c.JSON(http.StatusOK, gin.H{"filter": filter, "recipes": recipes})
}

type filterRequest struct {
	Filter string `json:"filter"`
}

// SetFilter changes the dietary filter.
func (h *Handler) SetFilter(c *gin.Context) {
	var req filterRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	recipes := h.Kitchen.SetDietaryFilter(req.Filter)
	c.JSON(http.StatusOK, gin.H{"filter": h.Kitchen.DietaryFilter(), "recipes": recipes})
}

// Cook enters cooking mode on a recipe.
func (h *Handler) Cook(c *gin.Context) {
	r, err := h.Kitchen.SelectRecipe(c.Param("id"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": r, "step": 0})
}

// NextStep moves to the next cooking step.
func (h *Handler) NextStep(c *gin.Context) {
	h.moveStep(c, 1)
}

// PrevStep moves to the previous cooking step.
func (h *Handler) PrevStep(c *gin.Context) {
	h.moveStep(c, -1)
}

func (h *Handler) moveStep(c *gin.Context, delta int) {
	step, err := h.Kitchen.MoveStep(delta)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"step": step})
}

type askRequest struct {
	Question string `json:"question"`
}

// Ask sends a question about a recipe to the chef.
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	ctx, cancel := h.aiContext(c)
	defer cancel()

	answer, err := h.Kitchen.Ask(ctx, c.Param("id"), req.Question)
	if err != nil {
		respondError(c, err, kitchen.MsgAskFailed)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": answer})
}

// AddMissing puts the missing ingredients of a recipe on the shopping list.
func (h *Handler) AddMissing(c *gin.Context) {
	added, err := h.Kitchen.AddMissingToShoppingList(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": added, "items": h.Kitchen.ShoppingList()})
}

// GetPantry returns the shopping list.
func (h *Handler) GetPantry(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"items": h.Kitchen.ShoppingList()})
}

type pantryRequest struct {
	Item string `json:"item"`
}

// AddPantryItem adds an item to the shopping list.
func (h *Handler) AddPantryItem(c *gin.Context) {
	var req pantryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Item) == "" {
		badRequest(c, "item is required")
		return
	}

	added, err := h.Kitchen.AddToShoppingList(c.Request.Context(), req.Item)
	if err != nil {
		respondError(c, err, "")
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"added": added, "items": h.Kitchen.ShoppingList()})
}

// RemovePantryItem removes an item from the shopping list.
func (h *Handler) RemovePantryItem(c *gin.Context) {
	removed, err := h.Kitchen.RemoveFromShoppingList(c.Request.Context(), c.Param("item"))
	if err != nil {
		respondError(c, err, "")
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item is not on the list."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": h.Kitchen.ShoppingList()})
}

// ExportPantry downloads the shopping list as a text checklist.
func (h *Handler) ExportPantry(c *gin.Context) {
	c.Header("Content-Disposition", `attachment; filename="shopping-list.txt"`)
	c.String(http.StatusOK, h.Kitchen.ShoppingListText())
}

// ExportPantryPDF downloads the shopping list as a PDF.
func (h *Handler) ExportPantryPDF(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.Kitchen.WriteShoppingListPDF(&buf); err != nil {
		respondError(c, err, "")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="shopping-list.pdf"`)
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// GetProfiles lists the saved fridge profiles.
func (h *Handler) GetProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": h.Kitchen.Profiles()})
}

func slotParam(c *gin.Context) (int, bool) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil || !pantry.ValidSlot(slot) {
		badRequest(c, kitchen.MsgInvalidSlot)
		return 0, false
	}
	return slot, true
}

type profileRequest struct {
	Name string `json:"name"`
}

// SaveProfile saves the current analysis into a slot.
func (h *Handler) SaveProfile(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	var req profileRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	profile, err := h.Kitchen.SaveProfile(c.Request.Context(), slot, req.Name)
	if errors.Is(err, kitchen.ErrNoAnalysis) {
		badRequest(c, kitchen.MsgNoFridgeData)
		return
	}
	if err != nil {
		respondError(c, err, "")
		return
	}
	log.WithFields(log.Fields{"slot": slot, "name": profile.Name}).Info("fridge profile saved")
	c.JSON(http.StatusOK, profile)
}

// RenameProfile renames the profile in a slot.
func (h *Handler) RenameProfile(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}

	profile, err := h.Kitchen.RenameProfile(c.Request.Context(), slot, req.Name)
	if err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// DeleteProfile clears a slot.
func (h *Handler) DeleteProfile(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}

	deleted, err := h.Kitchen.DeleteProfile(c.Request.Context(), slot)
	if err != nil {
		respondError(c, err, "")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": kitchen.MsgEmptySlot})
		return
	}
	c.Status(http.StatusNoContent)
}

// LoadProfile makes a saved profile the current analysis.
func (h *Handler) LoadProfile(c *gin.Context) {
	slot, ok := slotParam(c)
	if !ok {
		return
	}

	if _, err := h.Kitchen.LoadProfile(slot); err != nil {
		respondError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, h.Kitchen.Snapshot())
}

type analyzeFridgeRequest struct {
	ImageBase64 string `json:"imageBase64"`
	Filter      string `json:"filter"`
}

// AnalyzeFridge is the stateless analysis endpoint.
func (h *Handler) AnalyzeFridge(c *gin.Context) {
	var req analyzeFridgeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ImageBase64) == "" {
		badRequest(c, "imageBase64 is required")
		return
	}

	ctx, cancel := h.aiContext(c)
	defer cancel()

	result, err := h.Chef.AnalyzeFridge(ctx, imagebudget.StripDataURI(req.ImageBase64), filterOrNone(req.Filter))
	if err != nil {
		h.chefFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type suggestRecipesRequest struct {
	Ingredients []string `json:"ingredients"`
	Filter      string   `json:"filter"`
}

// SuggestRecipes is the stateless recipe suggestion endpoint.
func (h *Handler) SuggestRecipes(c *gin.Context) {
	var req suggestRecipesRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Ingredients == nil {
		badRequest(c, "ingredients must be an array")
		return
	}

	ctx, cancel := h.aiContext(c)
	defer cancel()

	recipes, err := h.Chef.SuggestRecipes(ctx, req.Ingredients, filterOrNone(req.Filter))
	if err != nil {
		h.chefFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipe.NormalizeRecipes(recipes)})
}

type askChefRequest struct {
	RecipeContext struct {
		Title string `json:"title"`
	} `json:"recipeContext"`
	UserQuestion string `json:"userQuestion"`
}

// AskChef is the stateless question endpoint.
func (h *Handler) AskChef(c *gin.Context) {
	var req askChefRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserQuestion) == "" {
		badRequest(c, "userQuestion is required")
		return
	}

	ctx, cancel := h.aiContext(c)
	defer cancel()

	answer, err := h.Chef.AskChef(ctx, req.RecipeContext.Title, req.UserQuestion)
	if err != nil {
		h.chefFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": answer})
}

func (h *Handler) chefFailed(c *gin.Context, err error) {
	log.WithError(err).WithField("path", c.FullPath()).Error("chef request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func filterOrNone(filter string) string {
	if filter = strings.TrimSpace(filter); filter == "" {
		return recipe.NoFilter
	}
	return filter
}

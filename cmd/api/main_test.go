package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgechef/internal/api"
	"fridgechef/internal/config"
	"fridgechef/internal/kitchen"
	"fridgechef/internal/pantry"
	"fridgechef/internal/platform/blob"
	"fridgechef/internal/platform/localllm"
	"fridgechef/internal/recipe"
)

// mockChef is a mock of the AI chef.
type mockChef struct {
	returnError error
}

func (m *mockChef) AnalyzeFridge(ctx context.Context, imageBase64, dietaryFilter string) (recipe.AnalysisResult, error) {
	if m.returnError != nil {
		return recipe.AnalysisResult{}, m.returnError
	}
	return recipe.AnalysisResult{
		DetectedIngredients: []string{"eggs"},
		Recipes:             []recipe.Recipe{{ID: "r1", Title: "Shakshuka (spicy)", MissingIngredients: []string{"Tomatoes"}}},
	}, nil
}

func (m *mockChef) SuggestRecipes(ctx context.Context, ingredients []string, dietaryFilter string) ([]recipe.Recipe, error) {
	return nil, m.returnError
}

func (m *mockChef) AskChef(ctx context.Context, recipeTitle, question string) (string, error) {
	return "Yes.", m.returnError
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Provider = config.ProviderLocal
	cfg.ImageDir = t.TempDir()
	cfg.RateLimitRPS = 0
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	archive, err := newArchive(context.Background(), cfg)
	require.NoError(t, err)
	chef := &mockChef{}
	k := kitchen.New(context.Background(), kitchen.Config{Chef: chef, Store: pantry.NewMemoryStore(), Archive: archive})
	return setupRouter(cfg, api.NewHandler(k, chef, 0))
}

func TestAnalyzeArchivesAndServesImage(t *testing.T) {
	cfg := testConfig(t)
	r := newTestServer(t, cfg)

	body, _ := json.Marshal(gin.H{"imageBase64": "QUJD"})
	req, _ := http.NewRequest(http.MethodPost, "/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result recipe.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "Shakshuka", result.Recipes[0].Title)

	imageHash := kitchen.GenerateImageHash([]byte("ABC"))
	_, err := os.Stat(filepath.Join(cfg.ImageDir, "fridges", imageHash+".jpg"))
	assert.NoError(t, err)

	req, _ = http.NewRequest(http.MethodGet, "/images/fridges/"+imageHash+".jpg", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ABC", w.Body.String())
}

func TestCORS(t *testing.T) {
	cfg := testConfig(t)
	cfg.CORSAllowedOrigins = []string{"http://localhost:8081"}
	r := newTestServer(t, cfg)

	req, _ := http.NewRequest(http.MethodOptions, "/pantry", nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:8081", w.Header().Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestNoArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.BlobMode = config.BlobModeNone

	archive, err := newArchive(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, archive)

	r := newTestServer(t, cfg)
	req, _ := http.NewRequest(http.MethodGet, "/images/anything.jpg", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFactories(t *testing.T) {
	cfg := testConfig(t)

	archive, err := newArchive(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &blob.LocalStore{}, archive)

	store, err := newStore(cfg)
	require.NoError(t, err)
	assert.IsType(t, &pantry.MemoryStore{}, store)

	chef, err := newChef(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &localllm.Client{}, chef)
}

func TestSetupLogging(t *testing.T) {
	cfg := testConfig(t)

	cfg.LogLevel = "DEBUG"
	setupLogging(cfg)
	assert.Equal(t, log.DebugLevel, log.Log.(*log.Logger).Level)

	cfg.LogLevel = "chatty"
	cfg.LogFormat = "json"
	setupLogging(cfg)
	assert.Equal(t, log.InfoLevel, log.Log.(*log.Logger).Level)
}

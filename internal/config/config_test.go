package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "VITE_GEMINI_API_KEY", "GEMINI_MODEL", "DATABASE_URL",
		"AI_PROVIDER", "LOCAL_LLM_URL", "LOCAL_LLM_MODEL", "LOG_LEVEL", "LOG_FORMAT", "BLOB_MODE",
		"IMAGE_DIR", "S3_ENDPOINT", "S3_REGION", "S3_BUCKET", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY",
		"PORT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "AI_TIMEOUT_SECONDS", "IMAGE_MAX_BYTES",
		"CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"gemini_api_key": "from-file",
		"DATABASE_URL": "postgres://file",
		"port": 9000,
		"rate_limit_rps": 2.5
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.GeminiAPIKey)
	assert.Equal(t, "postgres://file", cfg.DatabaseURL)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, 60*time.Second, cfg.AITimeout())

	t.Setenv("VITE_GEMINI_API_KEY", "vite")
	t.Setenv("GOOGLE_API_KEY", "google")
	t.Setenv("PORT", "7070")
	t.Setenv("AI_TIMEOUT_SECONDS", "15")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.GeminiAPIKey)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.AITimeout())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)

	t.Setenv("GEMINI_API_KEY", "gemini")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.GeminiAPIKey)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AI_PROVIDER", "LOCAL")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, cfg.Provider)
	assert.Equal(t, BlobModeLocal, cfg.BlobMode)
	assert.Equal(t, 900*1024, cfg.ImageMaxBytes)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeConfig(t, `{"port": "eighty"`))
	assert.Error(t, err)

	// Gemini is the default provider and needs a key
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("BLOB_MODE", "s3")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("S3_BUCKET", "fridges")
	t.Setenv("S3_ACCESS_KEY_ID", "id")
	t.Setenv("S3_SECRET_ACCESS_KEY", "secret")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "fridges", cfg.S3.Bucket)

	t.Setenv("AI_PROVIDER", "openai")
	_, err = Load("")
	assert.Error(t, err)
}

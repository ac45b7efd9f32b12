package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderLocal  = "local"

	BlobModeNone  = "none"
	BlobModeLocal = "local"
	BlobModeS3    = "s3"
)

// S3Config holds the settings of an S3-compatible bucket.
type S3Config struct {
	Endpoint        string `json:"endpoint"`
	Region          string `json:"region"`
	Bucket          string `json:"bucket"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// Config represents the application configuration.
type Config struct {
	GeminiAPIKey string `json:"gemini_api_key"`
	GeminiModel  string `json:"gemini_model"`
	DatabaseURL  string `json:"DATABASE_URL"`

	Provider      string `json:"provider"` // gemini | local
	LocalLLMURL   string `json:"local_llm_url"`
	LocalLLMModel string `json:"local_llm_model"`

	Port               int      `json:"port"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins"`
	LogLevel           string   `json:"log_level"`
	LogFormat          string   `json:"log_format"` // text | json

	BlobMode string   `json:"blob_mode"` // none | local | s3
	ImageDir string   `json:"image_dir"`
	S3       S3Config `json:"s3"`

	RateLimitRPS     float64 `json:"rate_limit_rps"`
	RateLimitBurst   int     `json:"rate_limit_burst"`
	AITimeoutSeconds int     `json:"ai_timeout_seconds"`
	ImageMaxBytes    int     `json:"image_max_bytes"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		GeminiModel:        "gemini-2.5-flash",
		Provider:           ProviderGemini,
		Port:               8080,
		CORSAllowedOrigins: []string{"http://localhost:8081", "http://localhost:3000"},
		LogLevel:           "info",
		LogFormat:          "text",
		BlobMode:           BlobModeLocal,
		ImageDir:           "images",
		RateLimitRPS:       1,
		RateLimitBurst:     5,
		AITimeoutSeconds:   60,
		ImageMaxBytes:      900 * 1024,
	}
}

// Load reads the configuration from the JSON file at path, if it exists, and
// then from the environment. Environment variables win.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		configData, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		default:
			if err := json.Unmarshal(configData, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "VITE_GEMINI_API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			c.GeminiAPIKey = v
			break
		}
	}

	envString("GEMINI_MODEL", &c.GeminiModel)
	envString("DATABASE_URL", &c.DatabaseURL)
	envString("AI_PROVIDER", &c.Provider)
	envString("LOCAL_LLM_URL", &c.LocalLLMURL)
	envString("LOCAL_LLM_MODEL", &c.LocalLLMModel)
	envString("LOG_LEVEL", &c.LogLevel)
	envString("LOG_FORMAT", &c.LogFormat)
	envString("BLOB_MODE", &c.BlobMode)
	envString("IMAGE_DIR", &c.ImageDir)
	envString("S3_ENDPOINT", &c.S3.Endpoint)
	envString("S3_REGION", &c.S3.Region)
	envString("S3_BUCKET", &c.S3.Bucket)
	envString("S3_ACCESS_KEY_ID", &c.S3.AccessKeyID)
	envString("S3_SECRET_ACCESS_KEY", &c.S3.SecretAccessKey)

	envInt("PORT", &c.Port)
	envInt("RATE_LIMIT_BURST", &c.RateLimitBurst)
	envInt("AI_TIMEOUT_SECONDS", &c.AITimeoutSeconds)
	envInt("IMAGE_MAX_BYTES", &c.ImageMaxBytes)

	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_RPS")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimitRPS = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		c.CORSAllowedOrigins = parseList(v)
	}

	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.BlobMode = strings.ToLower(strings.TrimSpace(c.BlobMode))
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("gemini api key is missing: set GEMINI_API_KEY")
		}
	case ProviderLocal:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	switch c.BlobMode {
	case BlobModeNone, BlobModeLocal:
	case BlobModeS3:
		if c.S3.Bucket == "" || c.S3.AccessKeyID == "" || c.S3.SecretAccessKey == "" {
			return fmt.Errorf("blob mode s3 needs S3_BUCKET, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY")
		}
	default:
		return fmt.Errorf("unknown blob mode %q", c.BlobMode)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// AITimeout bounds a single call to the AI service.
func (c *Config) AITimeout() time.Duration {
	if c.AITimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AITimeoutSeconds) * time.Second
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return
	}
	if v, err := strconv.Atoi(s); err == nil {
		*dst = v
	}
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

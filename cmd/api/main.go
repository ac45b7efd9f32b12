package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"fridgechef/internal/api"
	"fridgechef/internal/config"
	"fridgechef/internal/imagebudget"
	"fridgechef/internal/kitchen"
	"fridgechef/internal/pantry"
	"fridgechef/internal/platform/blob"
	"fridgechef/internal/platform/gemini"
	"fridgechef/internal/platform/localllm"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	cfg, err := config.Load("config.json")
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	setupLogging(cfg)

	chef, err := newChef(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("error creating chef client")
	}

	store, err := newStore(cfg)
	if err != nil {
		log.WithError(err).Fatal("error creating state store")
	}

	archive, err := newArchive(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("error creating image archive")
	}

	k := kitchen.New(ctx, kitchen.Config{
		Chef:    chef,
		Store:   store,
		Archive: archive,
		Budget:  imagebudget.Options{MaxBytes: cfg.ImageMaxBytes},
	})
	handler := api.NewHandler(k, chef, cfg.AITimeout())

	r := setupRouter(cfg, handler)
	log.WithFields(log.Fields{"addr": cfg.Addr(), "provider": cfg.Provider, "blob_mode": cfg.BlobMode}).Info("listening")
	if err := r.Run(cfg.Addr()); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func setupLogging(cfg *config.Config) {
	if strings.EqualFold(cfg.LogFormat, "json") {
		log.SetHandler(jsonhandler.New(os.Stderr))
	} else {
		log.SetHandler(text.New(os.Stderr))
	}

	level, err := log.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		log.WithError(err).Warnf("unknown log level %q, using info", cfg.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func newChef(ctx context.Context, cfg *config.Config) (kitchen.Chef, error) {
	if cfg.Provider == config.ProviderLocal {
		return localllm.NewClient(cfg.LocalLLMURL, cfg.LocalLLMModel), nil
	}
	return gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
}

// newStore keeps state in Postgres when DATABASE_URL is set, in memory otherwise.
func newStore(cfg *config.Config) (pantry.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL is not set, state will not survive a restart")
		return pantry.NewMemoryStore(), nil
	}
	return pantry.NewPostgresStore(cfg.DatabaseURL)
}

func newArchive(ctx context.Context, cfg *config.Config) (kitchen.ImageArchive, error) {
	switch cfg.BlobMode {
	case config.BlobModeS3:
		return blob.NewS3Store(ctx, cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
	case config.BlobModeLocal:
		return blob.NewLocalStore(cfg.ImageDir, "/images"), nil
	default:
		return nil, nil
	}
}

func setupRouter(cfg *config.Config, handler *api.Handler) *gin.Engine {
	r := gin.Default()

	// Configure CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handler.RegisterRoutes(r, api.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	if cfg.BlobMode == config.BlobModeLocal {
		r.Static("/images", cfg.ImageDir)
	}
	return r
}

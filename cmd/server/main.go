package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/kangban/companion/adapters"
	"github.com/kangban/companion/adapters/llm"
	"github.com/kangban/companion/adapters/mongo"
	"github.com/kangban/companion/adapters/tts"
	"github.com/kangban/companion/domain/repositories"
	"github.com/kangban/companion/internal/api"
	"github.com/kangban/companion/internal/auth"
	"github.com/kangban/companion/internal/config"
	"github.com/kangban/companion/internal/settings"
	"github.com/kangban/companion/internal/websocket"
	"github.com/kangban/companion/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	auth.SetSecret(cfg.JWTSecret)

	// Caregiver-editable settings document
	store := settings.NewStore(cfg.SettingsFile, logger)

	// Gemini is optional; the default provider rebuilds its client from
	// the settings document per request.
	var gemini repositories.LargeLanguageModel
	if cfg.LLMProvider == "gemini" {
		gemini, err = llm.NewGeminiLLM(logger)
		if err != nil {
			logger.Fatal("Failed to initialize Gemini", zap.Error(err))
		}
	}

	// Speech synthesis is optional; without it every reply is text-only.
	var synthesizer repositories.TextToSpeech
	if cfg.TTSAPIKey != "" {
		synthesizer, err = tts.NewElevenLabsTTS(tts.ElevenLabsConfig{
			APIKey:  cfg.TTSAPIKey,
			VoiceID: cfg.TTSVoiceID,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to initialize speech synthesis", zap.Error(err))
		}
	} else {
		logger.Warn("ELEVEN_LABS_API_KEY not set, replies will be text-only")
	}

	// Interaction history: Mongo when configured, in-memory otherwise.
	var interactions repositories.InteractionRepository
	if cfg.MongoURI != "" {
		client, err := mongo.NewClient(cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Close(ctx)
		}()
		interactions = mongo.NewInteractionRepository(client.Database)
	} else {
		logger.Info("MONGODB_URI not set, keeping interaction history in memory")
		interactions = adapters.NewMemoryInteractionRepository()
	}

	replies := usecase.NewReplyService(cfg.LLMProvider, cfg.LLMBaseURL, cfg.LLMModel, gemini, logger)
	pipeline := usecase.NewPipelineService(store, replies, synthesizer, interactions, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize WebSocket hub for streaming elder devices
	hub := websocket.NewHub(pipeline, logger)
	go hub.Run()

	// Initialize API routes
	api.InitRoutes(e, api.Deps{
		Hub:            hub,
		Pipeline:       pipeline,
		Settings:       store,
		Interactions:   interactions,
		MetricsEnabled: cfg.MetricsEnabled,
		Logger:         logger,
	})

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Companion server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

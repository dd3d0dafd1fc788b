package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emotionink/engine/internal/config"
	"github.com/emotionink/engine/internal/handlers"
	"github.com/emotionink/engine/internal/logger"
	"github.com/emotionink/engine/internal/middleware"
	"github.com/emotionink/engine/internal/reconciler"
	"github.com/emotionink/engine/internal/services"
	"github.com/emotionink/engine/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting EmotionInk Engine API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"gateway_provider", cfg.GatewayProvider)

	var gateway services.Gateway
	switch strings.ToLower(cfg.GatewayProvider) {
	case config.ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			log.Error("Gemini API key is required when using gemini provider")
			os.Exit(1)
		}
		gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 30*time.Second)
		gateway, err = services.NewGeminiGateway(gatewayCtx, cfg.GeminiAPIKey,
			cfg.StoryModel, cfg.ImageModel, cfg.SpeechModel, cfg.SpeechVoice, log)
		gatewayCancel()
		if err != nil {
			log.Error("Failed to initialize Gemini gateway", "error", err)
			os.Exit(1)
		}
		log.Info("Using Gemini gateway provider")
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			log.Error("OpenAI API key is required when using openai provider")
			os.Exit(1)
		}
		gateway = services.NewOpenAIGateway(cfg.OpenAIAPIKey,
			cfg.StoryModel, cfg.ImageModel, cfg.SpeechModel, cfg.SpeechVoice, log)
		log.Info("Using OpenAI gateway provider")
	default:
		log.Error("Invalid gateway provider specified", "provider", cfg.GatewayProvider,
			"supported", []string{config.ProviderGemini, config.ProviderOpenAI})
		os.Exit(1)
	}

	store := storage.NewRedisStorage(cfg.RedisURL, time.Duration(cfg.SessionTTL)*time.Hour, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := store.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}

	rec := reconciler.New(store, gateway, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, log)
	mux.Handle("/health", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	sessionHandler := handlers.NewSessionHandler(rec, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	demoHandler := handlers.NewDemoHandler(rec, log)
	mux.Handle("/v1/demo", demoHandler)
	mux.Handle("/v1/demo/", demoHandler)

	handler := middleware.Logger(log, mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout is left unset: interaction turns can hold the
		// connection for the full gateway round trip.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}

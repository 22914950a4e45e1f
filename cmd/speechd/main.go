package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/api"
	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/batch"
	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/config"
	"github.com/pierowman/Azure-Speech-to-Text-Real-Time-and-Batch-Diarization-sub000/internal/speech"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("speechd starting",
		"port", cfg.Port,
		"region", cfg.SpeechRegion,
		"default_locale", cfg.DefaultLocale,
		"rate_limit_per_min", cfg.RateLimitPerMin,
		"http_timeout", cfg.HTTPTimeout,
	)

	// The subscription key and region name the upstream endpoints; nothing
	// works without them.
	if cfg.SpeechKey == "" {
		slog.Error("AZURE_SPEECH_KEY is required")
		os.Exit(1)
	}
	if cfg.SpeechRegion == "" {
		slog.Error("AZURE_SPEECH_REGION is required")
		os.Exit(1)
	}

	client := speech.NewClient(cfg.SpeechKey, cfg.SpeechRegion, cfg.HTTPTimeout, cfg.LocalesCacheTTL)
	aggregator := batch.NewService(client)

	srv := api.NewServer(client, aggregator, api.Config{
		Port:               cfg.Port,
		RateLimitPerMin:    cfg.RateLimitPerMin,
		DefaultLocale:      cfg.DefaultLocale,
		DefaultMinSpeakers: cfg.DefaultMinSpeakers,
		DefaultMaxSpeakers: cfg.DefaultMaxSpeakers,
	})
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("speechd ready", "port", cfg.Port)

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("shutting down", "signal", sig)
	slog.Info("speechd stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

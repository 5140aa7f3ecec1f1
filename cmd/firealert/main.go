package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"firealert/internal/config"
	"firealert/internal/logger"
	"firealert/internal/processor"
	"firealert/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info", "json")
		logger.Logger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	artifact, err := storage.NewFileStore(cfg.Scoring.ModelPath).Load(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Scoring.ModelPath).Msg("failed to load model artifact")
	}
	model, err := artifact.Model(cfg.Scoring.Threshold, cfg.Scoring.ImputeMode)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Scoring.ModelPath).Msg("invalid model artifact")
	}

	p, err := processor.New(cfg, model)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create processor")
	}

	if err := p.Run(ctx); err != nil {
		log.Error().Err(err).Msg("processor exited")
		os.Exit(1)
	}
	log.Info().Msg("exited")
}

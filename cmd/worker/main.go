// Command worker is the translation pipeline's entry point: it loads
// configuration, wires every component (C1-C12), and drives jobs popped
// off the Redis task queue until it receives a shutdown signal.
//
// Grounded on the teacher's cmd/worker/main.go bootstrap/lifecycle shape:
// env loading via godotenv, sequential dependency construction with
// fail-fast logging, and a signal-driven graceful shutdown.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JAaron93/phenomenallayout/internal/config"
	"github.com/JAaron93/phenomenallayout/internal/layout"
	"github.com/JAaron93/phenomenallayout/internal/logging"
	"github.com/JAaron93/phenomenallayout/internal/neologism"
	"github.com/JAaron93/phenomenallayout/internal/ocr"
	"github.com/JAaron93/phenomenallayout/internal/orchestrator"
	"github.com/JAaron93/phenomenallayout/internal/pdfdoc"
	"github.com/JAaron93/phenomenallayout/internal/queue"
	"github.com/JAaron93/phenomenallayout/internal/storage"
	"github.com/JAaron93/phenomenallayout/internal/translate"
	"github.com/JAaron93/phenomenallayout/internal/userchoice"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.NewLoggerAt("worker", cfg.LogLevel)
	logger.Info("translation worker starting", "concurrency", cfg.WorkerConcurrency, "dpi", cfg.PDFDPI)

	var mirror orchestrator.PostgresMirror
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pg.Close()
		mirror = pg
		logger.Info("postgres mirror connected")
	} else {
		logger.Warn("DATABASE_URL not set; job status will not survive a restart")
	}

	choiceStore, err := userchoice.NewStore(cfg.UserChoiceDBPath, logger)
	if err != nil {
		log.Fatalf("failed to open user-choice store: %v", err)
	}
	defer choiceStore.Close()
	logger.Info("user-choice store opened", "path", cfg.UserChoiceDBPath)

	tempDir := os.TempDir()
	rasterizer := pdfdoc.NewRasterizer(tempDir)

	ocrClient := ocr.NewClient(
		cfg.OCREndpoint, cfg.OCRToken,
		time.Duration(cfg.OCRTimeoutSec)*time.Second, cfg.OCRMaxRetries,
		logger,
	)

	translateClient := translate.NewClient(
		cfg.TranslationEndpoint, cfg.TranslationAPIKey,
		time.Duration(cfg.OCRTimeoutSec)*time.Second, cfg.OCRMaxRetries,
		logger,
		translate.WithConcurrency(int64(cfg.TranslationConcurrency)),
		translate.WithRateLimit(cfg.TranslationRateLimitRPS, cfg.TranslationConcurrency),
	)

	tagger := neologism.NewCapitalizedCompoundTagger()

	layoutCfg := layout.Config{
		FontScaleMin:       cfg.LayoutFontScaleMin,
		FontScaleMax:       cfg.LayoutFontScaleMax,
		MaxBBoxExpansion:   cfg.LayoutMaxBBoxExpansion,
		AverageCharWidthEM: cfg.AverageCharWidthEM,
		LineHeightFactor:   cfg.LineHeightFactor,
	}

	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		outputDir = "./output"
	}

	orch := orchestrator.New(orchestrator.Config{
		Logger:          logger,
		Rasterizer:      rasterizer,
		OCRClient:       ocrClient,
		TranslateClient: translateClient,
		Tagger:          tagger,
		Choices:         choiceStore,
		Mirror:          mirror,
		DPI:             cfg.PDFDPI,
		OutputDir:       outputDir,
		RetentionHours:  cfg.JobRetentionHours,
		LayoutConfig:    layoutCfg,
	})

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()
	orch.StartSweeper(rootCtx)
	logger.Info("job sweeper started", "retentionHours", cfg.JobRetentionHours)

	consumer, err := queue.NewConsumer(queue.Config{
		RedisURL:          cfg.RedisURL,
		QueueName:         "translate",
		Concurrency:       cfg.WorkerConcurrency,
		ProcessingTimeout: time.Duration(cfg.OCRTimeoutSec*4) * time.Second,
	}, orch, logger)
	if err != nil {
		log.Fatalf("failed to initialize queue consumer: %v", err)
	}

	if err := consumer.Start(rootCtx); err != nil {
		log.Fatalf("failed to start queue consumer: %v", err)
	}
	logger.Info("queue consumer started", "concurrency", cfg.WorkerConcurrency)

	logger.Info("translation worker ready, waiting for jobs")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigChan
	logger.Info("received shutdown signal", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := consumer.Stop(shutdownCtx); err != nil {
		logger.Error("error stopping queue consumer", "error", err)
	} else {
		logger.Info("queue consumer stopped")
	}

	rootCancel()
	logger.Info("shutdown complete")
}

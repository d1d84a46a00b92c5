package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/camden-git/imagecropper/config"
	"github.com/camden-git/imagecropper/database"
	"github.com/camden-git/imagecropper/handlers"
	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/repository"
	"github.com/camden-git/imagecropper/services"
	"github.com/camden-git/imagecropper/workers"
)

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Err(err).Msg("no .env file loaded")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("failed to create database directory")
	}
	store, err := media.NewLocalStorage(cfg.ImageRoot, cfg.MaxWidth)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize image store")
	}

	gormDB, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get database handle")
	}
	defer sqlDB.Close()

	imageRepo := repository.NewImageRepository(gormDB)

	// the local pool always runs the tasks; with kafka it is fed by the
	// consumer group instead of by the services directly
	processor := workers.NewTaskProcessor(cfg.TaskQueueSize)
	var queue services.TaskQueue = processor
	var kafkaQueue *workers.KafkaQueue
	if cfg.TaskQueue == config.TaskQueueKafka {
		kafkaQueue = workers.NewKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		queue = kafkaQueue
	}

	sourceOpts := services.SourceOptions{
		MaxWidth:       cfg.MaxWidth,
		DefaultQuality: cfg.DefaultJPEGQuality,
	}
	ingestor := services.NewIngestor(imageRepo, store, queue, &http.Client{Timeout: cfg.FetchTimeout}, services.IngestOptions{
		UserAgent:      services.UserAgent(cfg.ImageURL),
		MaxSourceBytes: cfg.MaxSourceBytes,
		Source:         sourceOpts,
	})
	optimizer := services.NewOptimizer(imageRepo, store, media.QualitySettings{
		Default:  cfg.DefaultJPEGQuality,
		Min:      cfg.JPEGQualityMin,
		Max:      cfg.JPEGQualityMax,
		MaxError: cfg.JPEGMaxError,
		MaxArea:  cfg.QualitySearchMaxArea,
	})
	renderer := services.NewRenderer(store, services.RendererOptions{
		MaxWidth:       cfg.MaxWidth,
		DefaultQuality: cfg.DefaultJPEGQuality,
		CacheWidths:    cfg.CacheWidths,
	})
	imageService := services.NewImageService(imageRepo, store, queue, sourceOpts)

	processor.Start(cfg.NumWorkers, workers.NewDispatcher(ingestor, optimizer).Handle)
	defer processor.Stop()

	consumerDone := make(chan struct{})
	if kafkaQueue != nil {
		go func() {
			defer close(consumerDone)
			if err := kafkaQueue.Run(ctx, processor); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("kafka consumer stopped")
			}
		}()
	} else {
		close(consumerDone)
	}

	pending, err := database.PendingImageIDs(sqlDB)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pending images")
	}
	unoptimized, err := database.UnoptimizedImageIDs(sqlDB)
	if err != nil {
		log.Error().Err(err).Msg("failed to list unoptimized images")
	}
	// a backlog larger than the queue waits for the workers, so keep it off
	// the startup path
	go func() {
		workers.Resubmit(ctx, queue, pending, services.TaskIngest)
		workers.Resubmit(ctx, queue, unoptimized, services.TaskOptimize)
	}()

	cropHandler, err := handlers.NewCropHandler(cfg, imageRepo, renderer, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize crop handler")
	}
	apiHandler := &handlers.ImageAPIHandler{Cfg: cfg, Images: imageService}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.NewRouter(cfg, cropHandler, apiHandler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("image_root", cfg.ImageRoot).Str("database", cfg.DatabasePath).
			Strs("ratios", cfg.Ratios).Str("task_queue", cfg.TaskQueue).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	<-consumerDone
	if kafkaQueue != nil {
		if err := kafkaQueue.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka queue")
		}
	}
}

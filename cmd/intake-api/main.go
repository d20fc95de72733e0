package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/voice-intake/cmd/mainconfig"
	"github.com/wolfman30/voice-intake/internal/api/router"
	"github.com/wolfman30/voice-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/voice-intake/internal/config"
	"github.com/wolfman30/voice-intake/internal/http/handlers"
	"github.com/wolfman30/voice-intake/internal/observability/metrics"
	"github.com/wolfman30/voice-intake/internal/voice"
	"github.com/wolfman30/voice-intake/pkg/logging"
)

func main() {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voice-intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"refine_provider", cfg.RefineProvider,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		awsCfg    *aws.Config
		sesClient *sesv2.Client
		deps      bootstrap.HandoffDeps
	)
	if cfg.NeedsAWS() {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		awsCfg = &loaded
		if cfg.HandoffQueueURL != "" {
			deps.SQS = sqs.NewFromConfig(loaded)
		}
		if cfg.ArchiveBucket != "" {
			deps.S3 = s3.NewFromConfig(loaded, func(o *s3.Options) {
				o.UsePathStyle = cfg.AWSEndpointOverride != ""
			})
		}
		if cfg.EmailProvider == "ses" {
			sesClient = sesv2.NewFromConfig(loaded)
		}
	}

	refiner, err := bootstrap.BuildRefiner(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build refiner", "error", err)
		os.Exit(1)
	}

	deps.Email, err = bootstrap.BuildEmailSender(cfg, sesClient, logger)
	if err != nil {
		logger.Error("failed to build email sender", "error", err)
		os.Exit(1)
	}

	deps.Redis = bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if deps.Redis != nil {
		defer deps.Redis.Close()
	}
	deps.Postgres, err = bootstrap.BuildPostgresPool(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if deps.Postgres != nil {
		defer deps.Postgres.Close()
	}
	sink, store := bootstrap.BuildHandoff(cfg, deps, logger)

	svc := voice.NewService(voice.Config{
		Refiner:         refiner,
		RefineTimeout:   cfg.RefineTimeout,
		Sink:            sink,
		Store:           store,
		Metrics:         metrics.NewIntakeMetrics(prometheus.DefaultRegisterer),
		Logger:          logger,
		DispatchBuffer:  cfg.DispatchBuffer,
		RetainFinalized: cfg.RetainFinalized,
	})

	go func() {
		if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("voice dispatcher stopped", "error", err)
		}
	}()

	if cfg.SessionJWTSecret == "" {
		logger.Warn("SESSION_JWT_SECRET not set; /v1 session routes will reject every request")
	}
	r := router.New(&router.Config{
		Logger:             logger,
		VoiceTools:         handlers.NewVoiceToolHandler(svc, logger),
		Sessions:           handlers.NewSessionHandler(svc, prometheus.DefaultGatherer, logger),
		Stream:             handlers.NewSnapshotStreamHandler(svc, cfg.CORSAllowedOrigins, logger),
		SessionJWTSecret:   cfg.SessionJWTSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RefineTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	stop()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
	"github.com/visagelab/visage-enhancement-service/internal/infra/config"
	"github.com/visagelab/visage-enhancement-service/internal/infra/email"
	"github.com/visagelab/visage-enhancement-service/internal/infra/ffmpeg"
	"github.com/visagelab/visage-enhancement-service/internal/infra/gfpgan"
	"github.com/visagelab/visage-enhancement-service/internal/infra/metrics"
	miniostorage "github.com/visagelab/visage-enhancement-service/internal/infra/minio"
	"github.com/visagelab/visage-enhancement-service/internal/infra/postgres"
	"github.com/visagelab/visage-enhancement-service/internal/infra/rabbitmq"
	"github.com/visagelab/visage-enhancement-service/internal/infra/tracing"
	"github.com/visagelab/visage-enhancement-service/internal/usecase"
	"github.com/visagelab/visage-enhancement-service/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting visage-enhancement-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		UploadBucket:   cfg.MinIOUploadBucket,
		EnhancedBucket: cfg.MinIOEnhancedBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	prober := ffmpeg.NewProber(log)
	extractor := ffmpeg.NewExtractor(cfg.FrameQuality, log)
	reconstructor := ffmpeg.NewReconstructor(cfg.VideoCodec, log)
	muxer := ffmpeg.NewMuxer(cfg.VideoCodec, cfg.AudioCodec, log)
	enhancer := gfpgan.NewAdapter(gfpgan.Config{
		BaseURL: cfg.EngineURL,
		Timeout: time.Duration(cfg.EngineTimeoutMinutes) * time.Minute,
	}, log)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc := usecase.NewEnhanceVideoUseCase(
		repo, storage, prober, extractor, enhancer, reconstructor, muxer,
		statusPub, dlqPub, notifier,
		log,
		usecase.EnhanceVideoConfig{
			TempDir:       cfg.TempDir,
			MaxRetries:    cfg.MaxRetries,
			DefaultStride: cfg.DefaultStride,
			Defaults: entity.EnhancementConfig{
				Upscale:      cfg.DefaultUpscale,
				Weight:       cfg.DefaultWeight,
				TileSize:     cfg.DefaultTileSize,
				ModelVersion: cfg.DefaultModelVersion,
			},
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQEnhanceQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("visage-enhancement-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("visage-enhancement-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}

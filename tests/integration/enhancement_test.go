package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
	"github.com/visagelab/visage-enhancement-service/internal/infra/email"
	"github.com/visagelab/visage-enhancement-service/internal/infra/ffmpeg"
	"github.com/visagelab/visage-enhancement-service/internal/infra/gfpgan"
	miniostorage "github.com/visagelab/visage-enhancement-service/internal/infra/minio"
	"github.com/visagelab/visage-enhancement-service/internal/infra/postgres"
	"github.com/visagelab/visage-enhancement-service/internal/infra/rabbitmq"
	"github.com/visagelab/visage-enhancement-service/internal/usecase"
	"github.com/visagelab/visage-enhancement-service/pkg/logger"
)

// startPassthroughEngine runs a local stand-in for the GFPGAN sidecar: it
// copies every input frame into <output>/restored_imgs, exercising the
// nested-layout probe over the real filesystem boundary.
func startPassthroughEngine(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/enhance" {
			w.WriteHeader(http.StatusOK)
			return
		}
		var req struct {
			InputDir  string `json:"input_dir"`
			OutputDir string `json:"output_dir"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		restored := filepath.Join(req.OutputDir, "restored_imgs")
		if err := os.MkdirAll(restored, 0o755); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		entries, err := os.ReadDir(req.InputDir)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if err := copyFile(filepath.Join(req.InputDir, entry.Name()), filepath.Join(restored, entry.Name())); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func TestEnhanceVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	// Run migrations
	err = postgres.RunMigrations(pgConnStr, "../../migrations")
	require.NoError(t, err)

	// Setup MinIO storage
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       minioEndpoint,
		AccessKey:      "minioadmin",
		SecretKey:      "minioadmin",
		UseSSL:         false,
		UploadBucket:   "uploads",
		EnhancedBucket: "enhanced",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	// Upload test video to MinIO
	testVideoPath := filepath.Join("..", "testdata", "test.mp4")
	if _, err := os.Stat(testVideoPath); os.IsNotExist(err) {
		t.Skip("test video not found at tests/testdata/test.mp4 - generate it with: ffmpeg -f lavfi -i testsrc=duration=2:size=64x64:rate=10 -c:v libx264 -pix_fmt yuv420p tests/testdata/test.mp4")
	}

	minioClient, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	require.NoError(t, err)

	videoKey := "testuser/test.mp4"
	_, err = minioClient.FPutObject(ctx, "uploads", videoKey, testVideoPath, miniogo.PutObjectOptions{
		ContentType: "video/mp4",
	})
	require.NoError(t, err)

	// Setup RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, "visage.video")
	require.NoError(t, err)

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, "video.enhance.dlq")

	// Setup DB pool
	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	// Local passthrough engine in place of the GFPGAN sidecar
	engine := startPassthroughEngine(t)

	// Setup use case with the real ffmpeg adapters
	log, _ := logger.New("debug")
	repo := postgres.NewJobRepository(pool)
	prober := ffmpeg.NewProber(log)
	extractor := ffmpeg.NewExtractor(2, log)
	reconstructor := ffmpeg.NewReconstructor("libx264", log)
	muxer := ffmpeg.NewMuxer("libx264", "aac", log)
	enhancer := gfpgan.NewAdapter(gfpgan.Config{BaseURL: engine.URL, Timeout: time.Minute}, log)
	notifier := email.NewSMTPNotifier("localhost", 1025, "test@test.local", log)

	uc := usecase.NewEnhanceVideoUseCase(
		repo, storage, prober, extractor, enhancer, reconstructor, muxer,
		statusPub, dlqPub, notifier,
		log,
		usecase.EnhanceVideoConfig{
			TempDir:    t.TempDir(),
			MaxRetries: 3,
			Defaults:   entity.EnhancementConfig{Upscale: 2, Weight: 0.5, TileSize: 400, ModelVersion: "1.3"},
		},
	)

	// Setup consumer
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       "video.enhance",
		Exchange:    "visage.video",
		DLQ:         "video.enhance.dlq",
		StatusQueue: "video.enhance.status",
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	// Start consumer in background
	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()

	go func() {
		consumer.Start(consumerCtx)
	}()

	// Give consumer time to start
	time.Sleep(500 * time.Millisecond)

	// Publish enhancement request: 2s @ 10fps source, stride 1 -> 10 frames
	jobID := uuid.New()
	videoInfo, _ := os.Stat(testVideoPath)
	requestMsg := entity.EnhancementRequestMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		FileSize:  videoInfo.Size(),
		UserEmail: "test@test.local",
		Stride:    1,
	}
	msgBody, err := json.Marshal(requestMsg)
	require.NoError(t, err)

	pubCh, err := rmqConn.Channel()
	require.NoError(t, err)
	err = pubCh.PublishWithContext(ctx,
		"visage.video",
		"video.enhance",
		false, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        msgBody,
		},
	)
	require.NoError(t, err)
	pubCh.Close()

	// Wait for status message
	statusCh, err := rmqConn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()

	statusMsgs, err := statusCh.Consume("video.enhance.status", "", true, false, false, false, nil)
	require.NoError(t, err)

	var statusMsg entity.EnhancementStatusMessage
	select {
	case delivery := <-statusMsgs:
		err = json.Unmarshal(delivery.Body, &statusMsg)
		require.NoError(t, err)
	case <-time.After(2 * time.Minute):
		t.Fatal("timeout waiting for status message")
	}

	// Assert status
	assert.Equal(t, jobID, statusMsg.JobID)
	assert.Equal(t, entity.JobStatusCompleted, statusMsg.Status)
	assert.Equal(t, 20, statusMsg.DecodedFrames)
	assert.Equal(t, 10, statusMsg.FrameCount)
	assert.InDelta(t, 1.0, statusMsg.Duration, 0.05)
	assert.NotEmpty(t, statusMsg.OutputKey)

	// Download the final artifact and verify it with the prober
	finalObj, err := minioClient.GetObject(ctx, "enhanced", statusMsg.OutputKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)

	finalPath := filepath.Join(t.TempDir(), "final.mp4")
	finalFile, err := os.Create(finalPath)
	require.NoError(t, err)
	_, err = finalFile.ReadFrom(finalObj)
	require.NoError(t, err)
	finalFile.Close()

	final, err := prober.Probe(ctx, finalPath)
	require.NoError(t, err)
	assert.Equal(t, "10/1", final.FrameRate.String())
	assert.True(t, final.HasAudio, "audio-free sources still get a duration-matched silent track")
	assert.InDelta(t, 1.0, final.Duration, 0.1)

	// Verify job record in database
	var dbStatus string
	var dbFrameCount int
	err = pool.QueryRow(ctx,
		"SELECT status, frame_count FROM enhancement_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus, &dbFrameCount)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, 10, dbFrameCount)

	consumerCancel()

	t.Logf("Test passed: %d frames in final video at %s", statusMsg.FrameCount, statusMsg.OutputKey)
}

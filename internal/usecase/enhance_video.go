package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
	"github.com/visagelab/visage-enhancement-service/internal/domain/port"
	"github.com/visagelab/visage-enhancement-service/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// EnhanceVideoUseCase runs the frame pipeline for one queued request:
// download, extract, enhance, reconstruct, mux, upload. Each run is strictly
// sequential; parallelism exists only across runs, each with its own scoped
// working directory.
type EnhanceVideoUseCase struct {
	repo          port.JobRepository
	storage       port.VideoStorage
	prober        port.VideoProber
	extractor     port.FrameExtractor
	enhancer      port.FrameEnhancer
	reconstructor port.VideoReconstructor
	muxer         port.AudioMuxer
	publisher     port.StatusPublisher
	dlq           port.DLQPublisher
	notifier      port.FailureNotifier
	logger        *zap.Logger
	tempDir       string
	maxRetry      int
	defaultStride int
	defaults      entity.EnhancementConfig
}

type EnhanceVideoConfig struct {
	TempDir       string
	MaxRetries    int
	DefaultStride int
	Defaults      entity.EnhancementConfig
}

func NewEnhanceVideoUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	prober port.VideoProber,
	extractor port.FrameExtractor,
	enhancer port.FrameEnhancer,
	reconstructor port.VideoReconstructor,
	muxer port.AudioMuxer,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg EnhanceVideoConfig,
) *EnhanceVideoUseCase {
	return &EnhanceVideoUseCase{
		repo:          repo,
		storage:       storage,
		prober:        prober,
		extractor:     extractor,
		enhancer:      enhancer,
		reconstructor: reconstructor,
		muxer:         muxer,
		publisher:     publisher,
		dlq:           dlq,
		notifier:      notifier,
		logger:        logger,
		tempDir:       cfg.TempDir,
		maxRetry:      cfg.MaxRetries,
		defaultStride: cfg.DefaultStride,
		defaults:      cfg.Defaults,
	}
}

func (uc *EnhanceVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "EnhanceVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.EnhancementRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	stride, cfg := uc.applyDefaults(msg)
	if err := cfg.Validate(); err != nil {
		uc.logger.Error("invalid enhancement parameters", zap.Error(err), zap.String("job_id", msg.JobID.String()))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "invalid_parameters: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
		attribute.Int("job.stride", stride),
		attribute.Int("job.upscale", cfg.Upscale),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewJob(msg.UserID, msg.VideoKey, msg.FileSize, stride, cfg, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		// Redelivery of an exhausted job keeps the cause recorded by the
		// failing attempt.
		kind := job.FailureKind
		if kind == "" {
			kind = entity.FailureInternal
		}
		log.Warn("job exhausted retries, sending to DLQ", zap.String("kind", kind))
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, kind, "max retries exceeded")
		return nil
	}

	job.MarkStarted()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to EXTRACTING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.runPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	// Permanent failures also return nil (they are dead-lettered, not
	// requeued), so only a job that actually finished counts as completed.
	if job.Status == entity.JobStatusCompleted {
		metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
		metrics.StageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	}

	return nil
}

// applyDefaults fills zero-valued per-request parameters from service
// configuration.
func (uc *EnhanceVideoUseCase) applyDefaults(msg entity.EnhancementRequestMessage) (int, entity.EnhancementConfig) {
	stride := msg.Stride
	if stride <= 0 {
		stride = uc.defaultStride
	}

	cfg := entity.EnhancementConfig{
		Upscale:      msg.Upscale,
		Weight:       msg.Weight,
		TileSize:     msg.TileSize,
		ModelVersion: msg.ModelVersion,
	}
	if cfg.Upscale == 0 {
		cfg.Upscale = uc.defaults.Upscale
	}
	if cfg.Weight == 0 {
		cfg.Weight = uc.defaults.Weight
	}
	if cfg.TileSize == 0 {
		cfg.TileSize = uc.defaults.TileSize
	}
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = uc.defaults.ModelVersion
	}
	return stride, cfg
}

// pipelineRun owns the scoped working directory for one invocation and the
// intermediate artifact paths inside it. All intermediates die with the run.
type pipelineRun struct {
	workDir     string
	sourcePath  string
	framesDir   string
	enhancedDir string
	silentPath  string
	finalPath   string
}

func newPipelineRun(tempDir string, jobID uuid.UUID) (*pipelineRun, error) {
	workDir := filepath.Join(tempDir, jobID.String())
	run := &pipelineRun{
		workDir:     workDir,
		sourcePath:  filepath.Join(workDir, "input.mp4"),
		framesDir:   filepath.Join(workDir, "frames"),
		enhancedDir: filepath.Join(workDir, "enhanced"),
		silentPath:  filepath.Join(workDir, "enhanced_no_audio.mp4"),
		finalPath:   filepath.Join(workDir, "enhanced_final.mp4"),
	}
	for _, dir := range []string{run.workDir, run.framesDir, run.enhancedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return run, nil
}

func (r *pipelineRun) Cleanup() {
	os.RemoveAll(r.workDir)
}

func (uc *EnhanceVideoUseCase) runPipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.EnhancementRequestMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	run, err := newPipelineRun(uc.tempDir, job.ID)
	if err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer run.Cleanup()

	// Download source video
	dlStart := time.Now()
	ctxDl, spanDl := tracer.Start(ctx, "download_video")
	if err := uc.storage.DownloadVideo(ctxDl, msg.VideoKey, run.sourcePath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("download_video: %w", err), log)
	}
	spanDl.End()
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Probe + extract frames
	exStart := time.Now()
	ctxEx, spanEx := tracer.Start(ctx, "extract_frames")
	source, err := uc.prober.Probe(ctxEx, run.sourcePath)
	if err != nil {
		spanEx.End()
		log.Error("source probe failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, err, log)
	}
	extraction, err := uc.extractor.Extract(ctxEx, source, job.Stride, run.framesDir)
	if err != nil {
		spanEx.End()
		log.Error("frame extraction failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, err, log)
	}
	spanEx.End()
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())
	metrics.FramesExtractedTotal.Add(float64(extraction.Frames.Len()))

	// Enhance through the external engine
	job.MarkStage(entity.JobStatusEnhancing)
	_ = uc.repo.Update(ctx, job)

	enStart := time.Now()
	ctxEn, spanEn := tracer.Start(ctx, "enhance_frames")
	enhanced, err := uc.enhancer.Enhance(ctxEn, extraction.Frames, job.Enhancement, run.enhancedDir)
	spanEn.End()
	if err != nil {
		log.Error("enhancement failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, err, log)
	}
	metrics.StageDuration.WithLabelValues("enhance").Observe(time.Since(enStart).Seconds())
	metrics.FramesEnhancedTotal.Add(float64(enhanced.Len()))

	// Reconstruct at the source's native frame rate
	job.MarkStage(entity.JobStatusReconstructing)
	_ = uc.repo.Update(ctx, job)

	reStart := time.Now()
	ctxRe, spanRe := tracer.Start(ctx, "reconstruct_video")
	silentVideo, err := uc.reconstructor.Reconstruct(ctxRe, enhanced, extraction.FrameRate, run.silentPath)
	spanRe.End()
	if err != nil {
		log.Error("video reconstruction failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, err, log)
	}
	metrics.StageDuration.WithLabelValues("reconstruct").Observe(time.Since(reStart).Seconds())

	// Re-attach the original audio, duration-matched
	job.MarkStage(entity.JobStatusMuxing)
	_ = uc.repo.Update(ctx, job)

	muxStart := time.Now()
	ctxMux, spanMux := tracer.Start(ctx, "mux_audio")
	finalVideo, err := uc.muxer.Mux(ctxMux, source, silentVideo, run.finalPath)
	spanMux.End()
	if err != nil {
		log.Error("audio mux failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, err, log)
	}
	metrics.StageDuration.WithLabelValues("mux").Observe(time.Since(muxStart).Seconds())

	// Upload final artifact
	upStart := time.Now()
	ctxUp, spanUp := tracer.Start(ctx, "upload_video")
	outputKey := fmt.Sprintf("%s/enhanced_%s.mp4", msg.UserID, job.ID.String())
	if err := uc.storage.UploadVideo(ctxUp, outputKey, finalVideo.Path); err != nil {
		spanUp.End()
		log.Error("video upload failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("upload_video: %w", err), log)
	}
	spanUp.End()
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.MarkCompleted(outputKey, extraction.DecodedFrames, finalVideo.FrameCount, finalVideo.Duration)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("decoded_frames", extraction.DecodedFrames),
		zap.Int("frame_count", finalVideo.FrameCount),
		zap.Float64("duration_secs", finalVideo.Duration),
		zap.String("output_key", outputKey),
	)

	return nil
}

// handleFailure routes a stage error: deterministic pipeline failures go
// straight to the DLQ, everything else stays retryable until attempts run
// out.
func (uc *EnhanceVideoUseCase) handleFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.EnhancementRequestMessage,
	rawMsg []byte,
	cause error,
	log *zap.Logger,
) error {
	kind := entity.FailureKind(cause)
	metrics.PipelineFailuresTotal.WithLabelValues(kind).Inc()

	if entity.PermanentFailure(cause) {
		log.Warn("permanent pipeline failure", zap.String("kind", kind), zap.Error(cause))
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, kind, cause.Error())
	}

	job.MarkFailed(kind, cause.Error())
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, kind, cause.Error())
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %w", job.Attempt, job.MaxAttempts, cause)
}

func (uc *EnhanceVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.EnhancementRequestMessage,
	rawMsg []byte,
	kind string,
	errMsg string,
) error {
	job.MarkFailed(kind, errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *EnhanceVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.EnhancementStatusMessage{
		JobID:         job.ID,
		UserID:        job.UserID,
		Status:        job.Status,
		VideoKey:      job.VideoKey,
		OutputKey:     job.OutputKey,
		DecodedFrames: job.DecodedFrames,
		FrameCount:    job.FrameCount,
		Duration:      job.Duration,
		FailureKind:   job.FailureKind,
		ErrorMessage:  job.ErrorMessage,
		Attempt:       job.Attempt,
		MaxAttempts:   job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

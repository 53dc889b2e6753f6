package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

// The pipeline is a linear state machine: PENDING advances through the four
// processing stages to COMPLETED, and any stage may fall to FAILED.
const (
	JobStatusPending        JobStatus = "PENDING"
	JobStatusExtracting     JobStatus = "EXTRACTING"
	JobStatusEnhancing      JobStatus = "ENHANCING"
	JobStatusReconstructing JobStatus = "RECONSTRUCTING"
	JobStatusMuxing         JobStatus = "MUXING"
	JobStatusCompleted      JobStatus = "COMPLETED"
	JobStatusFailed         JobStatus = "FAILED"
)

type Job struct {
	ID            uuid.UUID
	UserID        string
	VideoKey      string
	OutputKey     string
	Status        JobStatus
	Stride        int
	Enhancement   EnhancementConfig
	DecodedFrames int
	FrameCount    int
	FileSize      int64
	Duration      float64
	Attempt       int
	MaxAttempts   int
	FailureKind   string
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewJob(userID, videoKey string, fileSize int64, stride int, cfg EnhancementConfig, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Stride:      stride,
		Enhancement: cfg,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkStarted counts an attempt and moves the job to its first stage.
func (j *Job) MarkStarted() {
	j.Status = JobStatusExtracting
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

// MarkStage records progress through the pipeline.
func (j *Job) MarkStage(status JobStatus) {
	j.Status = status
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) MarkCompleted(outputKey string, decodedFrames, frameCount int, duration float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.OutputKey = outputKey
	j.DecodedFrames = decodedFrames
	j.FrameCount = frameCount
	j.Duration = duration
	j.FailureKind = ""
	j.ErrorMessage = ""
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(kind, errMsg string) {
	j.Status = JobStatusFailed
	j.FailureKind = kind
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}

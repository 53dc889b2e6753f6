package entity

import "github.com/google/uuid"

// EnhancementRequestMessage is the inbound message from the video.enhance
// queue. Zero-valued enhancement parameters are filled from service defaults.
type EnhancementRequestMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	VideoKey     string    `json:"video_key"`
	FileSize     int64     `json:"file_size"`
	UserEmail    string    `json:"user_email"`
	Stride       int       `json:"stride"`
	Upscale      int       `json:"upscale"`
	Weight       float64   `json:"weight"`
	TileSize     int       `json:"tile_size"`
	ModelVersion string    `json:"model_version"`
}

// EnhancementStatusMessage is the outbound message published to the
// video.enhance.status queue.
type EnhancementStatusMessage struct {
	JobID         uuid.UUID `json:"job_id"`
	UserID        string    `json:"user_id"`
	Status        JobStatus `json:"status"`
	VideoKey      string    `json:"video_key"`
	OutputKey     string    `json:"output_key,omitempty"`
	DecodedFrames int       `json:"decoded_frames,omitempty"`
	FrameCount    int       `json:"frame_count,omitempty"`
	Duration      float64   `json:"duration_seconds,omitempty"`
	FailureKind   string    `json:"failure_kind,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	Attempt       int       `json:"attempt"`
	MaxAttempts   int       `json:"max_attempts"`
}

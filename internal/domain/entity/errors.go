package entity

import "errors"

// Classified pipeline failures. Stages wrap these with %w so the use case can
// classify any error bubbling out of an adapter.
var (
	// ErrSourceUnreadable means the input video could not be opened or
	// yielded no decodable frames.
	ErrSourceUnreadable = errors.New("source video unreadable")

	// ErrEnhancementFailed wraps any error raised by the external
	// restoration engine. The pipeline does not interpret the cause.
	ErrEnhancementFailed = errors.New("enhancement engine failed")

	// ErrEmptyFrameSet means reconstruction was handed zero images.
	ErrEmptyFrameSet = errors.New("empty frame set")

	// ErrFrameDimensionMismatch means a frame's resolution differs from the
	// first frame of its set. Reconstruction refuses to write such a set.
	ErrFrameDimensionMismatch = errors.New("frame dimension mismatch")

	// ErrAudioExtractionFailed means the original's audio track could not be
	// used. Not fatal: the muxer falls back to a silent track.
	ErrAudioExtractionFailed = errors.New("audio extraction failed")
)

// Failure kinds as recorded on the job row and in status messages.
const (
	FailureSourceUnreadable       = "source_unreadable"
	FailureEnhancementFailed      = "enhancement_failed"
	FailureEmptyFrameSet          = "empty_frame_set"
	FailureFrameDimensionMismatch = "frame_dimension_mismatch"
	FailureAudioExtraction        = "audio_extraction_failed"
	FailureInternal               = "internal"
)

// FailureKind classifies a pipeline error for persistence and reporting.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrSourceUnreadable):
		return FailureSourceUnreadable
	case errors.Is(err, ErrEnhancementFailed):
		return FailureEnhancementFailed
	case errors.Is(err, ErrEmptyFrameSet):
		return FailureEmptyFrameSet
	case errors.Is(err, ErrFrameDimensionMismatch):
		return FailureFrameDimensionMismatch
	case errors.Is(err, ErrAudioExtractionFailed):
		return FailureAudioExtraction
	default:
		return FailureInternal
	}
}

// PermanentFailure reports whether an error is deterministic for a given
// input, so retrying the message cannot succeed.
func PermanentFailure(err error) bool {
	return errors.Is(err, ErrSourceUnreadable) ||
		errors.Is(err, ErrEmptyFrameSet) ||
		errors.Is(err, ErrFrameDimensionMismatch)
}

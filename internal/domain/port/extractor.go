package port

import (
	"context"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
)

type FrameExtractionResult struct {
	Frames entity.FrameSet
	// FrameRate is the source's native rate, returned unchanged: sampling
	// thins material, it never alters timing.
	FrameRate entity.FrameRate
	// DecodedFrames counts every decoded frame, including skipped ones.
	DecodedFrames int
}

// FrameExtractor decodes a video into ordered still images. A frame at
// decode index i is written iff i mod (stride+1) == 0; the decode index is
// dense over decoded frames and never resets.
type FrameExtractor interface {
	Extract(ctx context.Context, source entity.VideoStream, stride int, outputDir string) (*FrameExtractionResult, error)
}

package port

import (
	"context"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
)

// VideoReconstructor encodes an ordered frame set into a video at the given
// rate, one output frame per input frame in ascending sort order.
type VideoReconstructor interface {
	Reconstruct(ctx context.Context, frames entity.FrameSet, rate entity.FrameRate, outputPath string) (entity.VideoStream, error)
}

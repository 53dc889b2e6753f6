package port

import (
	"context"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
)

// AudioMuxer re-attaches the original's audio track to the enhanced video,
// forcing the audio duration to match the video's. A source without audio
// yields a silent track of the same duration.
type AudioMuxer interface {
	Mux(ctx context.Context, original, enhanced entity.VideoStream, outputPath string) (entity.VideoStream, error)
}

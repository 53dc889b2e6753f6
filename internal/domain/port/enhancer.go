package port

import (
	"context"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
)

// FrameEnhancer is the opaque, synchronous boundary to the external
// restoration engine: one batch call over a directory of frames. The
// returned set lives under outputDir (possibly in an engine-specific
// subdirectory) and sorts into the same temporal order as the input.
type FrameEnhancer interface {
	Enhance(ctx context.Context, frames entity.FrameSet, cfg entity.EnhancementConfig, outputDir string) (entity.FrameSet, error)
}

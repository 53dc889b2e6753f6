package port

import (
	"context"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
)

// VideoProber opens a container and reads its stream properties.
type VideoProber interface {
	Probe(ctx context.Context, path string) (entity.VideoStream, error)
}

package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
	"go.uber.org/zap"
)

type Reconstructor struct {
	videoCodec string
	logger     *zap.Logger
}

func NewReconstructor(videoCodec string, logger *zap.Logger) *Reconstructor {
	return &Reconstructor{videoCodec: videoCodec, logger: logger}
}

// Reconstruct encodes the frame set into a silent video at the given rate.
// Frames are written strictly in ascending sort order, one output frame per
// input frame: gaps left by sampling are not reproduced, so the output
// duration is len(frames)/rate. Every frame must match the first frame's
// resolution; a mismatched engine output fails the run instead of corrupting
// the container.
func (r *Reconstructor) Reconstruct(ctx context.Context, frames entity.FrameSet, rate entity.FrameRate, outputPath string) (entity.VideoStream, error) {
	if frames.Empty() {
		return entity.VideoStream{}, fmt.Errorf("%w: nothing to reconstruct", entity.ErrEmptyFrameSet)
	}
	if rate.IsZero() {
		return entity.VideoStream{}, fmt.Errorf("frame rate is zero")
	}

	paths := make([]string, len(frames.Paths))
	copy(paths, frames.Paths)
	sort.Strings(paths)

	width, height, err := frameDimensions(paths[0])
	if err != nil {
		return entity.VideoStream{}, fmt.Errorf("read first frame %s: %w", paths[0], err)
	}
	for _, p := range paths[1:] {
		w, h, err := frameDimensions(p)
		if err != nil {
			return entity.VideoStream{}, fmt.Errorf("read frame %s: %w", p, err)
		}
		if w != width || h != height {
			return entity.VideoStream{}, fmt.Errorf("%w: %s is %dx%d, first frame is %dx%d",
				entity.ErrFrameDimensionMismatch, filepath.Base(p), w, h, width, height)
		}
	}

	listPath := outputPath + ".frames.txt"
	if err := writeConcatList(listPath, paths, rate); err != nil {
		return entity.VideoStream{}, fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c:v", r.videoCodec,
		"-pix_fmt", "yuv420p",
		"-r", rate.String(),
		"-frames:v", strconv.Itoa(len(paths)),
		"-an",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return entity.VideoStream{}, fmt.Errorf("ffmpeg reconstruct: %w: %s", err, string(output))
	}

	r.logger.Info("video reconstructed",
		zap.Int("frames", len(paths)),
		zap.String("frame_rate", rate.String()),
		zap.Int("width", width),
		zap.Int("height", height),
	)

	return entity.VideoStream{
		Path:       outputPath,
		FrameRate:  rate,
		FrameCount: len(paths),
		Width:      width,
		Height:     height,
		Duration:   float64(len(paths)) / rate.FPS(),
	}, nil
}

// writeConcatList emits an ffconcat script naming every frame with an
// explicit per-frame duration, so ordering is fixed here and not by the
// demuxer's directory scan. The final entry is repeated because the concat
// demuxer ignores the last duration otherwise.
func writeConcatList(path string, sortedPaths []string, rate entity.FrameRate) error {
	frameDuration := float64(rate.Den) / float64(rate.Num)

	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, p := range sortedPaths {
		fmt.Fprintf(&b, "file '%s'\nduration %.9f\n", p, frameDuration)
	}
	fmt.Fprintf(&b, "file '%s'\n", sortedPaths[len(sortedPaths)-1])

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func frameDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

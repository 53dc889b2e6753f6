package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
	"github.com/visagelab/visage-enhancement-service/internal/domain/port"
	"go.uber.org/zap"
)

const (
	// frameIndexDigits fixes the zero-padding width of frame filenames.
	// Eight digits keep lexicographic order intact up to 10^8 decoded
	// frames (~38 days of 30fps video); extraction fails loudly beyond
	// that rather than mis-sorting.
	frameIndexDigits = 8

	framePrefix = "frame_"
	frameExt    = ".jpg"
)

type Extractor struct {
	quality int // ffmpeg -q:v for the JPEG encoder, 2 is near-lossless
	logger  *zap.Logger
}

func NewExtractor(quality int, logger *zap.Logger) *Extractor {
	return &Extractor{quality: quality, logger: logger}
}

// Extract dumps every decodable frame of the source into outputDir with the
// zero-based decode index embedded in the filename, then prunes the dump to
// the configured stride. The filename carries the original decode index, not
// a re-numbered written index, so spacing between kept frames is exactly
// stride+1 decode steps and sort order equals temporal order.
func (e *Extractor) Extract(ctx context.Context, source entity.VideoStream, stride int, outputDir string) (*port.FrameExtractionResult, error) {
	if stride < 0 {
		return nil, fmt.Errorf("stride must be non-negative, got %d", stride)
	}

	pattern := filepath.Join(outputDir, framePrefix+"%0"+strconv.Itoa(frameIndexDigits)+"d"+frameExt)
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", source.Path,
		"-fps_mode", "passthrough",
		"-start_number", "0",
		"-q:v", strconv.Itoa(e.quality),
		"-y",
		pattern,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: ffmpeg: %v: %s", entity.ErrSourceUnreadable, err, string(output))
	}

	kept, decoded, err := applyStride(outputDir, stride)
	if err != nil {
		return nil, fmt.Errorf("apply stride: %w", err)
	}
	if decoded == 0 {
		return nil, fmt.Errorf("%w: no decodable frames in %s", entity.ErrSourceUnreadable, source.Path)
	}
	if decoded > maxFrameCount() {
		return nil, fmt.Errorf("decoded %d frames, exceeds filename padding capacity %d", decoded, maxFrameCount())
	}

	e.logger.Info("frames extracted",
		zap.Int("decoded", decoded),
		zap.Int("written", len(kept)),
		zap.Int("stride", stride),
		zap.String("frame_rate", source.FrameRate.String()),
	)

	return &port.FrameExtractionResult{
		Frames:        entity.FrameSet{Dir: outputDir, Paths: kept},
		FrameRate:     source.FrameRate,
		DecodedFrames: decoded,
	}, nil
}

// applyStride prunes a dense, zero-based frame dump: an index i survives iff
// i mod (stride+1) == 0, everything else is removed. Returns the surviving
// paths in sort order and the total number of decoded frames.
func applyStride(dir string, stride int) ([]string, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, framePrefix) && strings.HasSuffix(name, frameExt) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	step := stride + 1
	var kept []string
	for _, name := range names {
		idx, err := frameIndex(name)
		if err != nil {
			return nil, 0, err
		}
		if idx%step == 0 {
			kept = append(kept, filepath.Join(dir, name))
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return nil, 0, fmt.Errorf("remove skipped frame %s: %w", name, err)
		}
	}

	return kept, len(names), nil
}

// frameIndex recovers the decode index embedded in a frame filename.
func frameIndex(name string) (int, error) {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, framePrefix), frameExt)
	idx, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("frame filename %q: %w", name, err)
	}
	return idx, nil
}

func maxFrameCount() int {
	n := 1
	for i := 0; i < frameIndexDigits; i++ {
		n *= 10
	}
	return n
}

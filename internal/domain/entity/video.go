package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameRate is a rational frames-per-second value as containers report it
// (e.g. "30000/1001"). Kept rational so NTSC rates survive the round trip
// from probe to encoder without drift.
type FrameRate struct {
	Num int
	Den int
}

// ParseFrameRate parses ffprobe's r_frame_rate form: "num/den" or a plain
// integer.
func ParseFrameRate(s string) (FrameRate, error) {
	num, den := s, "1"
	if i := strings.IndexByte(s, '/'); i >= 0 {
		num, den = s[:i], s[i+1:]
	}

	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return FrameRate{}, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return FrameRate{}, fmt.Errorf("parse frame rate %q: %w", s, err)
	}
	if n <= 0 || d <= 0 {
		return FrameRate{}, fmt.Errorf("frame rate %q is not positive", s)
	}
	return FrameRate{Num: n, Den: d}, nil
}

func (r FrameRate) FPS() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r FrameRate) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

// String renders the rate in the num/den form ffmpeg accepts for -r and
// -framerate.
func (r FrameRate) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// VideoStream identifies a container on disk together with the properties
// probed from it. Immutable once built.
type VideoStream struct {
	Path       string
	FrameRate  FrameRate
	FrameCount int
	Width      int
	Height     int
	HasAudio   bool
	Duration   float64 // seconds
}

// FrameSet is an ordered collection of still images materialized to a
// directory. Paths are kept lexicographically sorted; filenames embed a
// zero-padded index, so sort order equals temporal order.
type FrameSet struct {
	Dir   string
	Paths []string
}

func (fs FrameSet) Len() int {
	return len(fs.Paths)
}

func (fs FrameSet) Empty() bool {
	return len(fs.Paths) == 0
}

// EnhancementConfig is the value object forwarded verbatim to the
// restoration engine.
type EnhancementConfig struct {
	Upscale      int
	Weight       float64
	TileSize     int
	ModelVersion string
}

func (c EnhancementConfig) Validate() error {
	if c.Upscale < 1 {
		return fmt.Errorf("upscale must be >= 1, got %d", c.Upscale)
	}
	if c.Weight < 0 || c.Weight > 1 {
		return fmt.Errorf("weight must be in [0,1], got %g", c.Weight)
	}
	if c.TileSize < 1 {
		return fmt.Errorf("tile size must be positive, got %d", c.TileSize)
	}
	if c.ModelVersion == "" {
		return fmt.Errorf("model version is required")
	}
	return nil
}

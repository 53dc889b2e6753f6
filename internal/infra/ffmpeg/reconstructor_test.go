package ffmpeg

import (
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
	"go.uber.org/zap"
)

func writeJPEG(t *testing.T, path string, width, height int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, jpeg.Encode(f, image.NewRGBA(image.Rect(0, 0, width, height)), nil))
}

func TestReconstructEmptyFrameSet(t *testing.T) {
	r := NewReconstructor("libx264", zap.NewNop())

	_, err := r.Reconstruct(context.Background(), entity.FrameSet{}, entity.FrameRate{Num: 10, Den: 1}, filepath.Join(t.TempDir(), "out.mp4"))
	require.ErrorIs(t, err, entity.ErrEmptyFrameSet)
}

func TestReconstructDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "frame_00000000.jpg")
	second := filepath.Join(dir, "frame_00000001.jpg")
	writeJPEG(t, first, 64, 64)
	writeJPEG(t, second, 32, 64)

	r := NewReconstructor("libx264", zap.NewNop())
	outPath := filepath.Join(dir, "out.mp4")

	_, err := r.Reconstruct(context.Background(), entity.FrameSet{Dir: dir, Paths: []string{first, second}}, entity.FrameRate{Num: 10, Den: 1}, outPath)
	require.ErrorIs(t, err, entity.ErrFrameDimensionMismatch)

	// A malformed container must never appear.
	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReconstructZeroFrameRate(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "frame_00000000.jpg")
	writeJPEG(t, p, 64, 64)

	r := NewReconstructor("libx264", zap.NewNop())
	_, err := r.Reconstruct(context.Background(), entity.FrameSet{Dir: dir, Paths: []string{p}}, entity.FrameRate{}, filepath.Join(dir, "out.mp4"))
	require.Error(t, err)
}

func TestWriteConcatListOrderingAndDurations(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "frame_00000000.jpg"),
		filepath.Join(dir, "frame_00000003.jpg"),
		filepath.Join(dir, "frame_00000006.jpg"),
	}

	listPath := filepath.Join(dir, "frames.txt")
	require.NoError(t, writeConcatList(listPath, paths, entity.FrameRate{Num: 10, Den: 1}))

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, "ffconcat version 1.0\n"))
	assert.Contains(t, content, "duration 0.100000000")

	// Entries appear in the given sort order, with the final frame repeated
	// so the demuxer honors its duration.
	i0 := strings.Index(content, "frame_00000000.jpg")
	i3 := strings.Index(content, "frame_00000003.jpg")
	i6 := strings.Index(content, "frame_00000006.jpg")
	assert.True(t, i0 < i3 && i3 < i6)
	assert.Equal(t, 2, strings.Count(content, "frame_00000006.jpg"))
}

func TestFrameDimensions(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "frame.jpg")
	writeJPEG(t, p, 48, 36)

	w, h, err := frameDimensions(p)
	require.NoError(t, err)
	assert.Equal(t, 48, w)
	assert.Equal(t, 36, h)

	_, _, err = frameDimensions(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}

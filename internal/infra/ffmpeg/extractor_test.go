package ffmpeg

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFrameDump fabricates a dense, zero-based extraction dump of n frames.
func writeFrameDump(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s%0*d%s", framePrefix, frameIndexDigits, i, frameExt)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("jpeg"), 0o644))
	}
}

func TestApplyStrideKeepsEveryNth(t *testing.T) {
	tests := []struct {
		name        string
		frames      int
		stride      int
		wantKept    int
		wantIndices []int
	}{
		{"stride zero keeps all", 10, 0, 10, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{"stride two over ten", 10, 2, 4, []int{0, 3, 6, 9}},
		{"stride one over twenty", 20, 1, 10, []int{0, 2, 4, 6, 8, 10, 12, 14, 16, 18}},
		{"stride larger than source", 3, 5, 1, []int{0}},
		{"single frame", 1, 3, 1, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFrameDump(t, dir, tt.frames)

			kept, decoded, err := applyStride(dir, tt.stride)
			require.NoError(t, err)

			assert.Equal(t, tt.frames, decoded, "decoded count reports all frames, not written ones")
			require.Len(t, kept, tt.wantKept)

			for i, p := range kept {
				idx, err := frameIndex(filepath.Base(p))
				require.NoError(t, err)
				assert.Equal(t, tt.wantIndices[i], idx)
			}

			// Skipped frames must be gone from disk.
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Len(t, entries, tt.wantKept)
		})
	}
}

func TestApplyStrideEmptyDir(t *testing.T) {
	kept, decoded, err := applyStride(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Zero(t, decoded)
	assert.Empty(t, kept)
}

func TestApplyStrideIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeFrameDump(t, dir, 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	kept, decoded, err := applyStride(dir, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, decoded)
	assert.Len(t, kept, 2)
}

func TestApplyStrideIdempotentNaming(t *testing.T) {
	names := func() []string {
		dir := t.TempDir()
		writeFrameDump(t, dir, 12)
		kept, _, err := applyStride(dir, 2)
		require.NoError(t, err)
		out := make([]string, len(kept))
		for i, p := range kept {
			out[i] = filepath.Base(p)
		}
		return out
	}

	assert.Equal(t, names(), names())
}

func TestFrameIndex(t *testing.T) {
	idx, err := frameIndex("frame_00000042.jpg")
	require.NoError(t, err)
	assert.Equal(t, 42, idx)

	_, err = frameIndex("frame_abc.jpg")
	assert.Error(t, err)
}

func TestKeptFilenamesSortTemporally(t *testing.T) {
	dir := t.TempDir()
	writeFrameDump(t, dir, 15)

	kept, _, err := applyStride(dir, 3)
	require.NoError(t, err)

	// Lexicographic order of the zero-padded names must equal index order.
	last := -1
	for _, p := range kept {
		idx, err := frameIndex(filepath.Base(p))
		require.NoError(t, err)
		assert.Greater(t, idx, last)
		last = idx
	}
}

func TestMaxFrameCount(t *testing.T) {
	assert.Equal(t, 100_000_000, maxFrameCount())
}

package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
	"go.uber.org/zap"
)

type Muxer struct {
	videoCodec string
	audioCodec string
	logger     *zap.Logger
}

func NewMuxer(videoCodec, audioCodec string, logger *zap.Logger) *Muxer {
	return &Muxer{videoCodec: videoCodec, audioCodec: audioCodec, logger: logger}
}

// Mux combines the enhanced video's visual stream with the original's audio
// track. The audio duration is forced to match the video: apad fills silence
// when the audio is shorter, -shortest truncates when it is longer. A source
// without audio, or one whose audio cannot be read, gets a generated silent
// track of the same duration instead of failing the run.
func (m *Muxer) Mux(ctx context.Context, original, enhanced entity.VideoStream, outputPath string) (entity.VideoStream, error) {
	if original.HasAudio {
		err := m.muxOriginalAudio(ctx, original, enhanced, outputPath)
		if err == nil {
			return m.result(enhanced, outputPath), nil
		}
		m.logger.Warn("falling back to silent audio track",
			zap.String("original", original.Path),
			zap.Error(fmt.Errorf("%w: %v", entity.ErrAudioExtractionFailed, err)),
		)
	}

	if err := m.muxSilentAudio(ctx, enhanced, outputPath); err != nil {
		return entity.VideoStream{}, fmt.Errorf("mux silent audio: %w", err)
	}
	return m.result(enhanced, outputPath), nil
}

func (m *Muxer) muxOriginalAudio(ctx context.Context, original, enhanced entity.VideoStream, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", enhanced.Path,
		"-i", original.Path,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", m.videoCodec,
		"-c:a", m.audioCodec,
		"-af", "apad",
		"-shortest",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg mux: %w: %s", err, string(output))
	}
	return nil
}

func (m *Muxer) muxSilentAudio(ctx context.Context, enhanced entity.VideoStream, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", enhanced.Path,
		"-f", "lavfi",
		"-i", "anullsrc=channel_layout=stereo:sample_rate=44100",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", m.videoCodec,
		"-c:a", m.audioCodec,
		"-shortest",
		"-y",
		outputPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg mux: %w: %s", err, string(output))
	}
	return nil
}

func (m *Muxer) result(enhanced entity.VideoStream, outputPath string) entity.VideoStream {
	out := enhanced
	out.Path = outputPath
	out.HasAudio = true
	return out
}

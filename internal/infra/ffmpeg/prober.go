package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
	"go.uber.org/zap"
)

type Prober struct {
	logger *zap.Logger
}

func NewProber(logger *zap.Logger) *Prober {
	return &Prober{logger: logger}
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the container's stream properties with ffprobe. A file that
// ffprobe cannot open, or that carries no video stream, is classified as
// source_unreadable.
func (p *Prober) Probe(ctx context.Context, path string) (entity.VideoStream, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return entity.VideoStream{}, fmt.Errorf("%w: ffprobe %s: %v", entity.ErrSourceUnreadable, path, err)
	}

	var probe probeOutput
	if err := json.Unmarshal(output, &probe); err != nil {
		return entity.VideoStream{}, fmt.Errorf("%w: parse ffprobe output: %v", entity.ErrSourceUnreadable, err)
	}

	stream := entity.VideoStream{Path: path}
	for _, s := range probe.Streams {
		switch s.CodecType {
		case "video":
			if stream.Width != 0 {
				continue // first video stream wins
			}
			rate, err := entity.ParseFrameRate(s.RFrameRate)
			if err != nil {
				return entity.VideoStream{}, fmt.Errorf("%w: %v", entity.ErrSourceUnreadable, err)
			}
			stream.Width = s.Width
			stream.Height = s.Height
			stream.FrameRate = rate
			if n, err := strconv.Atoi(s.NbFrames); err == nil {
				stream.FrameCount = n
			}
		case "audio":
			stream.HasAudio = true
		}
	}

	if stream.Width == 0 || stream.Height == 0 {
		return entity.VideoStream{}, fmt.Errorf("%w: no video stream in %s", entity.ErrSourceUnreadable, path)
	}

	if d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64); err == nil {
		stream.Duration = d
	}

	p.logger.Debug("probed video",
		zap.String("path", path),
		zap.String("frame_rate", stream.FrameRate.String()),
		zap.Int("width", stream.Width),
		zap.Int("height", stream.Height),
		zap.Bool("has_audio", stream.HasAudio),
		zap.Float64("duration", stream.Duration),
	)

	return stream, nil
}

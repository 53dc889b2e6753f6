// Package gfpgan drives the external GFPGAN restoration engine. The engine
// runs as a sidecar sharing the worker's filesystem: requests name an input
// directory of frames and an output directory, and the engine writes the
// restored images to the output side.
package gfpgan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/visagelab/visage-enhancement-service/internal/domain/entity"
	"go.uber.org/zap"
)

// restoredSubdir is the engine's conventional nested output layout: some
// engine versions write into restored_imgs under the requested output root.
const restoredSubdir = "restored_imgs"

const releaseTimeout = 10 * time.Second

type Adapter struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewAdapter(cfg Config, logger *zap.Logger) *Adapter {
	return &Adapter{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// enhanceRequest carries the invocation parameters forwarded verbatim.
type enhanceRequest struct {
	InputDir  string  `json:"input_dir"`
	OutputDir string  `json:"output_dir"`
	Version   string  `json:"version"`
	Upscale   int     `json:"upscale"`
	Weight    float64 `json:"weight"`
	BgTile    int     `json:"bg_tile"`
}

// Enhance submits one synchronous batch call over the whole frame directory
// and resolves the directory the engine actually produced. Accelerator
// memory is released after every call, success or failure; the worker does
// not otherwise manage the engine's lifecycle.
func (a *Adapter) Enhance(ctx context.Context, frames entity.FrameSet, cfg entity.EnhancementConfig, outputDir string) (entity.FrameSet, error) {
	defer a.releaseAccelerator(ctx)

	req := enhanceRequest{
		InputDir:  frames.Dir,
		OutputDir: outputDir,
		Version:   cfg.ModelVersion,
		Upscale:   cfg.Upscale,
		Weight:    cfg.Weight,
		BgTile:    cfg.TileSize,
	}
	if err := a.post(ctx, "/enhance", req); err != nil {
		return entity.FrameSet{}, fmt.Errorf("%w: %v", entity.ErrEnhancementFailed, err)
	}

	resultDir := resolveOutputDir(outputDir)
	paths, err := listImages(resultDir)
	if err != nil {
		return entity.FrameSet{}, fmt.Errorf("%w: read output dir: %v", entity.ErrEnhancementFailed, err)
	}
	if len(paths) == 0 {
		return entity.FrameSet{}, fmt.Errorf("%w: engine produced no images in %s", entity.ErrEnhancementFailed, resultDir)
	}

	a.logger.Info("frames enhanced",
		zap.Int("input_frames", frames.Len()),
		zap.Int("output_frames", len(paths)),
		zap.String("output_dir", resultDir),
	)

	return entity.FrameSet{Dir: resultDir, Paths: paths}, nil
}

// resolveOutputDir probes for the engine's nested layout and falls back to
// the declared output root when the sub-path is absent.
func resolveOutputDir(outputDir string) string {
	nested := filepath.Join(outputDir, restoredSubdir)
	if info, err := os.Stat(nested); err == nil && info.IsDir() {
		return nested
	}
	return outputDir
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// releaseAccelerator asks the engine to drop its GPU working memory. Runs
// detached from the call's context so a cancelled or failed enhancement
// still releases.
func (a *Adapter) releaseAccelerator(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := a.post(ctx, "/gpu/release", struct{}{}); err != nil {
		a.logger.Warn("accelerator release failed", zap.Error(err))
	}
}

func (a *Adapter) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("POST %s: engine returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// Package batch runs object detection over many image files.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/MeKo-Tech/godetect/internal/render"
	"github.com/MeKo-Tech/godetect/internal/utils"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// Process discovers images under paths and runs them through pl.
func Process(ctx context.Context, pl *pipeline.Pipeline, paths []string, config *Config) (*Result, error) {
	files, err := DiscoverImages(paths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}
	slog.Info("batch discovered images", "count", len(files))

	start := time.Now()
	items, err := pl.ProcessFiles(ctx, files)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	if config.OverlayDir != "" {
		if err := WriteOverlays(items, config.OverlayDir, config.Overlay); err != nil {
			return nil, err
		}
	}

	return &Result{
		Items:       items,
		Duration:    duration,
		WorkerCount: pl.Config().Parallel.Workers,
		Labels:      config.Labels,
	}, nil
}

// ProgressFor returns the console progress callback a batch run should use, or nil.
func ProgressFor(config *Config) pipeline.ProgressCallback {
	if !config.ShowProgress || config.Quiet {
		return nil
	}
	return pipeline.NewConsoleProgressCallback(os.Stderr, "detecting: ")
}

// WriteOverlays saves <name>_overlay.png into dir for every successful item.
func WriteOverlays(items []pipeline.BatchItem, dir string, opts render.Options) error {
	for _, it := range items {
		if it.Result == nil {
			continue
		}
		img, _, err := utils.LoadImage(it.Path)
		if err != nil {
			return err
		}
		base := strings.TrimSuffix(filepath.Base(it.Path), filepath.Ext(it.Path))
		out := filepath.Join(dir, base+"_overlay.png")
		if err := pipeline.AnnotateFile(out, img, it.Result, opts); err != nil {
			return fmt.Errorf("overlay %s: %w", it.Path, err)
		}
	}
	return nil
}

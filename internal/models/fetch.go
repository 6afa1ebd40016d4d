package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"
)

// FetchOptions controls a model download.
type FetchOptions struct {
	URL       string // Source in go-getter syntax (https, s3, gcs, file, ...)
	ModelsDir string // Destination models dir; empty resolves via GetModelsDir
	Filename  string // Destination file name (default: DetectionSSDLite)
	Force     bool   // Overwrite an existing file
}

// Fetch downloads a detection model into <modelsDir>/detection and returns its path.
func Fetch(ctx context.Context, opts FetchOptions) (string, error) {
	if opts.URL == "" {
		return "", errors.New("no model URL configured (set detector.model_url or pass --url)")
	}
	if opts.Filename == "" {
		opts.Filename = DetectionSSDLite
	}

	dstDir := filepath.Join(GetModelsDir(opts.ModelsDir), TypeDetection)
	dst := filepath.Join(dstDir, opts.Filename)

	if !opts.Force {
		if _, err := os.Stat(dst); err == nil {
			slog.Info("model already present", "path", dst)
			return dst, nil
		}
	}
	if err := os.MkdirAll(dstDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create models directory: %w", err)
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to replace existing model: %w", err)
	}

	pwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	slog.Info("fetching model", "url", opts.URL, "path", dst)
	client := &getter.Client{
		Ctx:  ctx,
		Src:  opts.URL,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
		// Local sources are copied rather than symlinked into the models dir.
		Getters: copyingGetters(),
	}
	if err := client.Get(); err != nil {
		return "", fmt.Errorf("failed to fetch model from %s: %w", opts.URL, err)
	}
	return dst, nil
}

func copyingGetters() map[string]getter.Getter {
	getters := make(map[string]getter.Getter, len(getter.Getters))
	for k, v := range getter.Getters {
		getters[k] = v
	}
	getters["file"] = &getter.FileGetter{Copy: true}
	return getters
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/godetect/internal/utils"
)

// ErrPipelineClosed is returned when processing after Close.
var ErrPipelineClosed = errors.New("pipeline is closed")

// ProcessImage runs inference and post-processing on a single image.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (*ImageResult, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	if p == nil || p.engine == nil {
		return nil, ErrPipelineClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	b := img.Bounds()
	height, width := b.Dy(), b.Dx()
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("image has no pixels: %dx%d", width, height)
	}

	inf, err := p.engine.Infer(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}

	postStart := time.Now()
	objects, err := p.post.Run(ctx, inf.Scores, inf.Boxes, height, width)
	if err != nil {
		return nil, fmt.Errorf("post-process: %w", err)
	}
	postDur := time.Since(postStart)

	res := &ImageResult{
		Width:   width,
		Height:  height,
		Objects: objects,
		Processing: ProcessingInfo{
			InferenceNs:   inf.Duration.Nanoseconds(),
			PostprocessNs: postDur.Nanoseconds(),
			TotalNs:       time.Since(start).Nanoseconds(),
		},
	}
	slog.Debug("image processed",
		"width", width, "height", height,
		"detections", len(objects),
		"total", time.Duration(res.Processing.TotalNs))
	return res, nil
}

// ProcessFile loads an image from disk and detects objects in it.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*ImageResult, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	res, err := p.ProcessImage(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Source = path
	return res, nil
}

// ProcessBytes decodes an encoded image and detects objects in it.
func (p *Pipeline) ProcessBytes(ctx context.Context, data []byte) (*ImageResult, error) {
	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		return nil, err
	}
	return p.ProcessImage(ctx, img)
}

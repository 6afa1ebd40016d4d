package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ParallelConfig holds configuration for batch processing.
type ParallelConfig struct {
	Workers         int              // Concurrent images (0 = runtime.NumCPU())
	ContinueOnError bool             // Record failures and keep going instead of aborting
	Progress        ProgressCallback // Optional progress reporting
}

// DefaultParallelConfig returns defaults for batch processing.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{Workers: runtime.NumCPU()}
}

// BatchItem is the outcome for one path of a batch.
type BatchItem struct {
	Path   string       `json:"path"`
	Result *ImageResult `json:"result,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// ProcessFiles detects objects in each path concurrently. Items are returned in input order.
//
// Without ContinueOnError the first failure cancels the remaining work and is returned.
// With it, failures are recorded on their item and the returned error is nil.
func (p *Pipeline) ProcessFiles(ctx context.Context, paths []string) ([]BatchItem, error) {
	if len(paths) == 0 {
		return nil, errors.New("no images provided")
	}
	if p == nil || p.engine == nil {
		return nil, ErrPipelineClosed
	}

	cfg := p.cfg.Parallel
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	items := make([]BatchItem, len(paths))
	progress.OnStart(len(paths))
	defer progress.OnComplete()

	var (
		mu   sync.Mutex
		done int
	)
	report := func(idx int, err error) {
		mu.Lock()
		defer mu.Unlock()
		done++
		if err != nil {
			progress.OnError(idx, err)
		}
		progress.OnProgress(done, len(paths))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		items[i].Path = path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := p.ProcessFile(gctx, path)
			report(i, err)
			if err != nil {
				if cfg.ContinueOnError {
					slog.Warn("image failed", "path", path, "error", err)
					items[i].Error = err.Error()
					return nil
				}
				return fmt.Errorf("image %d: %w", i, err)
			}
			items[i].Result = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}

package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/godetect/internal/batch"
	"github.com/MeKo-Tech/godetect/internal/config"
	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <dir|file>...",
		Short: "Process many images concurrently",
		Long: `Discover images in directories (optionally recursively) and run detection on
them with a pool of workers.

Examples:
  godetect batch ./photos
  godetect batch ./photos --recursive --workers 8 --format csv --output results.csv
  godetect batch ./photos --include "*.jpg" --exclude "*_thumb.*"`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args)
		},
	}

	d := config.DefaultConfig()
	f := cmd.Flags()
	f.BoolP("recursive", "r", d.Batch.Recursive, "descend into subdirectories")
	f.StringSlice("include", nil, "only process files matching these glob patterns")
	f.StringSlice("exclude", nil, "skip files matching these glob patterns")
	f.IntP("workers", "w", d.Batch.Workers, "number of parallel workers")
	f.Bool("continue-on-error", d.Batch.ContinueOnError, "record failing images instead of aborting")
	f.Bool("progress", false, "show a progress bar on stderr")
	f.BoolP("quiet", "q", false, "suppress progress and statistics")
	f.Bool("stats", false, "print processing statistics to stderr")
	a.bind(f, map[string]string{
		"recursive":         "batch.recursive",
		"workers":           "batch.workers",
		"continue-on-error": "batch.continue_on_error",
	})
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, args []string) error {
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	showProgress, _ := cmd.Flags().GetBool("progress")
	quiet, _ := cmd.Flags().GetBool("quiet")
	stats, _ := cmd.Flags().GetBool("stats")

	bcfg := &batch.Config{
		Recursive:       a.cfg.Batch.Recursive,
		IncludePatterns: include,
		ExcludePatterns: exclude,
		Format:          a.cfg.Output.Format,
		OutputFile:      a.cfg.Output.File,
		OverlayDir:      a.cfg.Output.OverlayDir,
		Overlay:         a.cfg.ToRenderOptions(),
		Labels:          a.formatOptions(),
		ShowProgress:    showProgress,
		Quiet:           quiet,
	}

	progress := pipeline.MultiProgressCallback{
		pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug).WithInterval(10),
	}
	if console := batch.ProgressFor(bcfg); console != nil {
		progress = append(progress, console)
	}
	pl, err := a.buildPipeline(progress)
	if err != nil {
		return err
	}
	defer func() { _ = pl.Close() }()

	start := time.Now()
	res, err := batch.Process(cmd.Context(), pl, args, bcfg)
	if err != nil {
		return err
	}
	slog.Info("batch completed", "images", len(res.Items), "failed", res.Failed(),
		"duration_ms", time.Since(start).Milliseconds())

	if err := res.SaveResults(cmd.OutOrStdout(), bcfg.Format, bcfg.OutputFile); err != nil {
		return err
	}
	if stats && !quiet {
		res.PrintStats(cmd.ErrOrStderr())
	}
	if failed := res.Failed(); failed == len(res.Items) {
		return fmt.Errorf("all %d images failed", failed)
	}
	return nil
}

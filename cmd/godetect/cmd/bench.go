package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/MeKo-Tech/godetect/internal/benchmark"
	"github.com/MeKo-Tech/godetect/internal/utils"
	"github.com/spf13/cobra"
)

func newBenchCmd(a *app) *cobra.Command {
	var iterations, warmup int

	cmd := &cobra.Command{
		Use:   "bench <image>...",
		Short: "Measure detection latency on sample images",
		Long: `Run the detection pipeline repeatedly on each image and report
latency, throughput and allocations. Combine with --gpu to compare
execution providers.

Examples:
  godetect bench street.jpg
  godetect bench --iterations 20 --warmup 3 samples/*.png
  godetect bench --gpu street.jpg`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations <= 0 {
				return fmt.Errorf("iterations must be positive, got %d", iterations)
			}
			if warmup < 0 {
				return fmt.Errorf("warmup must not be negative, got %d", warmup)
			}

			inputs := make([]benchmark.Input, 0, len(args))
			for _, path := range args {
				img, _, err := utils.LoadImage(path)
				if err != nil {
					return err
				}
				inputs = append(inputs, benchmark.Input{Name: filepath.Base(path), Image: img})
			}

			pl, err := a.buildPipeline(nil)
			if err != nil {
				return err
			}
			defer func() { _ = pl.Close() }()

			slog.Info("benchmarking", "images", len(inputs), "iterations", iterations, "warmup", warmup,
				"gpu", a.cfg.GPU.Enabled)
			results := benchmark.RunAll(cmd.Context(), pl, inputs, benchmark.Options{
				Iterations: iterations,
				Warmup:     warmup,
			})
			for _, r := range results {
				if r.Error != nil {
					slog.Warn("benchmark failed", "image", r.Name, "error", r.Error)
					continue
				}
				slog.Debug("benchmark result", "image", r.Name, "memory_after", r.MemoryAfter.String())
			}
			return writeOutput(cmd, benchmark.Table(results), a.cfg.Output.File)
		},
	}

	cmd.Flags().IntVarP(&iterations, "iterations", "n", 10, "timed runs per image")
	cmd.Flags().IntVar(&warmup, "warmup", 1, "untimed runs per image before measuring")
	return cmd
}

package cmd

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/MeKo-Tech/godetect/internal/batch"
	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/spf13/cobra"
)

func newImageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "image <file>...",
		Short: "Process images for object detection",
		Long: `Process one or more image files and report the detected objects.

Supported formats: JPEG, PNG, BMP, TIFF

Examples:
  godetect image photo.jpg
  godetect image *.png --format table
  godetect image street.jpg --output results.json --overlay-dir overlays`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runImages(cmd, args)
		},
	}
}

func (a *app) runImages(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(a.cfg.Output.Format)
	if !slices.Contains(pipeline.SupportedFormats, format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			format, strings.Join(pipeline.SupportedFormats, ", "))
	}

	pl, err := a.buildPipeline(nil)
	if err != nil {
		return err
	}
	defer func() { _ = pl.Close() }()

	slog.Info("running model", "images", len(args))
	items, err := pl.ProcessFiles(cmd.Context(), args)
	if err != nil {
		return err
	}

	results := make([]*pipeline.ImageResult, 0, len(items))
	for _, it := range items {
		results = append(results, it.Result)
	}

	if dir := a.cfg.Output.OverlayDir; dir != "" {
		if err := batch.WriteOverlays(items, dir, a.cfg.ToRenderOptions()); err != nil {
			return err
		}
	}

	out, err := pipeline.FormatWith(results, format, a.formatOptions())
	if err != nil {
		return err
	}
	return writeOutput(cmd, out, a.cfg.Output.File)
}

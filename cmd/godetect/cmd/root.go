// Package cmd implements the godetect command line.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MeKo-Tech/godetect/internal/batch"
	"github.com/MeKo-Tech/godetect/internal/config"
	"github.com/MeKo-Tech/godetect/internal/detector"
	"github.com/MeKo-Tech/godetect/internal/models"
	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/MeKo-Tech/godetect/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// InferencerFactory creates the inference engine for a resolved pipeline config.
type InferencerFactory func(cfg pipeline.Config) (pipeline.Inferencer, error)

var newInferencer InferencerFactory = func(cfg pipeline.Config) (pipeline.Inferencer, error) {
	return detector.NewEngine(cfg.Detector)
}

// SetInferencerFactory replaces the engine factory and returns a function restoring
// the previous one. Tests use it to run commands without a model file.
func SetInferencerFactory(f InferencerFactory) (restore func()) {
	prev := newInferencer
	newInferencer = f
	return func() { newInferencer = prev }
}

// app carries the state shared by one command tree.
type app struct {
	cfgFile string
	loader  *config.Loader
	cfg     *config.Config
}

// NewRootCommand builds a fresh command tree with its own configuration state.
func NewRootCommand() *cobra.Command {
	a := &app{loader: config.NewLoaderWithViper(viper.New())}

	rootCmd := &cobra.Command{
		Use:   "godetect [image]",
		Short: "SSD object detection for images, PDFs and HTTP",
		Long: `godetect runs an SSD object detection model (ONNX) on images and reports
each detected object with its label, score and pixel bounding box.

With a single image argument the detections are printed as indented JSON.

Examples:
  godetect street.jpg
  godetect image photos/*.png --format table
  godetect batch ./photos --recursive --format csv
  godetect pdf report.pdf --pages 1-3
  godetect serve --port 8080`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initialize(cmd, true)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
				return err
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return a.detectSingle(cmd, args[0])
		},
	}

	a.addGlobalFlags(rootCmd)
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	rootCmd.AddCommand(
		newImageCmd(a),
		newBatchCmd(a),
		newPDFCmd(a),
		newServeCmd(a),
		newBenchCmd(a),
		newModelsCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// GetRootCommand returns a new root command for testing purposes.
func GetRootCommand() *cobra.Command {
	return NewRootCommand()
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) addGlobalFlags(root *cobra.Command) {
	d := config.DefaultConfig()
	pf := root.PersistentFlags()

	pf.StringVar(&a.cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/godetect, /etc/godetect)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	pf.String("models-dir", d.ModelsDir, "directory containing models (can also be set via "+models.EnvModelsDir+")")

	pf.String("model", "", "path to the SSD ONNX model (default: <models-dir>/detection/"+models.DetectionSSDLite+")")
	pf.Int("threads", d.Detector.NumThreads, "intra-op threads for inference (0 = runtime default)")
	pf.Int("input-size", d.Detector.InputSize, "square model input size when the model has dynamic dimensions")
	pf.Float64("score-threshold", d.NMS.ScoreThreshold, "minimum score a box must exceed")
	pf.Float64("iou-threshold", d.NMS.IoUThreshold, "IoU above which overlapping boxes are suppressed")
	pf.Int("max-outputs", d.NMS.MaxOutputs, "maximum number of detections per image")
	pf.String("labels", "", "label table YAML (default: embedded COCO table)")
	pf.Int("label-offset", d.Labels.IndexOffset, "offset added to class indices before label lookup")
	pf.String("on-missing", d.Labels.OnMissing, "label miss policy (error, placeholder)")

	pf.StringP("format", "f", d.Output.Format, "output format ("+strings.Join(pipeline.SupportedFormats, ", ")+")")
	pf.StringP("output", "o", "", "write results to file instead of stdout")
	pf.String("overlay-dir", "", "write <name>_overlay.png images with boxes into this directory")
	pf.String("box-color", d.Output.BoxColor, "overlay box colour (#rrggbb or auto)")
	pf.String("text-color", d.Output.TextColor, "overlay caption colour (#rrggbb)")
	pf.Bool("title-case", d.Output.TitleCase, "title-case labels in text and table output")

	pf.Bool("gpu", false, "use CUDA for inference")
	pf.Int("gpu-device", d.GPU.Device, "CUDA device ID")
	pf.String("gpu-mem-limit", d.GPU.MemoryLimit, "GPU memory limit (e.g. 2GB, 512MB, auto)")

	a.bind(pf, map[string]string{
		"verbose":         "verbose",
		"log-level":       "log_level",
		"models-dir":      "models_dir",
		"model":           "detector.model_path",
		"threads":         "detector.num_threads",
		"input-size":      "detector.input_size",
		"score-threshold": "nms.score_threshold",
		"iou-threshold":   "nms.iou_threshold",
		"max-outputs":     "nms.max_outputs",
		"labels":          "labels.path",
		"label-offset":    "labels.index_offset",
		"on-missing":      "labels.on_missing",
		"format":          "output.format",
		"output":          "output.file",
		"overlay-dir":     "output.overlay_dir",
		"box-color":       "output.box_color",
		"text-color":      "output.text_color",
		"title-case":      "output.title_case",
		"gpu":             "gpu.enabled",
		"gpu-device":      "gpu.device",
		"gpu-mem-limit":   "gpu.memory_limit",
	})
}

// bind maps flag names onto configuration keys.
func (a *app) bind(flags *pflag.FlagSet, keys map[string]string) {
	v := a.loader.GetViper()
	for name, key := range keys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// initialize loads the configuration and installs the logger on stderr.
func (a *app) initialize(cmd *cobra.Command, validate bool) error {
	var err error
	if validate {
		a.cfg, err = a.loader.LoadWithFile(a.cfgFile)
	} else {
		a.cfg, err = a.loader.LoadWithFileWithoutValidation(a.cfgFile)
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	setupLogging(cmd.ErrOrStderr(), a.cfg)
	return nil
}

func setupLogging(w io.Writer, cfg *config.Config) {
	level := slog.LevelInfo
	switch {
	case cfg.Verbose:
		level = slog.LevelDebug
	case cfg.LogLevel == "debug":
		level = slog.LevelDebug
	case cfg.LogLevel == "warn":
		level = slog.LevelWarn
	case cfg.LogLevel == "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// buildPipeline creates the engine and pipeline for the loaded configuration.
// progress may be nil.
func (a *app) buildPipeline(progress pipeline.ProgressCallback) (*pipeline.Pipeline, error) {
	pcfg := a.cfg.ToPipelineConfig()
	slog.Info("loading model", "model_path", pcfg.Detector.ModelPath)

	engine, err := newInferencer(pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize detector: %w", err)
	}
	pl, err := pipeline.NewBuilderFromConfig(pcfg).WithProgressCallback(progress).BuildWith(engine)
	if err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return pl, nil
}

// detectSingle prints the detections for one image as indented JSON.
func (a *app) detectSingle(cmd *cobra.Command, path string) error {
	pl, err := a.buildPipeline(nil)
	if err != nil {
		return err
	}
	defer func() { _ = pl.Close() }()

	slog.Info("running model", "source", path)
	res, err := pl.ProcessFile(cmd.Context(), path)
	if err != nil {
		return err
	}
	slog.Info("detections ready", "source", path, "detections", len(res.Objects))

	out, err := json.MarshalIndent(res.Objects, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode detections: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
		return fmt.Errorf("failed to write to stdout: %w", err)
	}

	if a.cfg.Output.OverlayDir != "" {
		items := []pipeline.BatchItem{{Path: path, Result: res}}
		if err := batch.WriteOverlays(items, a.cfg.Output.OverlayDir, a.cfg.ToRenderOptions()); err != nil {
			return err
		}
		slog.Info("overlay written", "dir", a.cfg.Output.OverlayDir,
			"file", strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))+"_overlay.png")
	}
	return nil
}

// formatOptions returns the label display settings from the loaded config.
func (a *app) formatOptions() pipeline.FormatOptions {
	return pipeline.FormatOptions{TitleCase: a.cfg.Output.TitleCase}
}

// writeOutput writes text to the configured output file, or to stdout.
func writeOutput(cmd *cobra.Command, text, file string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if file == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), text)
		return err
	}
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(file, []byte(text), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	slog.Info("results written", "file", file)
	return nil
}

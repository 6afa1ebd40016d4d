package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/godetect/internal/detector"
	"github.com/MeKo-Tech/godetect/internal/labels"
	"github.com/MeKo-Tech/godetect/internal/models"
)

// Inferencer produces raw SSD tensors for an image. *detector.Engine implements it.
type Inferencer interface {
	Infer(ctx context.Context, img image.Image) (detector.Inference, error)
	GetModelInfo() detector.ModelInfo
	Close() error
}

// Config holds configuration for the detection pipeline and its components.
type Config struct {
	ModelsDir string
	Detector  detector.Config
	NMS       detector.SuppressionOptions
	Labels    labels.Options
	Parallel  ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		ModelsDir: models.GetModelsDir(""),
		Detector:  detector.DefaultConfig(),
		NMS:       detector.DefaultSuppressionOptions(),
		Labels:    labels.Options{IndexOffset: 1, OnMissing: labels.OnMissingError},
		Parallel:  DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg             Config
	modelPathForced bool
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from a fully resolved config. Its model path is kept
// when the models dir changes.
func NewBuilderFromConfig(cfg Config) *Builder {
	return &Builder{cfg: cfg, modelPathForced: cfg.Detector.ModelPath != ""}
}

// WithModelsDir sets the models directory and updates the default model path.
func (b *Builder) WithModelsDir(dir string) *Builder {
	if dir != "" {
		b.cfg.ModelsDir = dir
	}
	if !b.modelPathForced {
		b.cfg.Detector.UpdateModelPath(b.cfg.ModelsDir)
	}
	return b
}

// WithModelPath overrides the detector model path directly.
func (b *Builder) WithModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Detector.ModelPath = path
		b.modelPathForced = true
	}
	return b
}

// WithThreads sets intra-op thread count (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.Detector.NumThreads = n
	}
	return b
}

// WithInputSize sets the model input edge for dynamic graphs.
func (b *Builder) WithInputSize(n int) *Builder {
	if n > 0 {
		b.cfg.Detector.InputSize = n
	}
	return b
}

// WithOutputNames pins the score and box output names. Empty names resolve by shape.
func (b *Builder) WithOutputNames(scores, boxes string) *Builder {
	b.cfg.Detector.ScoresOutput = scores
	b.cfg.Detector.BoxesOutput = boxes
	return b
}

// WithNMS sets the suppression options.
func (b *Builder) WithNMS(opts detector.SuppressionOptions) *Builder {
	b.cfg.NMS = opts
	return b
}

// WithLabels sets the label table options.
func (b *Builder) WithLabels(opts labels.Options) *Builder {
	b.cfg.Labels = opts
	return b
}

// WithWarmupIterations sets model warmup runs to reduce cold-start latency.
func (b *Builder) WithWarmupIterations(n int) *Builder {
	if n >= 0 {
		b.cfg.Detector.WarmupRuns = n
	}
	return b
}

// WithParallelWorkers sets the number of concurrent images in batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.Workers = workers
	}
	return b
}

// WithContinueOnError keeps batch processing going past failed images.
func (b *Builder) WithContinueOnError(enabled bool) *Builder {
	b.cfg.Parallel.ContinueOnError = enabled
	return b
}

// WithProgressCallback sets the progress callback for batch processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.Progress = callback
	return b
}

// WithGPU enables GPU acceleration.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Detector.GPU.UseGPU = enabled
	return b
}

// WithGPUDevice sets the CUDA device ID.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.cfg.Detector.GPU.DeviceID = deviceID
	return b
}

// WithGPUMemoryLimit sets the GPU memory limit in bytes.
func (b *Builder) WithGPUMemoryLimit(limitBytes uint64) *Builder {
	b.cfg.Detector.GPU.GPUMemLimit = limitBytes
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the model exists and the post-processing settings are sane.
func (b *Builder) Validate() error {
	if b.cfg.Detector.ModelPath == "" {
		return errors.New("detector model path is empty")
	}
	if _, err := os.Stat(b.cfg.Detector.ModelPath); err != nil {
		return fmt.Errorf("detector model not found: %s", b.cfg.Detector.ModelPath)
	}
	return b.validatePostprocess()
}

func (b *Builder) validatePostprocess() error {
	if err := b.cfg.NMS.Validate(); err != nil {
		return err
	}
	if b.cfg.Labels.Path != "" {
		if _, err := os.Stat(b.cfg.Labels.Path); err != nil {
			return fmt.Errorf("label table not found: %s", b.cfg.Labels.Path)
		}
	}
	return nil
}

// Pipeline wires the inference engine to the post-processor.
type Pipeline struct {
	cfg    Config
	engine Inferencer
	post   *detector.Postprocessor
}

// Build loads the model and label table.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	engine, err := detector.NewEngine(b.cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	p, err := b.BuildWith(engine)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return p, nil
}

// BuildWith assembles a pipeline around an existing inferencer.
func (b *Builder) BuildWith(engine Inferencer) (*Pipeline, error) {
	if engine == nil {
		return nil, errors.New("inferencer is nil")
	}
	if err := b.validatePostprocess(); err != nil {
		return nil, err
	}
	lookup, err := labels.New(b.cfg.Labels)
	if err != nil {
		return nil, fmt.Errorf("init labels: %w", err)
	}
	post, err := detector.NewPostprocessor(b.cfg.NMS, lookup)
	if err != nil {
		return nil, fmt.Errorf("init post-processor: %w", err)
	}
	slog.Debug("pipeline ready",
		"max_outputs", b.cfg.NMS.MaxOutputs,
		"iou_threshold", b.cfg.NMS.IoUThreshold,
		"score_threshold", b.cfg.NMS.ScoreThreshold)
	return &Pipeline{cfg: b.cfg, engine: engine, post: post}, nil
}

// Close releases the engine.
func (p *Pipeline) Close() error {
	if p.engine == nil {
		return nil
	}
	err := p.engine.Close()
	p.engine = nil
	return err
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Fingerprint identifies the settings that affect results, for cache keys.
func (p *Pipeline) Fingerprint() string {
	info := p.engine.GetModelInfo()
	return fmt.Sprintf("%s|%d|%g|%g|%d|%s|%s",
		info.ModelPath, p.cfg.NMS.MaxOutputs, p.cfg.NMS.IoUThreshold, p.cfg.NMS.ScoreThreshold,
		p.cfg.Labels.IndexOffset, p.cfg.Labels.Path, p.cfg.Labels.OnMissing)
}

// Info returns a map with key pipeline properties and model info.
func (p *Pipeline) Info() map[string]interface{} {
	info := map[string]interface{}{
		"models_dir": p.cfg.ModelsDir,
		"nms": map[string]interface{}{
			"max_outputs":     p.cfg.NMS.MaxOutputs,
			"iou_threshold":   p.cfg.NMS.IoUThreshold,
			"score_threshold": p.cfg.NMS.ScoreThreshold,
		},
		"labels": map[string]interface{}{
			"path":         p.cfg.Labels.Path,
			"index_offset": p.cfg.Labels.IndexOffset,
			"on_missing":   p.cfg.Labels.OnMissing,
		},
		"parallel": map[string]interface{}{
			"workers":           p.cfg.Parallel.Workers,
			"continue_on_error": p.cfg.Parallel.ContinueOnError,
		},
	}
	if p.engine != nil {
		info["detector"] = p.engine.GetModelInfo()
	}
	return info
}

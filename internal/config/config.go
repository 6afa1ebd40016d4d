package config

import (
	"fmt"
	"math"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/godetect/internal/cache"
	"github.com/MeKo-Tech/godetect/internal/detector"
	"github.com/MeKo-Tech/godetect/internal/labels"
	"github.com/MeKo-Tech/godetect/internal/models"
	"github.com/MeKo-Tech/godetect/internal/onnx"
	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/MeKo-Tech/godetect/internal/render"
)

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validCacheBackends = []string{cache.BackendNone, cache.BackendMemory, cache.BackendRedis}
	validOnMissing     = []string{labels.OnMissingError, labels.OnMissingPlaceholder}
)

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	nms := detector.DefaultSuppressionOptions()
	return Config{
		ModelsDir: models.GetModelsDir(""),
		LogLevel:  "info",
		Detector: DetectorConfig{
			NumThreads: 0,
			InputSize:  detector.DefaultInputSize,
		},
		NMS: NMSConfig{
			MaxOutputs:     nms.MaxOutputs,
			IoUThreshold:   nms.IoUThreshold,
			ScoreThreshold: nms.ScoreThreshold,
		},
		Labels: LabelsConfig{
			IndexOffset: 1,
			OnMissing:   labels.OnMissingError,
		},
		Output: OutputConfig{
			Format:    pipeline.FormatJSON,
			BoxColor:  render.AutoColor,
			TextColor: "#ffffff",
			TitleCase: true,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
			},
		},
		Cache: CacheConfig{
			Backend: cache.BackendNone,
			Size:    256,
			TTLSec:  3600,
			Redis: RedisConfig{
				Address: "localhost:6379",
			},
		},
		Batch: BatchConfig{
			Workers: runtime.NumCPU(),
		},
		GPU: GPUConfig{
			MemoryLimit: "auto",
		},
	}
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(pipeline.SupportedFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)",
			c.Output.Format, strings.Join(pipeline.SupportedFormats, ", "))
	}

	if c.Detector.NumThreads < 0 {
		return fmt.Errorf("invalid detector num threads: %d (must not be negative)", c.Detector.NumThreads)
	}
	if c.Detector.InputSize < 0 {
		return fmt.Errorf("invalid detector input size: %d (must not be negative)", c.Detector.InputSize)
	}
	if c.Detector.WarmupIterations < 0 {
		return fmt.Errorf("invalid warmup iterations: %d (must not be negative)", c.Detector.WarmupIterations)
	}

	if err := validateThreshold(c.NMS.IoUThreshold, "nms.iou_threshold"); err != nil {
		return err
	}
	if math.IsNaN(c.NMS.ScoreThreshold) {
		return fmt.Errorf("invalid nms.score_threshold: %v", c.NMS.ScoreThreshold)
	}

	if c.Labels.OnMissing != "" && !slices.Contains(validOnMissing, c.Labels.OnMissing) {
		return fmt.Errorf("invalid labels.on_missing: %s (must be one of: %s)",
			c.Labels.OnMissing, strings.Join(validOnMissing, ", "))
	}

	if c.Output.BoxColor != "" && c.Output.BoxColor != render.AutoColor {
		if _, err := render.ParseHexColor(c.Output.BoxColor); err != nil {
			return fmt.Errorf("invalid output.box_color: %w", err)
		}
	}
	if c.Output.TextColor != "" {
		if _, err := render.ParseHexColor(c.Output.TextColor); err != nil {
			return fmt.Errorf("invalid output.text_color: %w", err)
		}
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	if !slices.Contains(validCacheBackends, c.Cache.Backend) {
		return fmt.Errorf("invalid cache backend: %s (must be one of: %s)",
			c.Cache.Backend, strings.Join(validCacheBackends, ", "))
	}
	if c.Cache.TTLSec < 0 {
		return fmt.Errorf("invalid cache ttl: %d (must not be negative)", c.Cache.TTLSec)
	}

	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if _, err := onnx.ParseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}
	return nil
}

// ToPipelineConfig converts the config to the pipeline's configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		ModelsDir: c.ModelsDir,
		Detector:  c.ToDetectorConfig(),
		NMS:       c.ToSuppressionOptions(),
		Labels:    c.ToLabelOptions(),
		Parallel: pipeline.ParallelConfig{
			Workers:         c.Batch.Workers,
			ContinueOnError: c.Batch.ContinueOnError,
		},
	}
}

// ToDetectorConfig converts the detector and GPU sections to the engine config.
func (c *Config) ToDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.UpdateModelPath(c.ModelsDir)
	if c.Detector.ModelPath != "" {
		cfg.ModelPath = c.Detector.ModelPath
	}
	cfg.NumThreads = c.Detector.NumThreads
	if c.Detector.InputSize > 0 {
		cfg.InputSize = c.Detector.InputSize
	}
	cfg.ScoresOutput = c.Detector.ScoresOutput
	cfg.BoxesOutput = c.Detector.BoxesOutput
	cfg.WarmupRuns = c.Detector.WarmupIterations

	cfg.GPU.UseGPU = c.GPU.Enabled
	cfg.GPU.DeviceID = c.GPU.Device
	if limit, err := onnx.ParseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		cfg.GPU.GPUMemLimit = limit
	}
	return cfg
}

// ToSuppressionOptions converts the nms section.
func (c *Config) ToSuppressionOptions() detector.SuppressionOptions {
	return detector.SuppressionOptions{
		MaxOutputs:     c.NMS.MaxOutputs,
		IoUThreshold:   c.NMS.IoUThreshold,
		ScoreThreshold: c.NMS.ScoreThreshold,
	}
}

// ToLabelOptions converts the labels section.
func (c *Config) ToLabelOptions() labels.Options {
	return labels.Options{
		Path:        c.Labels.Path,
		IndexOffset: c.Labels.IndexOffset,
		OnMissing:   c.Labels.OnMissing,
	}
}

// ToRenderOptions converts the overlay colours.
func (c *Config) ToRenderOptions() render.Options {
	opts := render.DefaultOptions()
	if c.Output.BoxColor != "" {
		opts.BoxColor = c.Output.BoxColor
	}
	if c.Output.TextColor != "" {
		opts.TextColor = c.Output.TextColor
	}
	return opts
}

// ToCacheOptions converts the cache section.
func (c *Config) ToCacheOptions() cache.Options {
	return cache.Options{
		Backend:       c.Cache.Backend,
		Size:          c.Cache.Size,
		TTL:           time.Duration(c.Cache.TTLSec) * time.Second,
		RedisAddress:  c.Cache.Redis.Address,
		RedisPassword: c.Cache.Redis.Password,
		RedisDB:       c.Cache.Redis.DB,
	}
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if math.IsNaN(value) || value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

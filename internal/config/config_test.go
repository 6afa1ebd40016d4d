package config

import (
	"math"
	"testing"
	"time"

	"github.com/MeKo-Tech/godetect/internal/cache"
	"github.com/MeKo-Tech/godetect/internal/labels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }},
		{"format", func(c *Config) { c.Output.Format = "xml" }},
		{"threads", func(c *Config) { c.Detector.NumThreads = -1 }},
		{"input size", func(c *Config) { c.Detector.InputSize = -1 }},
		{"warmup", func(c *Config) { c.Detector.WarmupIterations = -1 }},
		{"iou high", func(c *Config) { c.NMS.IoUThreshold = 1.5 }},
		{"iou nan", func(c *Config) { c.NMS.IoUThreshold = math.NaN() }},
		{"score nan", func(c *Config) { c.NMS.ScoreThreshold = math.NaN() }},
		{"on missing", func(c *Config) { c.Labels.OnMissing = "ignore" }},
		{"box color", func(c *Config) { c.Output.BoxColor = "red" }},
		{"text color", func(c *Config) { c.Output.TextColor = "#zzz" }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }},
		{"cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"cache ttl", func(c *Config) { c.Cache.TTLSec = -1 }},
		{"workers", func(c *Config) { c.Batch.Workers = 0 }},
		{"gpu memory", func(c *Config) { c.GPU.MemoryLimit = "lots" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConverters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/models"
	cfg.Detector.InputSize = 320
	cfg.Detector.ScoresOutput = "scores"
	cfg.NMS.MaxOutputs = 10
	cfg.Labels.OnMissing = labels.OnMissingPlaceholder
	cfg.GPU.Enabled = true
	cfg.GPU.MemoryLimit = "1GB"
	cfg.Batch.Workers = 3
	cfg.Batch.ContinueOnError = true
	cfg.Cache.Backend = cache.BackendMemory
	cfg.Cache.TTLSec = 30
	cfg.Output.BoxColor = "#00ff00"

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, "/models", pc.ModelsDir)
	assert.Contains(t, pc.Detector.ModelPath, "/models")
	assert.Equal(t, 320, pc.Detector.InputSize)
	assert.Equal(t, "scores", pc.Detector.ScoresOutput)
	assert.True(t, pc.Detector.GPU.UseGPU)
	assert.Equal(t, uint64(1<<30), pc.Detector.GPU.GPUMemLimit)
	assert.Equal(t, 10, pc.NMS.MaxOutputs)
	assert.Equal(t, labels.OnMissingPlaceholder, pc.Labels.OnMissing)
	assert.Equal(t, 3, pc.Parallel.Workers)
	assert.True(t, pc.Parallel.ContinueOnError)

	cfg.Detector.ModelPath = "/elsewhere/m.onnx"
	assert.Equal(t, "/elsewhere/m.onnx", cfg.ToDetectorConfig().ModelPath)

	co := cfg.ToCacheOptions()
	assert.Equal(t, cache.BackendMemory, co.Backend)
	assert.Equal(t, 30*time.Second, co.TTL)

	ro := cfg.ToRenderOptions()
	assert.Equal(t, "#00ff00", ro.BoxColor)
	assert.Equal(t, "#ffffff", ro.TextColor)
}

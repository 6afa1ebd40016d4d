package detector

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/godetect/internal/models"
	"github.com/MeKo-Tech/godetect/internal/onnx"
)

// DefaultInputSize is the square input edge used when the model graph leaves it dynamic.
const DefaultInputSize = 300

// Config holds configuration for the SSD inference engine.
type Config struct {
	ModelPath    string         // Path to the ONNX SSD model
	NumThreads   int            // Intra-op threads (0 lets ONNX Runtime decide)
	InputSize    int            // Square input edge for dynamic graphs (default: 300)
	ScoresOutput string         // Name of the [1,N,C] score output; empty resolves by shape
	BoxesOutput  string         // Name of the [1,N,1,4] box output; empty resolves by shape
	WarmupRuns   int            // Blank forward passes run after load
	GPU          onnx.GPUConfig // GPU acceleration configuration
}

// DefaultConfig returns a default engine configuration.
func DefaultConfig() Config {
	return Config{
		ModelPath: models.GetDetectionModelPath(""),
		InputSize: DefaultInputSize,
		GPU:       onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPath points ModelPath at the default model under modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetDetectionModelPath(modelsDir)
}

// validateConfig validates the engine configuration.
func validateConfig(config Config) error {
	if config.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if config.InputSize < 0 {
		return fmt.Errorf("input size must be non-negative, got %d", config.InputSize)
	}
	if config.NumThreads < 0 {
		return fmt.Errorf("num threads must be non-negative, got %d", config.NumThreads)
	}
	if config.ScoresOutput != "" && config.ScoresOutput == config.BoxesOutput {
		return fmt.Errorf("scores and boxes outputs must differ, both are %q", config.ScoresOutput)
	}
	return onnx.ValidateGPUConfig(config.GPU)
}

// validateModelFile checks if the model file exists.
func validateModelFile(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

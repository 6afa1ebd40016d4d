package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/godetect/internal/mempool"
	"github.com/MeKo-Tech/godetect/internal/onnx"
	"github.com/MeKo-Tech/godetect/internal/utils"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrEngineClosed is returned by Infer after Close.
var ErrEngineClosed = errors.New("detector engine is closed")

// Inference holds the raw SSD outputs for one image.
type Inference struct {
	Scores   onnx.Tensor   // [1, N, C]
	Boxes    onnx.Tensor   // [1, N, 1, 4], normalized (minY, minX, maxY, maxX)
	Height   int           // Original image height
	Width    int           // Original image width
	Duration time.Duration // Preprocessing plus forward pass
}

// ModelInfo describes the loaded model.
type ModelInfo struct {
	ModelPath    string `json:"model_path"`
	InputName    string `json:"input_name"`
	InputType    string `json:"input_type"`
	InputHeight  int    `json:"input_height"`
	InputWidth   int    `json:"input_width"`
	ScoresOutput string `json:"scores_output"`
	BoxesOutput  string `json:"boxes_output"`
	GPU          bool   `json:"gpu"`
}

// Engine runs an SSD model with ONNX Runtime.
type Engine struct {
	config  Config
	session *ort.DynamicAdvancedSession
	io      modelIO
	inputH  int
	inputW  int
	mu      sync.RWMutex
}

// NewEngine loads the model described by config.
func NewEngine(config Config) (*Engine, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if err := validateModelFile(config.ModelPath); err != nil {
		return nil, err
	}

	slog.Info("loading model",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"num_threads", config.NumThreads)

	if err := onnx.InitializeRuntime(config.GPU.UseGPU); err != nil {
		return nil, err
	}

	io, err := inspectModel(config.ModelPath, config)
	if err != nil {
		return nil, err
	}

	session, err := createSession(config.ModelPath, io, config)
	if err != nil {
		return nil, err
	}

	h, w := inputDims(io.Input, config.InputSize)
	e := &Engine{config: config, session: session, io: io, inputH: h, inputW: w}

	slog.Debug("engine initialized",
		"input", io.Input.Name,
		"input_height", h,
		"input_width", w,
		"scores_output", io.Outputs.ScoresName,
		"boxes_output", io.Outputs.BoxesName)

	if err := e.Warmup(config.WarmupRuns); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("warmup failed: %w", err)
	}
	return e, nil
}

// Close releases the session. The ONNX environment stays up for other engines.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			slog.Warn("failed to destroy engine session", "error", err)
		}
		e.session = nil
	}
	return nil
}

// GetConfig returns a copy of the engine configuration.
func (e *Engine) GetConfig() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

// GetModelInfo describes the loaded model.
func (e *Engine) GetModelInfo() ModelInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ModelInfo{
		ModelPath:    e.config.ModelPath,
		InputName:    e.io.Input.Name,
		InputType:    fmt.Sprint(e.io.Input.DataType),
		InputHeight:  e.inputH,
		InputWidth:   e.inputW,
		ScoresOutput: e.io.Outputs.ScoresName,
		BoxesOutput:  e.io.Outputs.BoxesName,
		GPU:          e.config.GPU.UseGPU,
	}
}

// Infer runs the model on img and returns the raw score and box tensors.
func (e *Engine) Infer(ctx context.Context, img image.Image) (Inference, error) {
	if err := ctx.Err(); err != nil {
		return Inference{}, err
	}
	if img == nil {
		return Inference{}, &utils.ImageProcessingError{Operation: "infer", Err: errors.New("input image is nil")}
	}
	start := time.Now()
	bounds := img.Bounds()

	slog.Debug("preprocessing image", "width", bounds.Dx(), "height", bounds.Dy())
	resized, err := utils.ResizeForModel(img, e.inputW, e.inputH)
	if err != nil {
		return Inference{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return Inference{}, ErrEngineClosed
	}

	input, release, err := e.newInputTensor(resized)
	if err != nil {
		return Inference{}, err
	}
	defer release()

	slog.Debug("running model")
	outputs := []ort.Value{nil, nil}
	if err := e.session.Run([]ort.Value{input}, outputs); err != nil {
		return Inference{}, fmt.Errorf("inference failed: %w", err)
	}
	defer destroyValues(outputs)

	scores, err := copyFloatOutput(outputs[0], e.io.Outputs.ScoresName)
	if err != nil {
		return Inference{}, err
	}
	boxes, err := copyFloatOutput(outputs[1], e.io.Outputs.BoxesName)
	if err != nil {
		return Inference{}, err
	}

	return Inference{
		Scores:   scores,
		Boxes:    boxes,
		Height:   bounds.Dy(),
		Width:    bounds.Dx(),
		Duration: time.Since(start),
	}, nil
}

// Warmup runs blank forward passes to reduce first-request latency.
func (e *Engine) Warmup(iterations int) error {
	if iterations <= 0 {
		return nil
	}
	blank := image.NewNRGBA(image.Rect(0, 0, e.inputW, e.inputH))
	for range iterations {
		if _, err := e.Infer(context.Background(), blank); err != nil {
			return err
		}
	}
	return nil
}

// newInputTensor builds the [1,H,W,3] input in the model's element type. The returned
// release func destroys the tensor and returns its buffer to the pool.
func (e *Engine) newInputTensor(img *image.NRGBA) (ort.Value, func(), error) {
	shape := ort.NewShape(1, int64(img.Rect.Dy()), int64(img.Rect.Dx()), 3)
	n := int(shape.FlattenedSize())

	switch e.io.Input.DataType {
	case ort.TensorElementDataTypeUint8:
		buf := mempool.GetUint8(n)
		if err := utils.FillNHWCUint8(img, buf); err != nil {
			mempool.PutUint8(buf)
			return nil, nil, err
		}
		t, err := ort.NewTensor(shape, buf)
		if err != nil {
			mempool.PutUint8(buf)
			return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		return t, func() { destroyValues([]ort.Value{t}); mempool.PutUint8(buf) }, nil
	default:
		buf := mempool.GetFloat32(n)
		if err := utils.FillNHWCFloat32(img, buf, utils.SymmetricRange); err != nil {
			mempool.PutFloat32(buf)
			return nil, nil, err
		}
		t, err := ort.NewTensor(shape, buf)
		if err != nil {
			mempool.PutFloat32(buf)
			return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		return t, func() { destroyValues([]ort.Value{t}); mempool.PutFloat32(buf) }, nil
	}
}

// copyFloatOutput copies a runtime-owned float32 output into a Go tensor.
func copyFloatOutput(v ort.Value, name string) (onnx.Tensor, error) {
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return onnx.Tensor{}, fmt.Errorf("output %q is not a float32 tensor", name)
	}
	data := append([]float32(nil), t.GetData()...)
	return onnx.NewTensor(data, t.GetShape()...)
}

func destroyValues(values []ort.Value) {
	for _, v := range values {
		if v == nil {
			continue
		}
		if err := v.Destroy(); err != nil {
			slog.Warn("failed to destroy tensor", "error", err)
		}
	}
}

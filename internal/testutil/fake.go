package testutil

import (
	"context"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/godetect/internal/detector"
	"github.com/MeKo-Tech/godetect/internal/onnx"
)

// FakeDetection is one anchor the fake engine reports.
type FakeDetection struct {
	Class int
	Score float32
	Box   detector.Box // normalized, model storage order
}

// FakeEngine is an in-memory inference engine returning fixed SSD tensors.
// It satisfies the pipeline's Inferencer interface.
type FakeEngine struct {
	Detections []FakeDetection
	NumClasses int
	Err        error
	Delay      time.Duration

	calls  atomic.Int64
	mu     sync.Mutex
	closed bool
}

// NewFakeEngine returns an engine reporting a person and a car with 90 classes.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{
		NumClasses: 90,
		Detections: []FakeDetection{
			{Class: 0, Score: 0.92, Box: detector.Box{MinY: 0.1, MinX: 0.1, MaxY: 0.6, MaxX: 0.4}},
			{Class: 2, Score: 0.81, Box: detector.Box{MinY: 0.5, MinX: 0.5, MaxY: 0.9, MaxX: 0.95}},
		},
	}
}

// Infer implements the pipeline's Inferencer.
func (f *FakeEngine) Infer(ctx context.Context, img image.Image) (detector.Inference, error) {
	f.calls.Add(1)
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return detector.Inference{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return detector.Inference{}, err
	}
	f.mu.Lock()
	failure := f.Err
	f.mu.Unlock()
	if failure != nil {
		return detector.Inference{}, failure
	}

	n := len(f.Detections)
	c := f.NumClasses
	scores := make([]float32, n*c)
	boxes := make([]float32, 0, n*4)
	for i, d := range f.Detections {
		if d.Class >= 0 && d.Class < c {
			scores[i*c+d.Class] = d.Score
		}
		boxes = append(boxes, d.Box.MinY, d.Box.MinX, d.Box.MaxY, d.Box.MaxX)
	}

	st, err := onnx.NewTensor(scores, 1, int64(n), int64(c))
	if err != nil {
		return detector.Inference{}, err
	}
	bt, err := onnx.NewTensor(boxes, 1, int64(n), 1, 4)
	if err != nil {
		return detector.Inference{}, err
	}
	b := img.Bounds()
	return detector.Inference{Scores: st, Boxes: bt, Height: b.Dy(), Width: b.Dx(), Duration: time.Millisecond}, nil
}

// GetModelInfo implements the pipeline's Inferencer.
func (f *FakeEngine) GetModelInfo() detector.ModelInfo {
	return detector.ModelInfo{
		ModelPath:    "fake://ssd",
		InputName:    "image_tensor:0",
		InputType:    "uint8",
		InputHeight:  300,
		InputWidth:   300,
		ScoresOutput: "scores",
		BoxesOutput:  "boxes",
	}
}

// Close implements the pipeline's Inferencer.
func (f *FakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// SetErr changes the error Infer returns while the engine is in use.
func (f *FakeEngine) SetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Err = err
}

// Calls returns how many times Infer ran.
func (f *FakeEngine) Calls() int { return int(f.calls.Load()) }

// Closed reports whether Close was called.
func (f *FakeEngine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

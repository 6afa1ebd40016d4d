package onnx

import (
	"errors"
	"fmt"
	"math"
)

// Tensor represents a simple float32 tensor exchanged with ONNX Runtime.
// Data layout is row-major.
type Tensor struct {
	Data  []float32
	Shape []int64 // e.g., [1, N, C] for scores or [1, N, 1, 4] for boxes
}

// NewTensor builds a tensor and checks that data matches the shape.
func NewTensor(data []float32, shape ...int64) (Tensor, error) {
	t := Tensor{Data: data, Shape: append([]int64(nil), shape...)}
	if err := t.Verify(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}

// NumElements returns the product of the shape dimensions. Products beyond int64 are an error.
func NumElements(shape []int64) (int64, error) {
	if len(shape) == 0 {
		return 0, errors.New("empty shape")
	}
	n := int64(1)
	for i, v := range shape {
		if v < 0 {
			return 0, fmt.Errorf("dimension %d must be >= 0, got %d", i, v)
		}
		if v != 0 && n > math.MaxInt64/v {
			return 0, fmt.Errorf("shape %v overflows the element count", shape)
		}
		n *= v
	}
	return n, nil
}

// Verify checks that the data length matches the shape.
func (t Tensor) Verify() error {
	n, err := NumElements(t.Shape)
	if err != nil {
		return err
	}
	if int64(len(t.Data)) != n {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), n, t.Shape)
	}
	return nil
}

// NewImageTensorNHWC builds a single-image tensor with shape [1, H, W, C].
// data must be length H*W*C in NHWC order.
func NewImageTensorNHWC(data []float32, h, w, c int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	expected := h * w * c
	if len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(h), int64(w), int64(c)}}, nil
}

// ValidateNHWC ensures a shape is [N, H, W, C] with positive dimensions.
func ValidateNHWC(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// TensorStats computes simple statistics for debug output.
func TensorStats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	var minVal, maxVal, mean float32
	minVal, maxVal = data[0], data[0]
	var sum float64
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += float64(v)
	}
	mean = float32(sum / float64(len(data)))
	return minVal, maxVal, mean
}

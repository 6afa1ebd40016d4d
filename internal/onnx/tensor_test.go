package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTensor(t *testing.T) {
	tests := []struct {
		name    string
		data    []float32
		shape   []int64
		wantErr bool
	}{
		{name: "scores", data: make([]float32, 6), shape: []int64{1, 2, 3}},
		{name: "boxes", data: make([]float32, 8), shape: []int64{1, 2, 1, 4}},
		{name: "zero boxes", data: nil, shape: []int64{1, 0, 90}},
		{name: "too short", data: make([]float32, 5), shape: []int64{1, 2, 3}, wantErr: true},
		{name: "negative dim", data: nil, shape: []int64{1, -1, 3}, wantErr: true},
		{name: "empty shape", data: nil, shape: nil, wantErr: true},
		{name: "overflowing shape", data: nil, shape: []int64{1, 1 << 62, 4}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ten, err := NewTensor(tt.data, tt.shape...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.shape, ten.Shape)
		})
	}
}

func TestNewTensorCopiesShape(t *testing.T) {
	shape := []int64{1, 1, 2}
	ten, err := NewTensor([]float32{1, 2}, shape...)
	require.NoError(t, err)
	shape[2] = 5
	assert.Equal(t, int64(2), ten.Shape[2])
}

func TestNewImageTensorNHWC(t *testing.T) {
	ten, err := NewImageTensorNHWC(make([]float32, 4*5*3), 4, 5, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 4, 5, 3}, ten.Shape)
	require.NoError(t, ValidateNHWC(ten.Shape))

	_, err = NewImageTensorNHWC(nil, 4, 5, 3)
	assert.Error(t, err)
	_, err = NewImageTensorNHWC(make([]float32, 10), 4, 5, 3)
	assert.Error(t, err)
	assert.Error(t, ValidateNHWC([]int64{1, 0, 5, 3}))
	assert.Error(t, ValidateNHWC([]int64{1, 5, 3}))
}

func TestTensorStats(t *testing.T) {
	minV, maxV, mean := TensorStats([]float32{1, 2, 3, 6})
	assert.InDelta(t, 1, minV, 1e-6)
	assert.InDelta(t, 6, maxV, 1e-6)
	assert.InDelta(t, 3, mean, 1e-6)

	minV, maxV, mean = TensorStats(nil)
	assert.Zero(t, minV)
	assert.Zero(t, maxV)
	assert.Zero(t, mean)
}

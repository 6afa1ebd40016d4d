package detector

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/godetect/internal/onnx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func ssdInput(dt ort.TensorElementDataType, dims ...int64) ort.InputOutputInfo {
	return ort.InputOutputInfo{Name: "image_tensor:0", Dimensions: ort.NewShape(dims...), DataType: dt}
}

func ssdOutputs() []ort.InputOutputInfo {
	return []ort.InputOutputInfo{
		{Name: "Postprocessor/ExpandDims_1:0", Dimensions: ort.NewShape(1, 1917, 1, 4), DataType: ort.TensorElementDataTypeFloat},
		{Name: "Postprocessor/Slice:0", Dimensions: ort.NewShape(1, 1917, 90), DataType: ort.TensorElementDataTypeFloat},
	}
}

func TestResolveOutputs_ByShape(t *testing.T) {
	b, err := resolveOutputs(ssdOutputs(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "Postprocessor/Slice:0", b.ScoresName)
	assert.Equal(t, "Postprocessor/ExpandDims_1:0", b.BoxesName)
	assert.Equal(t, []string{"Postprocessor/Slice:0", "Postprocessor/ExpandDims_1:0"}, b.names())
}

func TestResolveOutputs_ByName(t *testing.T) {
	outs := append(ssdOutputs(), ort.InputOutputInfo{Name: "raw_scores", Dimensions: ort.NewShape(1, 1917, 91)})

	_, err := resolveOutputs(outs, "", "")
	require.Error(t, err, "two rank-3 outputs are ambiguous")

	b, err := resolveOutputs(outs, "raw_scores", "")
	require.NoError(t, err)
	assert.Equal(t, "raw_scores", b.ScoresName)
	assert.Equal(t, "Postprocessor/ExpandDims_1:0", b.BoxesName)

	_, err = resolveOutputs(outs, "missing", "")
	assert.Error(t, err)
}

func TestResolveOutputs_Missing(t *testing.T) {
	_, err := resolveOutputs(ssdOutputs()[:1], "", "")
	assert.Error(t, err)

	_, err = resolveOutputs(nil, "", "")
	assert.Error(t, err)
}

func TestBindModelIO(t *testing.T) {
	cfg := DefaultConfig()

	io, err := bindModelIO([]ort.InputOutputInfo{ssdInput(ort.TensorElementDataTypeUint8, -1, -1, -1, 3)}, ssdOutputs(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "image_tensor:0", io.Input.Name)

	tests := []struct {
		name   string
		inputs []ort.InputOutputInfo
	}{
		{name: "no inputs"},
		{name: "rank 3 input", inputs: []ort.InputOutputInfo{ssdInput(ort.TensorElementDataTypeUint8, 1, 300, 300)}},
		{name: "nchw input", inputs: []ort.InputOutputInfo{ssdInput(ort.TensorElementDataTypeFloat, 1, 3, 300, 300)}},
		{name: "int64 input", inputs: []ort.InputOutputInfo{ssdInput(ort.TensorElementDataTypeInt64, 1, 300, 300, 3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bindModelIO(tt.inputs, ssdOutputs(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestInputDims(t *testing.T) {
	h, w := inputDims(ssdInput(ort.TensorElementDataTypeUint8, -1, -1, -1, 3), 0)
	assert.Equal(t, DefaultInputSize, h)
	assert.Equal(t, DefaultInputSize, w)

	h, w = inputDims(ssdInput(ort.TensorElementDataTypeUint8, 1, -1, -1, 3), 320)
	assert.Equal(t, 320, h)
	assert.Equal(t, 320, w)

	h, w = inputDims(ssdInput(ort.TensorElementDataTypeFloat, 1, 240, 320, 3), 512)
	assert.Equal(t, 240, h)
	assert.Equal(t, 320, w)
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(DefaultConfig()))

	cfg := DefaultConfig()
	cfg.ModelPath = ""
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.InputSize = -1
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.ScoresOutput, cfg.BoxesOutput = "out", "out"
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.GPU = onnx.GPUConfig{UseGPU: true, DeviceID: -1}
	assert.Error(t, validateConfig(cfg))
}

func TestNewEngine_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "absent.onnx")
	_, err := NewEngine(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model file not found")
}

func TestUpdateModelPath(t *testing.T) {
	cfg := DefaultConfig()
	dir := t.TempDir()
	cfg.UpdateModelPath(dir)
	assert.True(t, strings.HasPrefix(cfg.ModelPath, dir), cfg.ModelPath)
}

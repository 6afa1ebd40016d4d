package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultGPUConfig(t *testing.T) {
	config := DefaultGPUConfig()
	assert.False(t, config.UseGPU)
	assert.Equal(t, 0, config.DeviceID)
	assert.Equal(t, uint64(0), config.GPUMemLimit)
	assert.Equal(t, "kNextPowerOfTwo", config.ArenaExtendStrategy)
}

func TestValidateGPUConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GPUConfig
		wantErr bool
	}{
		{name: "cpu", config: DefaultGPUConfig()},
		{name: "gpu", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "kSameAsRequested"}},
		{name: "negative device", config: GPUConfig{UseGPU: true, DeviceID: -1}, wantErr: true},
		{name: "bad strategy", config: GPUConfig{UseGPU: true, ArenaExtendStrategy: "x"}, wantErr: true},
		{name: "bad strategy ignored on cpu", config: GPUConfig{ArenaExtendStrategy: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGPUConfig(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCUDASettings(t *testing.T) {
	s := cudaSettings(GPUConfig{UseGPU: true, DeviceID: 1, GPUMemLimit: 1024, ArenaExtendStrategy: "kSameAsRequested"})
	assert.Equal(t, "1", s["device_id"])
	assert.Equal(t, "1024", s["gpu_mem_limit"])
	assert.Equal(t, "kSameAsRequested", s["arena_extend_strategy"])

	s = cudaSettings(GPUConfig{UseGPU: true})
	_, ok := s["gpu_mem_limit"]
	assert.False(t, ok)
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "auto", want: 0},
		{in: "512MB", want: 512 << 20},
		{in: "2gb", want: 2 << 30},
		{in: "1.5KB", want: 1536},
		{in: "100B", want: 100},
		{in: "12", wantErr: true},
		{in: "xMB", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMemoryLimit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveLibraryPathFromEnv(t *testing.T) {
	lib := filepath.Join(t.TempDir(), "libonnxruntime-test.so")
	require.NoError(t, os.WriteFile(lib, []byte("stub"), 0o600))
	t.Setenv(EnvLibraryPath, lib)

	got, err := ResolveLibraryPath(false)
	require.NoError(t, err)
	assert.Equal(t, lib, got)
}

func TestCandidateLibraryPathsGPUFirst(t *testing.T) {
	t.Setenv(EnvLibraryPath, "")
	paths, err := candidateLibraryPaths(true)
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Contains(t, paths[0], "gpu")
}

package models

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_RequiresURL(t *testing.T) {
	_, err := Fetch(context.Background(), FetchOptions{ModelsDir: t.TempDir()})
	assert.Error(t, err)
}

func TestFetch_LocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(src, []byte("onnx-bytes"), 0o600))
	dir := t.TempDir()

	path, err := Fetch(context.Background(), FetchOptions{URL: "file://" + src, ModelsDir: dir})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, TypeDetection, DetectionSSDLite), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "onnx-bytes", string(data))
}

func TestFetch_SkipsExistingUnlessForced(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, TypeDetection, "custom.onnx")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o750))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o600))

	src := filepath.Join(t.TempDir(), "new.onnx")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o600))

	opts := FetchOptions{URL: "file://" + src, ModelsDir: dir, Filename: "custom.onnx"}
	_, err := Fetch(context.Background(), opts)
	require.NoError(t, err)
	data, _ := os.ReadFile(dst)
	assert.Equal(t, "old", string(data))

	opts.Force = true
	_, err = Fetch(context.Background(), opts)
	require.NoError(t, err)
	data, _ = os.ReadFile(dst)
	assert.Equal(t, "new", string(data))
}

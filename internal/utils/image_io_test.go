package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 50, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestIsSupportedImage(t *testing.T) {
	for _, p := range []string{"a.jpg", "b.JPEG", "c.png", "d.bmp", "e.tiff", "f.webp", "g.gif"} {
		assert.True(t, IsSupportedImage(p), p)
	}
	for _, p := range []string{"a.pdf", "b", "c.txt"} {
		assert.False(t, IsSupportedImage(p), p)
	}
}

func TestLoadImage(t *testing.T) {
	path := writePNG(t, t.TempDir(), "frame.png", 40, 30)

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, path, meta.Path)
	assert.Equal(t, 30, meta.Height)
	assert.Positive(t, meta.SizeBytes)
	assert.InDelta(t, 40.0/30.0, meta.AspectRatio, 1e-9)
}

func TestLoadImage_Errors(t *testing.T) {
	var procErr *ImageProcessingError

	_, _, err := LoadImage("")
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "load", procErr.Operation)

	_, _, err = LoadImage("notes.txt")
	require.Error(t, err)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, "decode", procErr.Operation)
}

func TestDecodeImageBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 4))))

	img, meta, err := DecodeImageBytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, int64(buf.Len()), meta.SizeBytes)

	_, _, err = DecodeImageBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

package testutil

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// CreateTestImage returns a solid image of the given size.
func CreateTestImage(width, height int, bg color.Color) *image.NRGBA {
	return imaging.New(width, height, bg)
}

// CreateSceneImage draws filled rectangles on a white background. Rects are in pixels.
func CreateSceneImage(width, height int, rects ...image.Rectangle) *image.NRGBA {
	img := CreateTestImage(width, height, color.White)
	fill := imaging.New(1, 1, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	for _, r := range rects {
		r = r.Intersect(img.Bounds())
		if r.Empty() {
			continue
		}
		img = imaging.Paste(img, imaging.Resize(fill, r.Dx(), r.Dy(), imaging.NearestNeighbor), r.Min)
	}
	return img
}

// SaveImage encodes img to path, choosing the format by extension.
func SaveImage(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	return imaging.Save(img, path, imaging.JPEGQuality(90))
}

// WriteImage encodes img to path and returns the path.
func WriteImage(t *testing.T, path string, img image.Image) string {
	t.Helper()
	require.NoError(t, SaveImage(path, img))
	return path
}

// WriteTestImage writes a solid grey image of the given size and returns its path.
func WriteTestImage(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	return WriteImage(t, filepath.Join(dir, name), CreateTestImage(width, height, color.Gray{Y: 128}))
}

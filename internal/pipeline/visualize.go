package pipeline

import (
	"image"

	"github.com/MeKo-Tech/godetect/internal/render"
)

// Annotate draws res's detections over img.
func Annotate(img image.Image, res *ImageResult, opts render.Options) (image.Image, error) {
	if res == nil {
		return img, nil
	}
	return render.Overlay(img, res.Objects, opts)
}

// AnnotateFile draws detections over img and writes the PNG to path.
func AnnotateFile(path string, img image.Image, res *ImageResult, opts render.Options) error {
	out, err := Annotate(img, res, opts)
	if err != nil {
		return err
	}
	return render.SavePNG(path, out)
}

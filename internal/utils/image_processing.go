package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// Normalization maps a 0-255 channel value v to v*Scale + Offset.
type Normalization struct {
	Scale  float32
	Offset float32
}

var (
	// UnitRange maps pixels to [0, 1].
	UnitRange = Normalization{Scale: 1.0 / 255.0}
	// SymmetricRange maps pixels to [-1, 1] as MobileNet float graphs expect.
	SymmetricRange = Normalization{Scale: 2.0 / 255.0, Offset: -1}
)

// ResizeForModel scales img to exactly width x height. A non-positive size keeps
// the original dimensions. Bilinear filtering matches what SSD graphs do internally.
func ResizeForModel(img image.Image, width, height int) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: fmt.Errorf("invalid dimensions %dx%d", b.Dx(), b.Dy())}
	}
	if width <= 0 || height <= 0 || (width == b.Dx() && height == b.Dy()) {
		return imaging.Clone(img), nil
	}
	return imaging.Resize(img, width, height, imaging.Linear), nil
}

// FillNHWCUint8 writes img as interleaved RGB bytes into buf, which must hold
// exactly width*height*3 values. Alpha is dropped.
func FillNHWCUint8(img *image.NRGBA, buf []uint8) error {
	if img == nil {
		return &ImageProcessingError{Operation: "tensor", Err: errors.New("input image is nil")}
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if len(buf) != w*h*3 {
		return &ImageProcessingError{Operation: "tensor", Err: fmt.Errorf("buffer holds %d values, need %d", len(buf), w*h*3)}
	}
	i := 0
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			buf[i] = row[x]
			buf[i+1] = row[x+1]
			buf[i+2] = row[x+2]
			i += 3
		}
	}
	return nil
}

// FillNHWCFloat32 writes img as interleaved, normalized RGB floats into buf,
// which must hold exactly width*height*3 values.
func FillNHWCFloat32(img *image.NRGBA, buf []float32, norm Normalization) error {
	if img == nil {
		return &ImageProcessingError{Operation: "tensor", Err: errors.New("input image is nil")}
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if len(buf) != w*h*3 {
		return &ImageProcessingError{Operation: "tensor", Err: fmt.Errorf("buffer holds %d values, need %d", len(buf), w*h*3)}
	}
	i := 0
	for y := range h {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			buf[i] = float32(row[x])*norm.Scale + norm.Offset
			buf[i+1] = float32(row[x+1])*norm.Scale + norm.Offset
			buf[i+2] = float32(row[x+2])*norm.Scale + norm.Offset
			i += 3
		}
	}
	return nil
}

// Package render draws detections over images.
package render

import (
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/godetect/internal/detector"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font/gofont/goregular"
)

// AutoColor selects a per-label colour instead of a fixed one.
const AutoColor = "auto"

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Options controls overlay appearance.
type Options struct {
	BoxColor  string  // "#rrggbb" or AutoColor
	TextColor string  // "#rrggbb"
	LineWidth float64 // Stroke width in pixels (default: 2)
	FontSize  float64 // Label size in points (default: 14)
}

// DefaultOptions returns the default overlay options.
func DefaultOptions() Options {
	return Options{BoxColor: AutoColor, TextColor: "#ffffff", LineWidth: 2, FontSize: 14}
}

// ParseHexColor parses "#rrggbb" or "#rgb".
func ParseHexColor(s string) (color.Color, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return c.Clamped(), nil
}

// LabelColor returns a stable, readable colour for a label.
func LabelColor(label string) color.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(label))
	hue := float64(h.Sum32() % 360)
	return colorful.Hcl(hue, 0.55, 0.6).Clamped()
}

// Overlay draws each object's box and "label score" caption on a copy of img.
func Overlay(img image.Image, objs []detector.DetectedObject, opts Options) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("overlay: input image is nil")
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = 2
	}
	if opts.FontSize <= 0 {
		opts.FontSize = 14
	}

	var fixed color.Color
	if opts.BoxColor != "" && opts.BoxColor != AutoColor {
		c, err := ParseHexColor(opts.BoxColor)
		if err != nil {
			return nil, err
		}
		fixed = c
	}
	textColor := color.Color(color.White)
	if opts.TextColor != "" {
		c, err := ParseHexColor(opts.TextColor)
		if err != nil {
			return nil, err
		}
		textColor = c
	}

	dc := gg.NewContextForImage(img)
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: opts.FontSize}))
	dc.SetLineWidth(opts.LineWidth)
	origin := img.Bounds().Min

	for _, o := range objs {
		boxColor := fixed
		if boxColor == nil {
			boxColor = LabelColor(o.Label)
		}
		x := o.BBox[0] - float64(origin.X)
		y := o.BBox[1] - float64(origin.Y)

		dc.SetColor(boxColor)
		dc.DrawRectangle(x, y, o.Width(), o.Height())
		dc.Stroke()

		caption := fmt.Sprintf("%s %.2f", o.Label, o.Score)
		tw, th := dc.MeasureString(caption)
		pad := 2.0
		ty := y - th - 2*pad
		if ty < 0 {
			ty = y
		}
		dc.DrawRectangle(x, ty, tw+2*pad, th+2*pad)
		dc.Fill()
		dc.SetColor(textColor)
		dc.DrawStringAnchored(caption, x+pad, ty+pad, 0, 1)
	}
	return dc.Image(), nil
}

// SavePNG writes img to path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create overlay directory: %w", err)
	}
	if err := gg.SavePNG(path, img); err != nil {
		return fmt.Errorf("failed to write overlay: %w", err)
	}
	return nil
}

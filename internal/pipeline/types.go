package pipeline

import (
	"github.com/MeKo-Tech/godetect/internal/detector"
)

// ImageResult is the detection output for a single image.
type ImageResult struct {
	Source     string                    `json:"source,omitempty"`
	Width      int                       `json:"width"`
	Height     int                       `json:"height"`
	Objects    []detector.DetectedObject `json:"objects"`
	Cached     bool                      `json:"cached,omitempty"`
	Processing ProcessingInfo            `json:"processing"`
}

// ProcessingInfo records stage timings in nanoseconds.
type ProcessingInfo struct {
	InferenceNs   int64 `json:"inference_ns"`
	PostprocessNs int64 `json:"postprocess_ns"`
	TotalNs       int64 `json:"total_ns"`
}

// PDFPageResult groups detections for the images embedded in one page.
type PDFPageResult struct {
	PageNumber int            `json:"page_number"`
	Images     []*ImageResult `json:"images"`
}

// PDFResult is the detection output for a PDF document.
type PDFResult struct {
	Filename   string          `json:"filename"`
	TotalPages int             `json:"total_pages"`
	Pages      []PDFPageResult `json:"pages"`
	TotalNs    int64           `json:"total_ns"`
}

// ObjectCount returns the total number of detections across all pages.
func (r *PDFResult) ObjectCount() int {
	n := 0
	for _, p := range r.Pages {
		for _, img := range p.Images {
			n += len(img.Objects)
		}
	}
	return n
}

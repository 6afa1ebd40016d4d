package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/MeKo-Tech/godetect/internal/utils"
)

// maxBatchItems caps the number of images in one batch request.
const maxBatchItems = 10

// BatchDetectRequest carries base64 encoded images for /detect/batch.
type BatchDetectRequest struct {
	Images []BatchImage `json:"images"`
}

// BatchImage is one named image of a batch.
type BatchImage struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// BatchDetectResponse reports per-image outcomes; one failing image does not fail the batch.
type BatchDetectResponse struct {
	Success   bool                `json:"success"`
	RequestID string              `json:"request_id,omitempty"`
	Results   []BatchDetectResult `json:"results"`
	Summary   BatchSummary        `json:"summary"`
}

// BatchDetectResult is the outcome for one image.
type BatchDetectResult struct {
	Name     string                `json:"name"`
	Success  bool                  `json:"success"`
	Result   *pipeline.ImageResult `json:"result,omitempty"`
	Error    string                `json:"error,omitempty"`
	Duration float64               `json:"duration_seconds"`
}

// BatchSummary aggregates a batch.
type BatchSummary struct {
	TotalItems    int     `json:"total_items"`
	Successful    int     `json:"successful"`
	Failed        int     `json:"failed"`
	TotalDuration float64 `json:"total_duration_seconds"`
	AvgItemTime   float64 `json:"avg_item_time_seconds"`
}

// detectBatchHandler runs detection on up to maxBatchItems images sent as JSON.
// The summed image size is held to the upload limit.
func (s *Server) detectBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, jsonBodyLimit(s.maxUpload))
	var req BatchDetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON request: "+err.Error())
		return
	}

	switch n := len(req.Images); {
	case n == 0:
		s.writeError(w, r, http.StatusBadRequest, "no images provided")
		return
	case n > maxBatchItems:
		s.writeError(w, r, http.StatusBadRequest, fmt.Sprintf("batch has %d images, limit is %d", n, maxBatchItems))
		return
	}

	var total int64
	for _, item := range req.Images {
		total += int64(len(item.Data))
	}
	uploadSizeBytes.Observe(float64(total))
	if total > s.maxUpload {
		s.writeError(w, r, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("batch images total %d bytes, limit is %d", total, s.maxUpload))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	resp := BatchDetectResponse{Success: true, RequestID: requestIDFrom(r.Context())}
	for i, item := range req.Images {
		name := item.Name
		if name == "" {
			name = fmt.Sprintf("image_%d", i)
		}
		itemStart := time.Now()
		out := BatchDetectResult{Name: name}

		img, _, err := utils.DecodeImageBytes(item.Data)
		if err == nil {
			var res *pipeline.ImageResult
			res, err = s.detectWithCache(ctx, "batch", item.Data, img)
			if err == nil {
				res.Source = name
				out.Result = res
			}
		} else {
			detectRequestsTotal.WithLabelValues("batch", "error").Inc()
			err = fmt.Errorf("invalid image: %w", err)
		}
		if err != nil {
			slog.Warn("batch item failed", "request_id", resp.RequestID, "name", name, "error", err)
			out.Error = err.Error()
			resp.Summary.Failed++
		} else {
			out.Success = true
			resp.Summary.Successful++
		}
		out.Duration = time.Since(itemStart).Seconds()
		resp.Results = append(resp.Results, out)
	}

	resp.Summary.TotalItems = len(req.Images)
	resp.Summary.TotalDuration = time.Since(start).Seconds()
	resp.Summary.AvgItemTime = resp.Summary.TotalDuration / float64(len(req.Images))
	s.writeJSON(w, http.StatusOK, resp)
}

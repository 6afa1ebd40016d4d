package server

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/godetect/internal/cache"
	"github.com/MeKo-Tech/godetect/internal/detector"
	"github.com/MeKo-Tech/godetect/internal/models"
	"github.com/MeKo-Tech/godetect/internal/pdf"
	"github.com/MeKo-Tech/godetect/internal/pipeline"
	"github.com/MeKo-Tech/godetect/internal/utils"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// modelsHandler lists model assets and the active pipeline settings.
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	infos := models.ListAvailableModels(s.modelsDir)
	list := make([]ModelInfo, len(infos))
	for i, info := range infos {
		list[i] = ModelInfo{
			Name:        info.Name,
			Type:        info.Type,
			Path:        info.Path,
			Present:     info.Present,
			Description: info.Description,
		}
	}

	resp := ModelsResponse{Models: list, Count: len(list)}
	if s.detector != nil {
		resp.Pipeline = s.detector.Info()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// detectImageHandler runs detection on a multipart "image" upload.
func (s *Server) detectImageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, ok := s.readUpload(w, r, "image")
	if !ok {
		return
	}

	img, _, err := utils.DecodeImageBytes(data)
	if err != nil {
		detectRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeError(w, r, http.StatusBadRequest, "invalid image: "+err.Error())
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.detectWithCache(ctx, "image", data, img)
	if err != nil {
		s.writeProcessingError(w, r, err)
		return
	}

	format := requestFormat(r)
	if format != pipeline.FormatJSON {
		s.writeFormatted(w, r, []*pipeline.ImageResult{res}, format)
		return
	}
	s.writeJSON(w, http.StatusOK, DetectResponse{Success: true, RequestID: requestIDFrom(r.Context()), Result: res})
}

// detectPDFHandler runs detection on the images of a multipart "pdf" upload.
func (s *Server) detectPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, ok := s.readUpload(w, r, "pdf")
	if !ok {
		return
	}

	tmp, err := os.CreateTemp("", "godetect-upload-*.pdf")
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		s.writeError(w, r, http.StatusInternalServerError, "failed to store upload")
		return
	}
	_ = tmp.Close()

	var creds *pdf.Credentials
	if pw := r.FormValue("password"); pw != "" {
		creds = &pdf.Credentials{UserPassword: pw, OwnerPassword: pw}
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	start := time.Now()
	res, err := s.detector.ProcessPDF(ctx, tmp.Name(), r.FormValue("pages"), creds)
	if err != nil {
		detectRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeProcessingError(w, r, err)
		return
	}
	res.Filename = uploadName(r, "pdf")
	observeDetection("pdf", time.Since(start).Seconds(), res.ObjectCount())

	format := requestFormat(r)
	if format != pipeline.FormatJSON {
		s.writeFormatted(w, r, pipeline.PDFImages(res), format)
		return
	}
	s.writeJSON(w, http.StatusOK, PDFResponse{Success: true, RequestID: requestIDFrom(r.Context()), Result: res})
}

// readUpload reads a multipart file field, writing the error response on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
			return nil, false
		}
		s.writeError(w, r, http.StatusBadRequest, "failed to parse form data")
		return nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, "no "+field+" file provided")
		return nil, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "failed to read upload")
		return nil, false
	}
	uploadSizeBytes.Observe(float64(header.Size))
	return data, true
}

func uploadName(r *http.Request, field string) string {
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File[field]; len(files) > 0 {
			return files[0].Filename
		}
	}
	return ""
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeoutSec > 0 {
		return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
	}
	return context.WithCancel(r.Context())
}

// detectWithCache answers from the result cache when possible and otherwise runs
// the detector and stores the objects. Cache hits take their size from img.
func (s *Server) detectWithCache(ctx context.Context, kind string, data []byte, img image.Image) (*pipeline.ImageResult, error) {
	key := cache.Key(data, s.detector.Fingerprint())
	if res, ok := s.lookupCache(ctx, key); ok {
		b := img.Bounds()
		res.Width, res.Height = b.Dx(), b.Dy()
		return res, nil
	}

	start := time.Now()
	res, err := s.detector.ProcessImage(ctx, img)
	if err != nil {
		detectRequestsTotal.WithLabelValues(kind, "error").Inc()
		return nil, err
	}
	observeDetection(kind, time.Since(start).Seconds(), len(res.Objects))
	s.storeCache(ctx, key, res.Objects)
	return res, nil
}

func (s *Server) lookupCache(ctx context.Context, key string) (*pipeline.ImageResult, bool) {
	objs, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		cacheLookups.WithLabelValues("error").Inc()
		slog.Warn("cache lookup failed", "error", err)
		return nil, false
	case !ok:
		cacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	cacheLookups.WithLabelValues("hit").Inc()
	return &pipeline.ImageResult{Objects: objs, Cached: true}, true
}

func (s *Server) storeCache(ctx context.Context, key string, objs []detector.DetectedObject) {
	if err := s.cache.Set(ctx, key, objs); err != nil {
		slog.Warn("cache store failed", "error", err)
	}
}

// requestFormat reads "format" from the form or query; json when absent.
func requestFormat(r *http.Request) string {
	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == "" {
		return pipeline.FormatJSON
	}
	return strings.ToLower(format)
}

func (s *Server) writeFormatted(w http.ResponseWriter, r *http.Request, results []*pipeline.ImageResult, format string) {
	out, err := pipeline.FormatWith(results, format, s.format)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	contentType := "text/plain; charset=utf-8"
	if format == pipeline.FormatCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

// statusForError maps processing errors to HTTP status codes.
func statusForError(err error) int {
	var imgErr *utils.ImageProcessingError
	switch {
	case errors.Is(err, detector.ErrShapeMismatch), errors.Is(err, detector.ErrLabelLookupMiss):
		return http.StatusUnprocessableEntity
	case errors.As(err, &imgErr), errors.Is(err, pdf.ErrPasswordRequired):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeProcessingError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	slog.Error("detection failed", "request_id", requestIDFrom(r.Context()), "status", status, "error", err)
	s.writeError(w, r, status, err.Error())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Success: false, RequestID: requestIDFrom(r.Context()), Error: message})
}

package server

import (
	"context"
	"image"
	"net/http"

	"github.com/MeKo-Tech/godetect/internal/cache"
	"github.com/MeKo-Tech/godetect/internal/pdf"
	"github.com/MeKo-Tech/godetect/internal/pipeline"
)

// Detector is the part of the pipeline the server depends on.
type Detector interface {
	ProcessImage(ctx context.Context, img image.Image) (*pipeline.ImageResult, error)
	ProcessPDF(ctx context.Context, filename, pageRange string, creds *pdf.Credentials) (*pipeline.PDFResult, error)
	Fingerprint() string
	Info() map[string]interface{}
	Close() error
}

// Config holds server settings.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	ModelsDir   string
	Version     string
	Format      pipeline.FormatOptions
	RateLimit   *RateLimitConfig // nil disables rate limiting
	Cache       cache.Options
}

// RateLimitConfig configures per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	RequestsPerMinute int
	RequestsPerHour   int
	MaxRequestsPerDay int
	MaxDataPerDay     int64 // bytes
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	detector    Detector
	cache       cache.Cache
	rateLimiter *RateLimiter
	corsOrigin  string
	maxUpload   int64
	timeoutSec  int
	modelsDir   string
	version     string
	format      pipeline.FormatOptions
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ModelInfo describes one model asset for /models.
type ModelInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Path        string `json:"path"`
	Present     bool   `json:"present"`
	Description string `json:"description"`
}

// ModelsResponse is returned by /models.
type ModelsResponse struct {
	Models   []ModelInfo            `json:"models"`
	Count    int                    `json:"count"`
	Pipeline map[string]interface{} `json:"pipeline,omitempty"`
}

// DetectResponse wraps an image detection result.
type DetectResponse struct {
	Success   bool                  `json:"success"`
	RequestID string                `json:"request_id,omitempty"`
	Result    *pipeline.ImageResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// PDFResponse wraps a PDF detection result.
type PDFResponse struct {
	Success   bool                `json:"success"`
	RequestID string              `json:"request_id,omitempty"`
	Result    *pipeline.PDFResult `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

var _ Detector = (*pipeline.Pipeline)(nil)

// NewServer creates a server around det. The detector is owned by the server and
// released by Close.
func NewServer(config Config, det Detector) (*Server, error) {
	c, err := cache.New(config.Cache)
	if err != nil {
		return nil, err
	}

	s := &Server{
		detector:   det,
		cache:      c,
		corsOrigin: config.CORSOrigin,
		maxUpload:  config.MaxUploadMB * 1024 * 1024,
		timeoutSec: config.TimeoutSec,
		modelsDir:  config.ModelsDir,
		version:    config.Version,
		format:     config.Format,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUpload <= 0 {
		s.maxUpload = 50 * 1024 * 1024
	}
	if rl := config.RateLimit; rl != nil {
		s.rateLimiter = NewRateLimiter(rl.RequestsPerMinute, rl.RequestsPerHour, rl.MaxRequestsPerDay, rl.MaxDataPerDay)
	}
	return s, nil
}

// Close releases the detector and cache.
func (s *Server) Close() error {
	var firstErr error
	if s.cache != nil {
		firstErr = s.cache.Close()
	}
	if s.detector != nil {
		if err := s.detector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetupRoutes registers every endpoint on mux.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.wrap(s.healthHandler))
	mux.HandleFunc("/models", s.wrap(s.modelsHandler))
	mux.HandleFunc("/detect/image", s.wrap(s.rateLimitMiddleware(s.detectImageHandler)))
	mux.HandleFunc("/detect/pdf", s.wrap(s.rateLimitMiddleware(s.detectPDFHandler)))
	mux.HandleFunc("/detect/batch", s.wrap(s.rateLimitMiddleware(s.detectBatchHandler)))
	mux.HandleFunc("/ws/detect", s.requestIDMiddleware(s.detectWebSocketHandler))
	mux.Handle("/metrics", metricsHandler())
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return s.requestIDMiddleware(s.corsMiddleware(h))
}

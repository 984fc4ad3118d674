package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hannes/kiji-autolabel/config"
	"github.com/hannes/kiji-autolabel/pii/align"
	"github.com/hannes/kiji-autolabel/pii/dataset"
	detectors "github.com/hannes/kiji-autolabel/pii/detectors"
)

const serviceName = "kiji-autolabel"

// Server exposes the alignment engine over HTTP
type Server struct {
	config    config.ServerConfig
	canon     align.Canonicalizer
	validator *detectors.Validator
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewServer creates a new server instance. canon is shared by all requests and
// must be safe for concurrent use.
func NewServer(cfg config.ServerConfig, canon align.Canonicalizer, validator *detectors.Validator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		config:    cfg,
		canon:     canon,
		validator: validator,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), burst),
		logger:    logger,
	}
}

// Handler returns the routed handler with rate limiting applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthCheck)
	mux.HandleFunc("/api/align", s.handleAlign)
	mux.HandleFunc("/api/canonicalize", s.handleCanonicalize)
	return s.rateLimit(mux)
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.config.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting alignment service", zap.String("addr", s.config.Port))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down alignment service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.corsHandler(w, r)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// healthCheck provides a simple health check endpoint
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.corsHandler(w, r)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, `{"status":"healthy","service":%q}`, serviceName); err != nil {
		s.logger.Warn("failed to write health check response", zap.Error(err))
	}
}

// corsHandler adds CORS headers to the response
func (s *Server) corsHandler(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	switch {
	case origin == "":
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case s.originAllowed(origin):
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}

	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// preflight handles CORS and method checks shared by the API endpoints. It
// returns false when the request has been fully answered.
func (s *Server) preflight(w http.ResponseWriter, r *http.Request) bool {
	s.corsHandler(w, r)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

type alignRequest struct {
	Template string `json:"template"`
	Rendered string `json:"rendered"`
}

type alignResponse struct {
	Text        string              `json:"text"`
	Entities    []align.Span        `json:"entities"`
	Diagnostics align.Diagnostics   `json:"diagnostics"`
	Findings    []detectors.Finding `json:"findings,omitempty"`
	Unlabeled   []detectors.Entity  `json:"unlabeled,omitempty"`
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	if !s.preflight(w, r) {
		return
	}

	var req alignRequest
	if !s.decode(w, r, &req) {
		return
	}

	result := align.AlignWithDiagnostics(req.Template, req.Rendered, s.canon)
	resp := alignResponse{
		Text:        req.Rendered,
		Entities:    result.Spans,
		Diagnostics: result.Diagnostics,
	}
	if s.validator != nil {
		ex := dataset.Example{Text: req.Rendered, Entities: result.Spans}
		resp.Findings = s.validator.Check(ex)
		resp.Unlabeled = s.validator.Unlabeled(ex)
	}

	s.logger.Debug("aligned request",
		zap.Int("entities", len(resp.Entities)),
		zap.Int("anchor_misses", result.Diagnostics.AnchorMisses))
	s.writeJSON(w, http.StatusOK, resp)
}

type canonicalizeRequest struct {
	Labels []string `json:"labels"`
}

type canonicalizeResponse struct {
	Labels map[string]*string `json:"labels"` // nil when the label is dropped
	Drop   []string           `json:"drop,omitempty"`
}

// dropLister is implemented by canonicalizers that can report their drop list.
type dropLister interface {
	DropList() []string
}

func (s *Server) handleCanonicalize(w http.ResponseWriter, r *http.Request) {
	if !s.preflight(w, r) {
		return
	}

	var req canonicalizeRequest
	if !s.decode(w, r, &req) {
		return
	}

	resp := canonicalizeResponse{Labels: make(map[string]*string, len(req.Labels))}
	for _, raw := range req.Labels {
		label, ok := raw, raw != ""
		if s.canon != nil {
			label, ok = s.canon.Canonicalize(raw)
		}
		if !ok {
			resp.Labels[raw] = nil
			continue
		}
		resp.Labels[raw] = &label
	}
	if dl, ok := s.canon.(dropLister); ok {
		resp.Drop = dl.DropList()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// decode reads a JSON body capped at the configured size. On failure it
// writes the error response and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

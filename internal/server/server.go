// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/v0xg/webpilot/internal/agent"
	"github.com/v0xg/webpilot/internal/browser"
	"github.com/v0xg/webpilot/internal/browsererr"
	"github.com/v0xg/webpilot/internal/metrics"
)

// Interactor is the agent surface the server needs.
type Interactor interface {
	Interact(ctx context.Context, command string, options map[string]any) (*agent.Result, error)
	Reset(ctx context.Context) error
	Status(ctx context.Context) browser.Status
}

// Options configures the server.
type Options struct {
	// RateLimit is the sustained /interact rate per second. Zero disables it.
	RateLimit float64
	RateBurst int
}

// Server routes HTTP requests to an Interactor.
type Server struct {
	agent   Interactor
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New creates a server. m may be nil, in which case /metrics is not mounted.
func New(a Interactor, opts Options, logger *zap.Logger, m *metrics.Collector) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		agent:   a,
		logger:  logger.With(zap.String("component", "server")),
		metrics: m,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID, s.observe)

	r.Handle("/interact", s.rateLimited(http.HandlerFunc(s.handleInteract))).Methods(http.MethodPost)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

type interactRequest struct {
	Command string         `json:"command"`
	Options map[string]any `json:"options,omitempty"`
}

type interactResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	var req interactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeFailure(w, r, browsererr.InvalidCommand("Invalid request body: "+err.Error(), ""))
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		s.writeFailure(w, r, browsererr.InvalidCommand("Command must not be empty", ""))
		return
	}

	res, err := s.agent.Interact(r.Context(), req.Command, req.Options)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	data := make(map[string]any, len(res.Data)+1)
	for k, v := range res.Data {
		data[k] = v
	}
	if res.Captcha != nil {
		data["captcha"] = res.Captcha
	}
	writeJSON(w, http.StatusOK, interactResponse{
		Success: true,
		Message: "Successfully executed: " + req.Command,
		Data:    data,
	})
}

func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	rec := browsererr.ToRecord(err)
	status := statusFor(browsererr.KindOf(err))
	s.logger.Warn("interaction failed",
		zap.String("request_id", requestIDFrom(r.Context())),
		zap.String("error_type", rec.ErrorType),
		zap.Int("status", status),
		zap.Error(err))

	writeJSON(w, status, interactResponse{
		Success: false,
		Message: rec.Message,
		Data: map[string]any{
			"error_type":           rec.ErrorType,
			"message":              rec.Message,
			"details":              rec.Details,
			"recovery_suggestions": rec.RecoverySuggestions,
		},
	})
}

// statusFor maps an error kind to the HTTP status of a failed interaction.
func statusFor(kind browsererr.Kind) int {
	switch kind {
	case browsererr.KindInvalidCommand, browsererr.KindUnknownAction:
		return http.StatusBadRequest
	case browsererr.KindElementNotFound, browsererr.KindNavigation,
		browsererr.KindTimeout, browsererr.KindAuthentication:
		return http.StatusUnprocessableEntity
	case browsererr.KindBrowserInitialization:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.agent.Status(r.Context())
	status := "not_initialized"
	if st.Initialized {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"browser_info": st,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.Reset(r.Context()); err != nil {
		s.logger.Error("browser reset failed", zap.Error(err))
		status := http.StatusInternalServerError
		if browsererr.KindOf(err) == browsererr.KindBrowserInitialization ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Browser reset successfully"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

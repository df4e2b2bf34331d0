package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/himanishpuri/resonance/internal/observe"
	"github.com/himanishpuri/resonance/pkg/logger"
	"github.com/himanishpuri/resonance/pkg/models"
	"github.com/himanishpuri/resonance/pkg/resonance"
	"github.com/himanishpuri/resonance/pkg/resonance/storage"
	"github.com/himanishpuri/resonance/pkg/resonance/tension"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service resonance.Service
	config  *ServerConfig
	log     resonance.Logger
	metrics *observe.Metrics

	// streams is cancelled on shutdown to end open tuning streams,
	// which http.Server.Shutdown does not wait for.
	streams context.Context
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr            string
	DBPath          string
	TempDir         string
	SampleRate      int
	MaxUploadBytes  int64
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// NewServer creates a new server instance
func NewServer(service resonance.Service, config *ServerConfig, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = 32 << 20
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger().With("[server]"),
		metrics: metrics,
		streams: context.Background(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidProfile), errors.Is(err, resonance.ErrNothingCaptured):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "Resonance API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":        "GET /health",
			"metrics":       "GET /metrics",
			"profiles":      "GET /api/profiles",
			"createProfile": "POST /api/profiles",
			"getProfile":    "GET /api/profiles/{id}",
			"deleteProfile": "DELETE /api/profiles/{id}",
			"note":          "GET /api/note?freq=&profile=",
			"tension":       "GET /api/tension?length=&freq=",
			"analyze":       "POST /api/analyze",
			"tune":          "GET /ws/tune",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleListProfiles handles GET /api/profiles
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.ListProfiles(r.Context())
	if err != nil {
		s.log.Errorf("Failed to list profiles: %v", err)
		s.respondError(w, statusFor(err), "Failed to retrieve profiles")
		return
	}

	summaries := make([]models.ProfileSummary, len(res.Value))
	for i, p := range res.Value {
		summaries[i] = p.Summary()
	}

	s.respondJSON(w, http.StatusOK, ListProfilesResponse{
		Profiles: summaries,
		Count:    len(summaries),
		Origin:   res.Origin,
		Warning:  degradedWarning(res.RemoteErr),
	})
}

// handleCreateProfile handles POST /api/profiles
func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req CreateProfileRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := req.Profile()
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.service.SaveProfile(r.Context(), p)
	if err != nil {
		s.log.Errorf("Failed to save profile %q: %v", p.Name, err)
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, ProfileResponse{
		Profile: res.Value,
		Origin:  res.Origin,
		Warning: degradedWarning(res.RemoteErr),
	})
}

// handleGetProfile handles GET /api/profiles/{id}. The id may also be a
// profile name.
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	res, err := s.service.FindProfile(r.Context(), id)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Errorf("Failed to get profile %s: %v", id, err)
		}
		s.respondError(w, statusFor(err), err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, ProfileResponse{
		Profile: res.Value,
		Origin:  res.Origin,
		Warning: degradedWarning(res.RemoteErr),
	})
}

// handleDeleteProfile handles DELETE /api/profiles/{id}
func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	res, err := s.service.DeleteProfile(r.Context(), id)
	if err != nil {
		if statusFor(err) != http.StatusNotFound {
			s.log.Errorf("Failed to delete profile %s: %v", id, err)
		}
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to delete profile %s", id))
		return
	}

	s.log.Infof("Deleted profile %s (%s)", id, res.Origin)
	s.respondJSON(w, http.StatusOK, DeleteProfileResponse{
		Message: "Profile deleted successfully",
		ID:      id,
		Origin:  res.Origin,
	})
}

func floatParam(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}

// handleNote handles GET /api/note
func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	freq, err := floatParam(r, "freq")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, ok, err := s.service.MapFrequency(r.Context(), freq, r.URL.Query().Get("profile"))
	if err != nil {
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	if !ok {
		s.respondError(w, http.StatusBadRequest, "freq must be a positive frequency")
		return
	}

	s.respondJSON(w, http.StatusOK, NoteResponse{Frequency: freq, Result: res})
}

// handleTension handles GET /api/tension
func (s *Server) handleTension(w http.ResponseWriter, r *http.Request) {
	length, err := floatParam(r, "length")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	freq, err := floatParam(r, "freq")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, ok := s.service.AssessTension(length, freq)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "length and freq must be positive")
		return
	}

	s.respondJSON(w, http.StatusOK, TensionResponse{
		LengthMm:         length,
		Frequency:        freq,
		MaxSafeFrequency: tension.MaxSafeFrequency(length),
		Metrics:          m,
	})
}

// handleAnalyze handles POST /api/analyze (multipart file upload)
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	opts := resonance.ListenOptions{ProfileID: r.FormValue("profile")}
	if raw := r.FormValue("speaking_length_mm"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			s.respondError(w, http.StatusBadRequest, "speaking_length_mm must be a non-negative number")
			return
		}
		opts.SpeakingLengthMm = v
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	// Save to temporary file, keeping the extension so non-WAV input is converted
	tempFile := filepath.Join(s.config.TempDir, fmt.Sprintf("upload_%d%s", time.Now().UnixNano(), filepath.Ext(header.Filename)))
	out, err := os.Create(tempFile)
	if err != nil {
		s.log.Errorf("Failed to create temp file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to process upload")
		return
	}
	defer os.Remove(tempFile)

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		s.log.Errorf("Failed to save file: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	out.Close()

	s.log.Infof("Analyzing uploaded file: %s", header.Filename)
	a, err := s.service.AnalyzeFile(ctx, tempFile, opts)
	if err != nil {
		s.log.Errorf("Failed to analyze %s: %v", header.Filename, err)
		s.respondError(w, statusFor(err), fmt.Sprintf("Failed to analyze audio: %v", err))
		return
	}

	a.Path = header.Filename
	if r.URL.Query().Get("readings") == "" {
		a.Readings = nil
	}
	s.respondJSON(w, http.StatusOK, a)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes rooms and recordings over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/meetd/internal/api/middleware"
	"github.com/ManuGH/meetd/internal/domain/recordings/coordinator"
	"github.com/ManuGH/meetd/internal/domain/recordings/model"
)

// Service is the recording control plane the handlers drive.
type Service interface {
	StartRecording(ctx context.Context, roomID string) (*model.RecordingInfo, error)
	StopRecording(ctx context.Context, recordingID string) (*model.RecordingInfo, error)
	DeleteRecording(ctx context.Context, recordingID string) (*model.RecordingInfo, error)
	BulkDeleteRecordings(ctx context.Context, recordingIDs []string) (coordinator.BulkDeleteResult, error)
	GetRecording(ctx context.Context, recordingID string) (*model.RecordingInfo, error)
	ListRecordings(ctx context.Context, roomID string) ([]model.RecordingInfo, error)

	CreateRoom(ctx context.Context, room model.Room) (*model.Room, error)
	GetRoom(ctx context.Context, roomID string) (*model.Room, error)
	ListRooms(ctx context.Context) ([]model.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
}

// Config tunes the HTTP surface.
type Config struct {
	RateLimit       int
	RateLimitWindow time.Duration
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Server struct {
	svc     Service
	cfg     Config
	webhook http.Handler
	checks  map[string]HealthCheck
}

type Option func(*Server)

// WithWebhookHandler mounts h at /webhooks/livekit.
func WithWebhookHandler(h http.Handler) Option {
	return func(s *Server) { s.webhook = h }
}

// WithHealthCheck adds a named check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

func NewServer(svc Service, cfg Config, opts ...Option) *Server {
	s := &Server{svc: svc, cfg: cfg, checks: make(map[string]HealthCheck)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		EnableLogging:         true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	if s.webhook != nil {
		r.Method(http.MethodPost, "/webhooks/livekit", s.webhook)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(middleware.RateLimit(middleware.RateLimitConfig{
				RequestLimit: s.cfg.RateLimit,
				WindowSize:   s.cfg.RateLimitWindow,
			}))
		}

		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", s.handleCreateRoom)
			r.Get("/", s.handleListRooms)
			r.Get("/{roomId}", s.handleGetRoom)
			r.Delete("/{roomId}", s.handleDeleteRoom)
		})
		r.Route("/recordings", func(r chi.Router) {
			r.Post("/", s.handleStartRecording)
			r.Get("/", s.handleListRecordings)
			r.Delete("/", s.handleBulkDeleteRecordings)
			r.Get("/{recordingId}", s.handleGetRecording)
			r.Delete("/{recordingId}", s.handleDeleteRecording)
			r.Post("/{recordingId}/stop", s.handleStopRecording)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}

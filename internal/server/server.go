// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noldarim/clickstream/internal/config"
	"github.com/noldarim/clickstream/internal/orchestrator/services"
	"github.com/noldarim/clickstream/internal/telemetry"
)

// Server is the REST + WebSocket API server.
type Server struct {
	httpServer  *http.Server
	broadcaster *EventBroadcaster
}

// New creates and wires up the API server. It does NOT start listening;
// call Run() for that. Events published on publisher are pushed to
// WebSocket subscribers.
func New(
	cfg *config.AppConfig,
	pipelines *services.PipelineService,
	projects *services.ProjectService,
	metrics *telemetry.Metrics,
	publisher *ChannelPublisher,
) *Server {
	registry := NewClientRegistry()
	broadcaster := NewEventBroadcaster(publisher.Events(), registry)
	handlers := NewHandlers(pipelines, projects, cfg.Workflow.SupportedRegions)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           otelhttp.NewHandler(NewRouter(cfg, handlers, registry, metrics), "clickstream-api"),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		broadcaster: broadcaster,
	}
}

// NewRouter builds the chi router serving the control plane API.
func NewRouter(cfg *config.AppConfig, handlers *Handlers, registry *ClientRegistry, metrics *telemetry.Metrics) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(Recovery)
	r.Use(RequestID)
	r.Use(Operator(cfg.Auth))
	r.Use(Logger)
	r.Use(CORS(cfg.Server.AllowedOrigins))
	r.Use(MaxBodySize(cfg.Server.MaxBodyBytes))
	r.Use(Metrics(metrics))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		r.Route("/project", func(r chi.Router) {
			r.Get("/", handlers.ListProjects)
			r.Post("/", handlers.CreateProject)
			r.Get("/verify/{id}", handlers.VerifyProject)
			r.Get("/{id}", handlers.GetProject)
			r.Put("/{id}", handlers.UpdateProject)
			r.Delete("/{id}", handlers.DeleteProject)
		})

		r.Route("/pipeline", func(r chi.Router) {
			r.Get("/", handlers.ListPipelines)
			r.Post("/", handlers.CreatePipeline)
			r.Get("/{id}", handlers.GetPipeline)
			r.Put("/{id}", handlers.UpdatePipeline)
			r.Delete("/{id}", handlers.DeletePipeline)
		})
	})

	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	// WebSocket
	r.Get("/ws", HandleWebSocket(registry, cfg.Server.AllowedOrigins))

	return r
}

// Run starts the event broadcaster goroutine and the HTTP server.
// Blocks until the server is shut down or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		const maxRetries = 3
		for attempt := 1; attempt <= maxRetries; attempt++ {
			func() {
				defer func() {
					if r := recover(); r != nil {
						getLog().Error().Interface("panic", r).Int("attempt", attempt).Msg("Event broadcaster panic")
					}
				}()
				s.broadcaster.Run(ctx)
			}()

			// Normal return (context cancelled), exit without retry.
			if ctx.Err() != nil {
				return
			}

			if attempt < maxRetries {
				getLog().Warn().Int("attempt", attempt).Msg("Restarting event broadcaster after panic")
				time.Sleep(1 * time.Second)
			}
		}
		getLog().Error().Msg("Event broadcaster exhausted retries - events will no longer be dispatched")
	}()

	getLog().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Package api exposes the conversation engine over HTTP.
//
// Routes (all JSON, all wrapped in the models.APIResponse envelope):
//
//	POST /conversations                     create a conversation
//	GET  /conversations/{id}                fetch step list + answers
//	POST /conversations/{id}/submit         submit a raw answer for a step
//	POST /conversations/{id}/confirm        accept a sanitized value
//	POST /conversations/{id}/reformulate    redo a field
//	POST /conversations/{id}/finalize       hand the record downstream
//	GET  /healthz                           liveness probe
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wrightalexc-sweepeace/able-ai-sub000/internal/models"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":8080"

// engine is the narrow conversation surface the API consumes.
type engine interface {
	Start(ctx context.Context, userID string, template models.TemplateType) (*models.Conversation, error)
	Get(ctx context.Context, conversationID string) (*models.Conversation, error)
	Submit(ctx context.Context, conversationID, stepID string, rawValue any) (*models.Conversation, error)
	Confirm(ctx context.Context, conversationID, fieldName string, value any) (*models.Conversation, error)
	Reformulate(ctx context.Context, conversationID, fieldName string) (*models.Conversation, error)
	Finalize(ctx context.Context, conversationID string) (*models.Conversation, error)
}

// Opts holds server configuration.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server routes HTTP requests to the conversation engine.
type Server struct {
	engine engine
	addr   string
}

// NewServer creates an API server for the given engine.
func NewServer(e engine, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{engine: e, addr: cfg.Addr}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.healthzHandler)
	r.Route("/conversations", func(r chi.Router) {
		r.Post("/", s.createConversationHandler)
		r.Route("/{conversationID}", func(r chi.Router) {
			r.Get("/", s.getConversationHandler)
			r.Post("/submit", s.submitHandler)
			r.Post("/confirm", s.confirmHandler)
			r.Post("/reformulate", s.reformulateHandler)
			r.Post("/finalize", s.finalizeHandler)
		})
	})
	return r
}

// Run serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: graceful shutdown failed", "error", err)
			return err
		}
		slog.Info("Server.Run: shut down cleanly")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Package server assembles the gateway's HTTP surface.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/verbalis-ai/verbalis/pkg/gateway/auth"
	"github.com/verbalis-ai/verbalis/pkg/gateway/config"
	"github.com/verbalis-ai/verbalis/pkg/gateway/handlers"
	"github.com/verbalis-ai/verbalis/pkg/gateway/mw"
)

type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// New builds the server with its full middleware chain and routes.
func New(cfg config.Config, h *handlers.Handlers, verifier auth.Verifier, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health endpoints bypass auth.
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)

	api := http.NewServeMux()
	api.HandleFunc("POST /v1/sessions", h.CreateSession)
	api.HandleFunc("GET /v1/sessions", h.ListSessions)
	api.HandleFunc("GET /v1/sessions/{id}", h.GetSession)
	api.HandleFunc("PATCH /v1/sessions/{id}/title", h.UpdateSessionTitle)
	api.HandleFunc("POST /v1/tokens", h.IssueToken)
	api.HandleFunc("POST /v1/messages", h.SaveMessage)
	api.HandleFunc("GET /v1/sessions/{id}/messages", h.ListMessages)
	api.HandleFunc("POST /v1/emotions/analyze", h.AnalyzeEmotion)
	api.HandleFunc("POST /v1/sessions/{id}/emotions", h.RecordEmotion)
	api.HandleFunc("GET /v1/sessions/{id}/emotions", h.ListEmotions)
	api.HandleFunc("GET /v1/sessions/{id}/emotions/stats", h.EmotionStats)
	api.HandleFunc("GET /v1/sessions/{id}/emotions/recent", h.RecentEmotions)
	mux.Handle("/v1/", mw.Chain(api, mw.Auth(verifier)))

	handler := mw.Chain(mux,
		mw.RequestID,
		mw.Recover(logger),
		mw.AccessLog(logger),
		mw.CORS(cfg.CORSAllowedOrigins),
	)

	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           http.TimeoutHandler(handler, cfg.HandlerTimeout, "request timed out"),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ReadTimeout:       cfg.ReadTimeout,
		},
		logger: logger,
	}
}

// ListenAndServe blocks serving requests until Shutdown or a listener
// error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("gateway listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

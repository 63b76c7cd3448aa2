// Package api exposes the Mind Scan HTTP surface: a JSON API that drives a
// session through the analysis journey, a streaming chat endpoint, and the
// share-card artifacts.
package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mindscan-ai/mindscan/internal/flow"
	"github.com/mindscan-ai/mindscan/internal/share"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":8080"

// DefaultServiceURL is the public URL encoded into share QR codes.
const DefaultServiceURL = "https://mind-scan.ai.kr"

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the HTTP listen address.
	Addr string
	// ServiceURL is the public service URL encoded into the share QR code.
	ServiceURL string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithServiceURL sets the public service URL used by the QR endpoint.
func WithServiceURL(url string) Option {
	return func(o *Opts) { o.ServiceURL = url }
}

// Server carries the handler dependencies.
type Server struct {
	flow       *flow.Flow
	renderer   *share.CardRenderer
	serviceURL string
	addr       string
}

// NewServer creates an API server around a conversation flow and a card
// renderer.
func NewServer(f *flow.Flow, renderer *share.CardRenderer, options ...Option) *Server {
	opts := Opts{Addr: DefaultAddr, ServiceURL: DefaultServiceURL}
	for _, opt := range options {
		opt(&opts)
	}
	slog.Debug("api.NewServer: server configured", "addr", opts.Addr, "serviceURL", opts.ServiceURL)
	return &Server{
		flow:       f,
		renderer:   renderer,
		serviceURL: opts.ServiceURL,
		addr:       opts.Addr,
	}
}

// Handler builds the route table. Split from Run so tests can drive the mux
// through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /sessions", s.createSessionHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/start", s.startHandler)
	mux.HandleFunc("POST /sessions/{id}/profile", s.profileHandler)
	mux.HandleFunc("POST /sessions/{id}/analysis", s.analysisHandler)
	mux.HandleFunc("POST /sessions/{id}/continue", s.continueHandler)
	mux.HandleFunc("POST /sessions/{id}/situation", s.situationHandler)
	mux.HandleFunc("POST /sessions/{id}/diagnosis", s.diagnosisHandler)
	mux.HandleFunc("POST /sessions/{id}/scenario", s.selectScenarioHandler)
	mux.HandleFunc("POST /sessions/{id}/redo-situation", s.redoSituationHandler)
	mux.HandleFunc("POST /sessions/{id}/reset-scenario", s.resetScenarioHandler)
	mux.HandleFunc("POST /sessions/{id}/restart", s.restartHandler)
	mux.HandleFunc("POST /sessions/{id}/chat", s.chatHandler)
	mux.HandleFunc("GET /sessions/{id}/share-card", s.shareCardHandler)
	mux.HandleFunc("GET /share/qr", s.qrHandler)
	mux.HandleFunc("GET /health", s.healthHandler)

	return mux
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	slog.Info("Server.Run: Mind Scan API listening", "addr", s.addr)
	if err := http.ListenAndServe(s.addr, s.Handler()); err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

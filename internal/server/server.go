// Package server exposes the bridge's HTTP surface: one inbound webhook
// per provider, the relayed-media fetch endpoint, and the usual health
// and metrics endpoints.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"frontbridge/internal/dispatch"
	"frontbridge/internal/front"
	"frontbridge/internal/metrics"
	"frontbridge/internal/relay"
	"frontbridge/internal/sinch"
	"frontbridge/internal/store"
)

// FrontSender creates inbound messages in the Front inbox.
type FrontSender interface {
	SendText(ctx context.Context, msg front.InboundMessage) error
	SendAttachment(ctx context.Context, msg front.InboundMessage, filename string, file io.Reader) error
}

// ChannelSender delivers app messages to Sinch contacts.
type ChannelSender interface {
	Send(ctx context.Context, contactID string, msg sinch.AppMessage) (string, error)
}

// Server wires the webhook handlers to the translator, the relay, and
// the provider clients.
type Server struct {
	port       int
	frontAPI   FrontSender
	sinchAPI   ChannelSender
	relay      *relay.Relay
	media      *store.Media
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	server     *http.Server
}

// Config configures the server.
type Config struct {
	Port       int
	Front      FrontSender
	Sinch      ChannelSender
	Relay      *relay.Relay
	Media      *store.Media
	Dispatcher *dispatch.Dispatcher
	Logger     *slog.Logger
}

func New(cfg Config) *Server {
	return &Server{
		port:       cfg.Port,
		frontAPI:   cfg.Front,
		sinchAPI:   cfg.Sinch,
		relay:      cfg.Relay,
		media:      cfg.Media,
		dispatcher: cfg.Dispatcher,
		logger:     cfg.Logger,
	}
}

// Routes returns the bridge's HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /inbound/sinch", s.handleSinchInbound)
	mux.HandleFunc("POST /inbound/front", s.handleFrontInbound)
	mux.HandleFunc("GET /images/{id}", s.handleImage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// Start runs the HTTP server until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.Info("bridge listening", "port", s.port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("bridge shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("bridge server: %w", err)
	}
}

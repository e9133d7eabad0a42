package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter builds the HTTP routes for s: the signed route, health and,
// when enabled, metrics.
func NewRouter(s *Service) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware(s.logger.With().Str("component", "http").Logger()))

	router.HandleFunc("/health", healthHandler(s)).Methods(http.MethodGet)

	if s.cfg.Metrics.Enabled && s.registry != nil {
		router.Handle(s.cfg.Metrics.Path, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// Method filtering happens in the handler so non-POST requests get 405.
	router.HandleFunc(s.cfg.Server.RoutePath, s.HandleWebhook())

	return router
}

func healthHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := s.Health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

const writeTimeoutSlack = 5 * time.Second

// Server runs the relay's HTTP listener
type Server struct {
	httpServer *http.Server
	service    *Service
	logger     zerolog.Logger
}

// NewServer creates a server for s listening on the configured port
func NewServer(s *Service) *Server {
	cfg := s.cfg
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           NewRouter(s),
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			// The downstream call is bounded by Forward.Timeout; leave room to write the reply.
			WriteTimeout: cfg.Forward.Timeout + writeTimeoutSlack,
		},
		service: s,
		logger:  s.logger,
	}
}

// Run starts the service and serves until ctx is cancelled, then shuts down
// gracefully within Server.ShutdownTimeout.
func (srv *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", srv.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.httpServer.Addr, err)
	}
	return srv.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := srv.service.Start(ctx); err != nil {
		ln.Close()
		return err
	}
	defer srv.service.Stop()

	errCh := make(chan error, 1)
	go func() {
		srv.logger.Info().Str("addr", ln.Addr().String()).Msg("Listening")
		errCh <- srv.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	srv.logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), srv.service.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

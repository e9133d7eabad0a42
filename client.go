package relay

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/dawitel/ed25519-relay/cache"
	"github.com/dawitel/ed25519-relay/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Service wires the verifier, forwarder, replay guard and recorders for one
// configuration.
type Service struct {
	cfg       *Config
	logger    zerolog.Logger
	verifier  *Verifier
	forwarder *Forwarder
	handler   *Handler
	cache     cache.Cache
	recorder  events.Recorder
	registry  *prometheus.Registry
	mu        sync.RWMutex
	started   bool
}

// ServiceOption customizes a Service
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	recorders []events.Recorder
	registry  *prometheus.Registry
}

// WithEventRecorder adds a recorder next to the built-in log and metrics recorders
func WithEventRecorder(r events.Recorder) ServiceOption {
	return func(o *serviceOptions) {
		o.recorders = append(o.recorders, r)
	}
}

// WithRegistry sets the Prometheus registry metrics are registered with
func WithRegistry(reg *prometheus.Registry) ServiceOption {
	return func(o *serviceOptions) {
		o.registry = reg
	}
}

// NewService creates a new relay service
func NewService(cfg *Config, logger zerolog.Logger, opts ...ServiceOption) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := &serviceOptions{}
	for _, opt := range opts {
		opt(o)
	}

	verifier, err := NewVerifier(cfg.PublicKey)
	if err != nil {
		return nil, err
	}

	recorders := []events.Recorder{events.NewLogRecorder(logger)}

	registry := o.registry
	if cfg.Metrics.Enabled {
		if registry == nil {
			registry = prometheus.NewRegistry()
		}
		metrics, err := events.NewMetricsRecorder(registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		recorders = append(recorders, metrics)
	}
	recorders = append(recorders, o.recorders...)
	recorder := events.Multi(recorders...)

	replayCache, err := newReplayCache(cfg.Replay)
	if err != nil {
		return nil, fmt.Errorf("failed to create replay cache: %w", err)
	}

	forwarder := NewForwarder(cfg, logger)
	handler := NewHandler(
		verifier,
		forwarder,
		logger.With().Str("component", "handler").Logger(),
		cfg.Server.MaxBodySize,
		WithReplayGuard(replayCache, cfg.Replay.TTL),
		WithRecorder(recorder),
	)

	return &Service{
		cfg:       cfg,
		logger:    logger,
		verifier:  verifier,
		forwarder: forwarder,
		handler:   handler,
		cache:     replayCache,
		recorder:  recorder,
		registry:  registry,
	}, nil
}

// Start marks the service ready to take traffic
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("service already started")
	}

	s.started = true
	s.logger.Info().
		Str("route", s.cfg.Server.RoutePath).
		Bool("replay_protection", s.cfg.Replay.Enabled).
		Dur("forward_timeout", s.cfg.Forward.Timeout).
		Msg("Relay service started")

	return nil
}

// Stop releases the replay cache
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to close replay cache")
		}
	}

	s.started = false
	s.logger.Info().Msg("Relay service stopped")

	return nil
}

// Health returns the health status
func (s *Service) Health() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return fmt.Errorf("service not started")
	}

	return nil
}

// HandleWebhook returns the HTTP handler for the signed route
func (s *Service) HandleWebhook() http.HandlerFunc {
	return s.handler.HandleWebhook
}

// Verifier returns the signature verifier
func (s *Service) Verifier() *Verifier {
	return s.verifier
}

// Forwarder returns the downstream forwarder
func (s *Service) Forwarder() *Forwarder {
	return s.forwarder
}

// Registry returns the Prometheus registry, or nil when metrics are disabled
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// Config returns the configuration the service was built from
func (s *Service) Config() *Config {
	return s.cfg
}

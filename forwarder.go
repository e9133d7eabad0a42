package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Payload is a verified request body known to hold exactly one JSON value.
type Payload struct {
	raw json.RawMessage
}

// ParsePayload checks that rawBody is exactly one JSON value. The bytes are
// kept as received so key order, duplicate keys and number spelling survive.
func ParsePayload(rawBody []byte) (*Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(rawBody))

	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
	}

	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after top-level value", ErrPayloadMalformed)
	}

	return &Payload{raw: raw}, nil
}

// Encode returns the compacted JSON value. Only insignificant whitespace is
// removed.
func (p *Payload) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, p.raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DownstreamResponse is what the downstream service answered.
type DownstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Forwarder delivers verified payloads to the downstream service
type Forwarder struct {
	url             string
	httpClient      *http.Client
	circuitBreaker  *gobreaker.CircuitBreaker
	timeout         time.Duration
	maxResponseBody int64
	logger          zerolog.Logger
}

// NewForwarder creates a new forwarder for cfg.Forward.URL
func NewForwarder(cfg *Config, logger zerolog.Logger) *Forwarder {
	httpClient := &http.Client{
		Timeout: cfg.Forward.Timeout,
		// 3xx answers are relayed like any other status.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	f := &Forwarder{
		url:             cfg.Forward.URL,
		httpClient:      httpClient,
		timeout:         cfg.Forward.Timeout,
		maxResponseBody: cfg.Forward.MaxResponseBodySize,
		logger:          logger.With().Str("component", "forwarder").Logger(),
	}

	if cfg.CircuitBreaker.Enabled {
		cb := cfg.CircuitBreaker
		f.circuitBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "downstream",
			MaxRequests: uint32(cb.MaxRequests),
			Interval:    cb.Interval,
			Timeout:     cb.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < uint32(cb.MaxRequests) {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= cb.Threshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				f.logger.Info().
					Str("name", name).
					Str("from", from.String()).
					Str("to", to.String()).
					Msg("Downstream circuit breaker state changed")
			},
		})
	}

	return f
}

// Relay parses rawBody and forwards it once. A parse failure is returned as
// ErrPayloadMalformed without contacting the downstream.
func (f *Forwarder) Relay(ctx context.Context, rawBody []byte, contentType string) (*DownstreamResponse, error) {
	payload, err := ParsePayload(rawBody)
	if err != nil {
		return nil, err
	}
	return f.Forward(ctx, payload, contentType)
}

// Forward issues exactly one POST carrying payload. Any response the
// downstream sends, whatever its status, is returned as is; an error is only
// returned when no complete response was received.
func (f *Forwarder) Forward(ctx context.Context, payload *Payload, contentType string) (*DownstreamResponse, error) {
	body, err := payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
	}

	if f.circuitBreaker == nil {
		return f.post(ctx, body, contentType)
	}

	result, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		return f.post(ctx, body, contentType)
	})
	if err != nil {
		if errors.Is(err, ErrDownstreamUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDownstreamUnavailable, err)
	}

	return result.(*DownstreamResponse), nil
}

func (f *Forwarder) post(ctx context.Context, body []byte, contentType string) (*DownstreamResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", ErrDownstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, f.maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrDownstreamUnavailable, err)
	}
	if int64(len(respBody)) > f.maxResponseBody {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrDownstreamUnavailable, f.maxResponseBody)
	}

	f.logger.Debug().
		Int("status", resp.StatusCode).
		Int("body_size", len(respBody)).
		Msg("Downstream HTTP service response")

	return &DownstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       respBody,
	}, nil
}

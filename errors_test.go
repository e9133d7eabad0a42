package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"authentication", fmt.Errorf("%w: invalid signature", ErrAuthentication), http.StatusUnauthorized},
		{"malformed", fmt.Errorf("%w: eof", ErrPayloadMalformed), http.StatusBadRequest},
		{"too large", ErrBodyTooLarge, http.StatusRequestEntityTooLarge},
		{"media type", ErrUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{"replay store", fmt.Errorf("%w: %w", ErrReplayStoreUnavailable, errors.New("dial tcp")), http.StatusServiceUnavailable},
		{"connection refused", fmt.Errorf("%w: %w", ErrDownstreamUnavailable, errors.New("connection refused")), http.StatusBadGateway},
		{"context deadline", fmt.Errorf("%w: %w", ErrDownstreamUnavailable, context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"client timeout", fmt.Errorf("%w: %w", ErrDownstreamUnavailable, &url.Error{Op: "Post", URL: "http://x", Err: timeoutErr{}}), http.StatusGatewayTimeout},
		{"breaker open", fmt.Errorf("%w: %w", ErrDownstreamUnavailable, gobreaker.ErrOpenState), http.StatusServiceUnavailable},
		{"breaker half open", fmt.Errorf("%w: %w", ErrDownstreamUnavailable, gobreaker.ErrTooManyRequests), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
		{"timeout outside downstream", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

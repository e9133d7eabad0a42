package relay

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/sony/gobreaker"
)

var (
	// ErrAuthentication is returned when a signature is missing, malformed,
	// invalid or replayed.
	ErrAuthentication = errors.New("authentication failed")

	// ErrPayloadMalformed is returned when a verified body is not a single JSON value.
	ErrPayloadMalformed = errors.New("payload is not valid JSON")

	// ErrBodyTooLarge is returned when the request body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrUnsupportedMediaType is returned when the request does not declare a JSON body.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrDownstreamUnavailable is returned when no response was received from the
	// forwarding URL.
	ErrDownstreamUnavailable = errors.New("downstream unavailable")

	// ErrReplayStoreUnavailable is returned when the replay guard cannot reach its store.
	ErrReplayStoreUnavailable = errors.New("replay store unavailable")

	// ErrConfigurationMissing is returned at startup when required settings are absent.
	ErrConfigurationMissing = errors.New("configuration missing")
)

// StatusFor maps a pipeline error to the status code sent to the caller.
// A nil error maps to 200.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPayloadMalformed):
		return http.StatusBadRequest
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrReplayStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrDownstreamUnavailable):
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return http.StatusServiceUnavailable
		}
		if isTimeout(err) {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

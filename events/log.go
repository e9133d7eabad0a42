package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogRecorder writes events as structured zerolog entries.
type LogRecorder struct {
	logger zerolog.Logger
}

// NewLogRecorder creates a recorder that logs every event
func NewLogRecorder(logger zerolog.Logger) *LogRecorder {
	return &LogRecorder{
		logger: logger.With().Str("component", "events").Logger(),
	}
}

// Record logs the event at a level matching its severity
func (r *LogRecorder) Record(_ context.Context, e Event) {
	var entry *zerolog.Event
	switch e.Kind {
	case SignatureAccepted:
		entry = r.logger.Info()
	case DownstreamResponded:
		if e.Status >= 500 {
			entry = r.logger.Warn()
		} else {
			entry = r.logger.Debug()
		}
	case DownstreamFailed:
		entry = r.logger.Error()
	default:
		entry = r.logger.Warn()
	}

	if e.Status != 0 {
		entry = entry.Int("status", e.Status)
	}
	if e.Duration > 0 {
		entry = entry.Dur("duration", e.Duration)
	}
	if e.Reason != "" {
		entry = entry.Str("reason", e.Reason)
	}
	if e.Err != nil {
		entry = entry.Err(e.Err)
	}

	entry.Str("event", string(e.Kind)).Msg(message(e.Kind))
}

func message(k Kind) string {
	switch k {
	case SignatureAccepted:
		return "Validated signature"
	case SignatureRejected:
		return "Signature invalid"
	case ReplayRejected:
		return "Signature already seen"
	case BodyTooLarge:
		return "Webhook request body exceeds maximum size"
	case PayloadMalformed:
		return "Verified payload is not valid JSON"
	case DownstreamResponded:
		return "Downstream HTTP service responded"
	case DownstreamFailed:
		return "Downstream HTTP service unreachable"
	default:
		return string(k)
	}
}

// Package events carries the relay's observability signals. Components emit
// an Event for every verification decision and downstream outcome through an
// injected Recorder, so sinks (logs, metrics, test capture) can be swapped
// without touching the pipeline.
package events

import (
	"context"
	"time"
)

// Kind identifies what happened.
type Kind string

const (
	SignatureAccepted   Kind = "signature_accepted"
	SignatureRejected   Kind = "signature_rejected"
	ReplayRejected      Kind = "replay_rejected"
	BodyTooLarge        Kind = "body_too_large"
	PayloadMalformed    Kind = "payload_malformed"
	DownstreamResponded Kind = "downstream_responded"
	DownstreamFailed    Kind = "downstream_failed"
)

// Event is a single observability signal.
type Event struct {
	Kind Kind
	// Status is the downstream status for DownstreamResponded, or the status
	// returned to the caller otherwise. Zero when not applicable.
	Status   int
	Duration time.Duration
	Err      error
	Reason   string
}

// Recorder receives events. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// RecorderFunc adapts a function to a Recorder.
type RecorderFunc func(ctx context.Context, e Event)

func (f RecorderFunc) Record(ctx context.Context, e Event) {
	f(ctx, e)
}

type nop struct{}

func (nop) Record(context.Context, Event) {}

// Nop returns a Recorder that discards everything.
func Nop() Recorder {
	return nop{}
}

type multi []Recorder

func (m multi) Record(ctx context.Context, e Event) {
	for _, r := range m {
		r.Record(ctx, e)
	}
}

// Multi fans an event out to every non-nil recorder in order.
func Multi(recorders ...Recorder) Recorder {
	out := make(multi, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return Nop()
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

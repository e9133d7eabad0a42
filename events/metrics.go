package events

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder counts events and observes downstream latency.
type MetricsRecorder struct {
	eventCounter       *prometheus.CounterVec
	downstreamDuration *prometheus.HistogramVec
}

// NewMetricsRecorder creates the relay collectors and registers them with reg
func NewMetricsRecorder(reg prometheus.Registerer) (*MetricsRecorder, error) {
	m := &MetricsRecorder{
		eventCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "relay",
				Name:      "events_total",
				Help:      "Total number of relay pipeline events by kind",
			},
			[]string{"kind"},
		),
		downstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "relay",
				Subsystem: "downstream",
				Name:      "duration_seconds",
				Help:      "Downstream call duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"outcome", "status"},
		),
	}

	for _, c := range []prometheus.Collector{m.eventCounter, m.downstreamDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Record implements Recorder
func (m *MetricsRecorder) Record(_ context.Context, e Event) {
	m.eventCounter.WithLabelValues(string(e.Kind)).Inc()

	switch e.Kind {
	case DownstreamResponded:
		m.downstreamDuration.WithLabelValues("responded", strconv.Itoa(e.Status)).Observe(e.Duration.Seconds())
	case DownstreamFailed:
		m.downstreamDuration.WithLabelValues("failed", strconv.Itoa(e.Status)).Observe(e.Duration.Seconds())
	}
}

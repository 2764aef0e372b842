// Package observability exposes runtime counters for the router.
// Everything here is advisory; losing a sample never affects delivery.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeCorrected = "corrected"
	OutcomeFallback  = "fallback"
)

// Metrics aggregates the Prometheus instruments shared across components.
type Metrics struct {
	registry *prometheus.Registry

	BroadcastFrames    prometheus.Counter
	DroppedFrames      prometheus.Counter
	Corrections        *prometheus.CounterVec
	CorrectionLanguage *prometheus.CounterVec
	PersistenceErrors  prometheus.Counter
	FlaggedMessages    prometheus.Counter
	ActiveRooms        prometheus.Gauge
	ActiveSessions     prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		BroadcastFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_broadcast_frames_total",
			Help: "Frames enqueued towards connected sessions.",
		}),
		DroppedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_dropped_frames_total",
			Help: "Frames discarded by the drop-oldest overflow policy.",
		}),
		Corrections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_corrections_total",
			Help: "Correction pipeline outcomes.",
		}, []string{"outcome"}),
		CorrectionLanguage: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_correction_language_total",
			Help: "Messages entering the correction pipeline by detected language.",
		}, []string{"lang"}),
		PersistenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_persistence_errors_total",
			Help: "Fire-and-forget persistence operations that failed.",
		}),
		FlaggedMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "chat_flagged_messages_total",
			Help: "Messages containing at least one flagged term.",
		}),
		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_rooms",
			Help: "Room workers currently addressable by the router.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "chat_active_sessions",
			Help: "Live sessions across all rooms.",
		}),
	}
}

// Registry exposes the underlying registry for the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records placement and lifecycle outcomes.
type EngineMetrics struct {
	placementDuration   *prometheus.HistogramVec
	placements          *prometheus.CounterVec
	transitions         *prometheus.CounterVec
	reservationFailures prometheus.Counter
	inventoryReleases   prometheus.Counter
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
// A nil registerer yields a no-op recorder, which keeps tests quiet.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	placementDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_placement_duration_seconds",
		Help:    "Duration of order placements in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_placements_total",
		Help: "Order placement attempts by outcome.",
	}, []string{"outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by source and target state.",
	}, []string{"from", "to"})
	reservationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_reservation_failures_total",
		Help: "Reservation batches rejected for insufficient stock.",
	})
	inventoryReleases := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_releases_total",
		Help: "Inventory releases performed on cancellation.",
	})
	reg.MustRegister(placementDuration, placements, transitions, reservationFailures, inventoryReleases)
	return &EngineMetrics{
		placementDuration:   placementDuration,
		placements:          placements,
		transitions:         transitions,
		reservationFailures: reservationFailures,
		inventoryReleases:   inventoryReleases,
	}
}

// ObservePlacement records one placement attempt and its duration.
func (m *EngineMetrics) ObservePlacement(outcome string, duration time.Duration) {
	if m == nil || m.placements == nil {
		return
	}
	label := normalizeLabel(outcome)
	m.placements.WithLabelValues(label).Inc()
	m.placementDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// IncTransition counts a committed status transition.
func (m *EngineMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncReservationFailure counts a rejected reservation batch.
func (m *EngineMetrics) IncReservationFailure() {
	if m == nil || m.reservationFailures == nil {
		return
	}
	m.reservationFailures.Inc()
}

// IncInventoryRelease counts a performed (non-duplicate) inventory release.
func (m *EngineMetrics) IncInventoryRelease() {
	if m == nil || m.inventoryReleases == nil {
		return
	}
	m.inventoryReleases.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

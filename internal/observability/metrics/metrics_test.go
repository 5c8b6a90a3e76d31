package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestQueueMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewQueueMetrics(reg)
	m.ObserveBooking("morning")
	m.ObserveRejection("morning", "already_booked")
	m.ObserveTransition("consulted")
	m.ObserveCreateLatency("evening", 0.02)
}

func TestQueueMetricsNilSafe(t *testing.T) {
	var m *QueueMetrics
	m.ObserveBooking("morning")
	m.ObserveRejection("evening", "window_closed")
	m.ObserveTransition("no_show")
	m.ObserveCreateLatency("morning", 0.1)
}

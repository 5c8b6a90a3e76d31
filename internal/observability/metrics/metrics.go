package metrics

import "github.com/prometheus/client_golang/prometheus"

// QueueMetrics exposes counters/histograms for the booking queue.
type QueueMetrics struct {
	bookingsTotal    *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	createLatency    *prometheus.HistogramVec
}

func NewQueueMetrics(reg prometheus.Registerer) *QueueMetrics {
	m := &QueueMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicq",
			Subsystem: "queue",
			Name:      "bookings_total",
			Help:      "Total bookings accepted",
		}, []string{"slot"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicq",
			Subsystem: "queue",
			Name:      "rejections_total",
			Help:      "Total booking attempts rejected",
		}, []string{"slot", "reason"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicq",
			Subsystem: "queue",
			Name:      "status_transitions_total",
			Help:      "Total booking status transitions",
		}, []string{"to"}),
		createLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicq",
			Subsystem: "queue",
			Name:      "create_latency_seconds",
			Help:      "Latency of booking creation including queue number assignment",
			Buckets:   prometheus.DefBuckets,
		}, []string{"slot"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.rejectionsTotal, m.transitionsTotal, m.createLatency)
	return m
}

func (m *QueueMetrics) ObserveBooking(slot string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(slot).Inc()
}

func (m *QueueMetrics) ObserveRejection(slot, reason string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(slot, reason).Inc()
}

func (m *QueueMetrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to).Inc()
}

func (m *QueueMetrics) ObserveCreateLatency(slot string, seconds float64) {
	if m == nil {
		return
	}
	m.createLatency.WithLabelValues(slot).Observe(seconds)
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for consultation flows.
type IntakeMetrics struct {
	turnsTotal          *prometheus.CounterVec
	turnLatency         *prometheus.HistogramVec
	collaboratorFailure *prometheus.CounterVec
	severityTotal       *prometheus.CounterVec
	bookingsTotal       *prometheus.CounterVec
	activeSessions      prometheus.Gauge
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardio",
			Subsystem: "intake",
			Name:      "turns_total",
			Help:      "Inbound patient messages handled, by session state",
		}, []string{"state"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cardio",
			Subsystem: "intake",
			Name:      "turn_latency_seconds",
			Help:      "Time to produce a reply, by session state",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		collaboratorFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardio",
			Subsystem: "intake",
			Name:      "collaborator_failures_total",
			Help:      "Failed calls to NLP, calendar, notification or persistence",
		}, []string{"collaborator", "op"}),
		severityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardio",
			Subsystem: "intake",
			Name:      "severity_total",
			Help:      "Classified consultations by severity tier",
		}, []string{"level"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cardio",
			Subsystem: "intake",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cardio",
			Subsystem: "channel",
			Name:      "active_sessions",
			Help:      "Currently connected chat sessions",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.collaboratorFailure, m.severityTotal, m.bookingsTotal, m.activeSessions)
	return m
}

func (m *IntakeMetrics) ObserveTurn(state string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(state).Inc()
	m.turnLatency.WithLabelValues(state).Observe(seconds)
}

func (m *IntakeMetrics) ObserveCollaboratorFailure(collaborator, op string) {
	if m == nil {
		return
	}
	m.collaboratorFailure.WithLabelValues(collaborator, op).Inc()
}

func (m *IntakeMetrics) ObserveSeverity(level string) {
	if m == nil {
		return
	}
	m.severityTotal.WithLabelValues(level).Inc()
}

func (m *IntakeMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *IntakeMetrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *IntakeMetrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

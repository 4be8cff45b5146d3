package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	PassesSubmitted      prometheus.Counter
	PassesApproved       prometheus.Counter
	PassesRejected       prometheus.Counter
	ExitsRecorded        prometheus.Counter
	EntriesRecorded      prometheus.Counter
	LateEntries          prometheus.Counter
	AttendanceMarked     prometheus.Counter
	NotificationsDropped prometheus.Counter
	RequestLatency       *prometheus.HistogramVec
}

// New creates all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates all metrics on the given registerer. Tests pass a fresh
// registry so repeated construction does not collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PassesSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgate_passes_submitted_total",
			Help: "Total number of gate pass requests submitted",
		}),
		PassesApproved: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgate_passes_approved_total",
			Help: "Total number of gate passes approved",
		}),
		PassesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgate_passes_rejected_total",
			Help: "Total number of gate passes rejected",
		}),
		ExitsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgate_exits_recorded_total",
			Help: "Total number of gate exits recorded",
		}),
		EntriesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgate_entries_recorded_total",
			Help: "Total number of gate entries recorded",
		}),
		LateEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgate_late_entries_total",
			Help: "Total number of gate entries recorded after the pass expired",
		}),
		AttendanceMarked: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgate_attendance_marked_total",
			Help: "Total number of attendance records created",
		}),
		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "passgate_notifications_dropped_total",
			Help: "Total number of notifications dropped due to a full buffer",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "passgate_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) IncPassSubmitted() { m.PassesSubmitted.Inc() }
func (m *Metrics) IncPassApproved()  { m.PassesApproved.Inc() }
func (m *Metrics) IncPassRejected()  { m.PassesRejected.Inc() }
func (m *Metrics) IncExitRecorded()  { m.ExitsRecorded.Inc() }

func (m *Metrics) IncEntryRecorded(late bool) {
	m.EntriesRecorded.Inc()
	if late {
		m.LateEntries.Inc()
	}
}

func (m *Metrics) IncAttendanceMarked() { m.AttendanceMarked.Inc() }

func (m *Metrics) IncNotificationsDropped() { m.NotificationsDropped.Inc() }

// ObserveRequest records one request's latency under its route pattern.
func (m *Metrics) ObserveRequest(route string, seconds float64) {
	m.RequestLatency.WithLabelValues(route).Observe(seconds)
}

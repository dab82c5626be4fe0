package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics хранит все метрики Prometheus сервиса.
// Методы безопасны для nil-получателя, чтобы тесты могли обходиться без регистра.
type Metrics struct {
	IncidentsCreated    prometheus.Counter
	StatusTransitions   *prometheus.CounterVec
	AssignmentConflicts prometheus.Counter
	MissionsIssued      prometheus.Counter
	MissionsRevoked     prometheus.Counter
	MissionRejections   *prometheus.CounterVec
	DispatchLookups     *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	HandlerFailures     *prometheus.CounterVec
	FramesDelivered     *prometheus.CounterVec
	FramesDropped       prometheus.Counter
	ActiveConnections   prometheus.Gauge

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New создает и регистрирует метрики в переданном регистре
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IncidentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_incidents_created_total",
			Help: "Total number of SOS incidents created.",
		}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_status_transitions_total",
			Help: "Applied SOS status transitions.",
		}, []string{"from", "to"}),
		AssignmentConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_assignment_conflicts_total",
			Help: "Rescuer assignments rejected because another rescuer won.",
		}),
		MissionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_missions_issued_total",
			Help: "Mission credentials issued.",
		}),
		MissionsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_missions_revoked_total",
			Help: "Mission credentials revoked.",
		}),
		MissionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_mission_rejections_total",
			Help: "Mission verifications that failed.",
		}, []string{"reason"}),
		DispatchLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_dispatch_lookups_total",
			Help: "Nearest headquarters lookups by outcome.",
		}, []string{"outcome"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_events_published_total",
			Help: "Domain events published on the in-process bus.",
		}, []string{"type"}),
		HandlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_event_handler_failures_total",
			Help: "Event handler errors and panics isolated by the bus.",
		}, []string{"subscriber"}),
		FramesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sos_realtime_frames_delivered_total",
			Help: "Frames queued to live connections.",
		}, []string{"type"}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sos_realtime_frames_dropped_total",
			Help: "Frames dropped because a connection buffer was full.",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sos_realtime_active_connections",
			Help: "Live real-time connections.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	reg.MustRegister(
		m.IncidentsCreated,
		m.StatusTransitions,
		m.AssignmentConflicts,
		m.MissionsIssued,
		m.MissionsRevoked,
		m.MissionRejections,
		m.DispatchLookups,
		m.EventsPublished,
		m.HandlerFailures,
		m.FramesDelivered,
		m.FramesDropped,
		m.ActiveConnections,
		m.httpRequestsTotal,
		m.httpRequestDuration,
	)
	return m
}

// Handler - хэндлер Prometheus для default-регистра
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware измеряет запросы gin по шаблону маршрута
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

func (m *Metrics) IncIncidentsCreated() {
	if m != nil {
		m.IncidentsCreated.Inc()
	}
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncAssignmentConflicts() {
	if m != nil {
		m.AssignmentConflicts.Inc()
	}
}

func (m *Metrics) IncMissionsIssued() {
	if m != nil {
		m.MissionsIssued.Inc()
	}
}

func (m *Metrics) AddMissionsRevoked(n int) {
	if m != nil && n > 0 {
		m.MissionsRevoked.Add(float64(n))
	}
}

func (m *Metrics) IncMissionRejections(reason string) {
	if m != nil {
		m.MissionRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncDispatchLookups(outcome string) {
	if m != nil {
		m.DispatchLookups.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncEventsPublished(eventType string) {
	if m != nil {
		m.EventsPublished.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncHandlerFailures(subscriber string) {
	if m != nil {
		m.HandlerFailures.WithLabelValues(subscriber).Inc()
	}
}

func (m *Metrics) IncFramesDelivered(eventType string) {
	if m != nil {
		m.FramesDelivered.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncFramesDropped() {
	if m != nil {
		m.FramesDropped.Inc()
	}
}

func (m *Metrics) SetActiveConnections(n int) {
	if m != nil {
		m.ActiveConnections.Set(float64(n))
	}
}

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsRecorder is the domain-counter surface the services depend on.
type metricsRecorder interface {
	SessionLogged()
	InvoiceIssued(kind string)
	AlertRaised(kind string)
	ReminderSent(stage string)
}

// noopMetrics satisfies metricsRecorder when instrumentation is disabled.
type noopMetrics struct{}

func (noopMetrics) SessionLogged()       {}
func (noopMetrics) InvoiceIssued(string) {}
func (noopMetrics) AlertRaised(string)   {}
func (noopMetrics) ReminderSent(string)  {}

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface,
// the report cache and the billing domain.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	sessionsLogged  prometheus.Counter
	invoicesIssued  *prometheus.CounterVec
	alertsRaised    *prometheus.CounterVec
	remindersSent   *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_cache_hits_total",
		Help: "Total report cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "report_cache_misses_total",
		Help: "Total report cache misses",
	})

	sessionsLogged := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sessions_logged_total",
		Help: "Total tutoring sessions logged on timesheets",
	})

	invoicesIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoices_issued_total",
		Help: "Total parent invoices issued",
	}, []string{"kind"})

	alertsRaised := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_raised_total",
		Help: "Total compliance alerts raised",
	}, []string{"type"})

	remindersSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_sent_total",
		Help: "Total invoice payment reminders sent",
	}, []string{"stage"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		sessionsLogged, invoicesIssued, alertsRaised, remindersSent, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		sessionsLogged:  sessionsLogged,
		invoicesIssued:  invoicesIssued,
		alertsRaised:    alertsRaised,
		remindersSent:   remindersSent,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a report cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// SessionLogged counts a logged session.
func (m *MetricsService) SessionLogged() {
	if m == nil {
		return
	}
	m.sessionsLogged.Inc()
}

// InvoiceIssued counts an issued parent invoice by kind.
func (m *MetricsService) InvoiceIssued(kind string) {
	if m == nil {
		return
	}
	m.invoicesIssued.WithLabelValues(kind).Inc()
}

// AlertRaised counts a raised compliance alert by type.
func (m *MetricsService) AlertRaised(kind string) {
	if m == nil {
		return
	}
	m.alertsRaised.WithLabelValues(kind).Inc()
}

// ReminderSent counts a payment reminder by stage.
func (m *MetricsService) ReminderSent(stage string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(stage).Inc()
}

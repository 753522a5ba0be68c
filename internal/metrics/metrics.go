package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry. It implements services.Observer.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	fetches   *prometheus.CounterVec
	records   *prometheus.GaugeVec
	anomalies *prometheus.GaugeVec
	mutations *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "menu_fetches_total",
			Help:      "Menu record fetches by outcome (ok, failed, discarded).",
		}, []string{"tenant", "outcome"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "menu_records",
			Help:      "Records in the last committed menu snapshot.",
		}, []string{"tenant"}),
		anomalies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "menu_tree_anomalies",
			Help:      "Orphan, cycle and duplicate records in the last committed snapshot.",
		}, []string{"tenant"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "menu_mutations_total",
			Help:      "Menu mutations by kind and result.",
		}, []string{"tenant", "kind", "result", "reason"}),
	}
	m.registry.MustRegister(
		m.requests, m.duration, m.fetches, m.records, m.anomalies, m.mutations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FetchCompleted(tenantID string, records int, anomalies int) {
	m.fetches.WithLabelValues(tenantID, "ok").Inc()
	m.records.WithLabelValues(tenantID).Set(float64(records))
	m.anomalies.WithLabelValues(tenantID).Set(float64(anomalies))
}

func (m *Metrics) FetchFailed(tenantID string) {
	m.fetches.WithLabelValues(tenantID, "failed").Inc()
}

func (m *Metrics) FetchDiscarded(tenantID string) {
	m.fetches.WithLabelValues(tenantID, "discarded").Inc()
}

func (m *Metrics) MutationApplied(tenantID string, kind string) {
	m.mutations.WithLabelValues(tenantID, kind, "applied", "").Inc()
}

func (m *Metrics) MutationRejected(tenantID string, kind string, reason string) {
	m.mutations.WithLabelValues(tenantID, kind, "rejected", reason).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Middleware records request count and latency. route maps a request to a
// bounded label, normally the matched route template.
func (m *Metrics) Middleware(route func(*http.Request) string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		label := "other"
		if route != nil {
			if v := route(r); v != "" {
				label = v
			}
		}
		m.requests.WithLabelValues(r.Method, label, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, label).Observe(time.Since(start).Seconds())
	})
}

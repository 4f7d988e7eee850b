package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/odyssey-erp/purchasing/internal/jobs"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	receipts        *prometheus.CounterVec
	movements       *prometheus.CounterVec
	lockFailures    prometheus.Counter
	jobs            *jobmetrics.Metrics
}

// NewMetrics menginisialisasi registry, metrik HTTP dan metrik bisnis.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasing_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "purchasing_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasing_po_transitions_total",
		Help: "Jumlah transisi status purchase order berdasarkan status tujuan.",
	}, []string{"status"})
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasing_goods_receipts_total",
		Help: "Jumlah goods receipt berdasarkan status inspeksi.",
	}, []string{"inspection_status"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchasing_inventory_movements_total",
		Help: "Mutasi stok yang diproses gateway, applied atau duplicate.",
	}, []string{"result"})
	lockFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "purchasing_po_lock_failures_total",
		Help: "Jumlah kegagalan mengambil lock per purchase order.",
	})
	registry.MustRegister(requests, duration, transitions, receipts, movements, lockFailures)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		transitions:     transitions,
		receipts:        receipts,
		movements:       movements,
		lockFailures:    lockFailures,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// Jobs mengembalikan metrik job yang terdaftar di registry yang sama.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// POTransition mencatat transisi status purchase order.
func (m *Metrics) POTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}

// ReceiptSubmitted mencatat goods receipt yang berhasil di-commit.
func (m *Metrics) ReceiptSubmitted(inspectionStatus string) {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues(inspectionStatus).Inc()
}

// LockFailed mencatat lock purchase order yang gagal diperoleh.
func (m *Metrics) LockFailed() {
	if m == nil {
		return
	}
	m.lockFailures.Inc()
}

// MovementsApplied mencatat hasil gateway inventory.
func (m *Metrics) MovementsApplied(applied, duplicates int) {
	if m == nil {
		return
	}
	if applied > 0 {
		m.movements.WithLabelValues("applied").Add(float64(applied))
	}
	if duplicates > 0 {
		m.movements.WithLabelValues("duplicate").Add(float64(duplicates))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}

package observability

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	TargetRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "target_requests_total",
			Help: "Total number of requests sent to the target API by operation and status code",
		},
		[]string{"operation", "code"},
	)
	TargetRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "target_request_duration_seconds",
			Help:    "Target API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"operation"},
	)

	TasksSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_submitted_total",
			Help: "Total number of tasks accepted by the target API",
		},
		[]string{"category"},
	)
	SubmitFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submit_failures_total",
			Help: "Total number of rejected or failed submissions",
		},
		[]string{"category"},
	)
	StatusChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_checks_total",
			Help: "Total number of status checks by outcome",
		},
		[]string{"outcome"},
	)
	TasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_completed_total",
			Help: "Total number of tasks observed terminal, by category and phase",
		},
		[]string{"category", "phase"},
	)
	TaskLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "task_latency_seconds",
			Help:    "Submission-to-observed-completion latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"category"},
	)
	OutstandingTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outstanding_tasks",
			Help: "Number of submitted tasks not yet observed terminal",
		},
	)
	DrainRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drain_remaining_tasks",
			Help: "Number of tasks still unresolved in the drain phase",
		},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors with the default registry. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(TargetRequestsTotal)
		prometheus.MustRegister(TargetRequestDuration)
		prometheus.MustRegister(TasksSubmittedTotal)
		prometheus.MustRegister(SubmitFailuresTotal)
		prometheus.MustRegister(StatusChecksTotal)
		prometheus.MustRegister(TasksCompletedTotal)
		prometheus.MustRegister(TaskLatency)
		prometheus.MustRegister(OutstandingTasks)
		prometheus.MustRegister(DrainRemaining)
	})
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		HTTPRequestsTotal.WithLabelValues(route, r.Method, http.StatusText(ww.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(dur)
	})
}

// ObserveTargetRequest records one call to the target API. code is 0 for transport errors.
func ObserveTargetRequest(operation string, code int, dur time.Duration) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	TargetRequestsTotal.WithLabelValues(operation, label).Inc()
	TargetRequestDuration.WithLabelValues(operation).Observe(dur.Seconds())
}

func SubmitTask(category string) {
	TasksSubmittedTotal.WithLabelValues(category).Inc()
	OutstandingTasks.Inc()
}

func FailSubmit(category string) {
	SubmitFailuresTotal.WithLabelValues(category).Inc()
}

func CheckStatus(outcome string) {
	StatusChecksTotal.WithLabelValues(outcome).Inc()
}

// CompleteTask records a retired task and its latency in seconds.
func CompleteTask(category, phase string, latency float64) {
	TasksCompletedTotal.WithLabelValues(category, phase).Inc()
	TaskLatency.WithLabelValues(category).Observe(latency)
	OutstandingTasks.Dec()
}

func SetDrainRemaining(n int) {
	DrainRemaining.Set(float64(n))
}

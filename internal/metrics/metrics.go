package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	refreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	refreshReuseTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_refresh_reuse_detected_total",
			Help: "Presentations of an already rotated refresh token",
		},
	)

	logoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logout_total",
			Help: "Logouts by outcome",
		},
		[]string{"outcome"},
	)

	refreshTokensSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_refresh_tokens_swept_total",
			Help: "Stale refresh token records deleted by cleanup",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Recorder implements ports.AuthMetrics on the process-wide registry.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (Recorder) RecordLogin(outcome string) {
	loginTotal.WithLabelValues(outcome).Inc()
}

func (Recorder) RecordRefresh(outcome string) {
	refreshTotal.WithLabelValues(outcome).Inc()
}

func (Recorder) RecordRefreshReuse() {
	refreshReuseTotal.Inc()
}

func (Recorder) RecordLogout(outcome string) {
	logoutTotal.WithLabelValues(outcome).Inc()
}

func (Recorder) RecordSwept(count int64) {
	refreshTokensSwept.Add(float64(count))
}

// Middleware records request count, latency and in-flight requests, labelled
// by the matched chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

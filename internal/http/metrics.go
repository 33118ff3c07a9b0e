package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes of POST /expenses, used as the expenses_recorded_total label.
const (
	outcomeRecorded  = "recorded"
	outcomeRejected  = "rejected"
	outcomeMalformed = "malformed"
	outcomeError     = "error"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expense_http_requests_total",
		Help: "Total HTTP requests processed, labeled by route and status code",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "expense_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "route"})

	expensesRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expenses_recorded_total",
		Help: "Record attempts, labeled by outcome",
	}, []string{"outcome"})

	rateLimitClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "expense_rate_limit_clients",
		Help: "Client IPs currently tracked by the POST rate limiter",
	})

	rateLimitRejected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "expense_rate_limit_rejected_requests",
		Help: "Requests refused by the rate limiter since the server started",
	})
)

// metricsHandler refreshes the limiter gauges before serving the registry.
func (s *Server) metricsHandler() http.Handler {
	h := promhttp.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := s.limiter.GetMetrics()
		rateLimitClients.Set(float64(m.ClientCount))
		rateLimitRejected.Set(float64(m.Rejected))
		h.ServeHTTP(w, r)
	})
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

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// metricsMiddleware records request counts and latency per route template,
// so /expenses/{date} stays a single series.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

package service

import (
	"net/http"
	"strconv"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/slither/rest"
	"github.com/gorilla/mux"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/negroni"
	"golang.org/x/time/rate"
)

const metricsNamespace = "slither"

type requestMetrics struct {
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	rateLimitRejects prometheus.Counter
}

func newRequestMetrics(registry *prometheus.Registry) *requestMetrics {
	m := &requestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		}),
		rateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_limit_rejects_total",
			Help:      "Total number of requests rejected due to rate limiting",
		}),
	}

	registry.MustRegister(
		m.requests,
		m.duration,
		m.inFlight,
		m.rateLimitRejects,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// middleware records every routed request, labeled by the route
// template rather than the raw path.
func (m *requestMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		rw := negroni.NewResponseWriter(w)
		next.ServeHTTP(rw, r)

		tpl := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if t, err := current.GetPathTemplate(); err == nil {
				tpl = t
			}
		}

		m.requests.WithLabelValues(r.Method, tpl, strconv.Itoa(rw.Status())).Inc()
		m.duration.WithLabelValues(r.Method, tpl).Observe(time.Since(start).Seconds())
	})
}

// rateLimiter throttles every request except those to exempt paths.
type rateLimiter struct {
	limiter *rate.Limiter
	exempt  map[string]bool
	rejects prometheus.Counter
}

func (l *rateLimiter) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if l.exempt[r.URL.Path] || l.limiter.Allow() {
			next(w, r)
			return
		}

		if l.rejects != nil {
			l.rejects.Inc()
		}
		grip.Debug(message.Fields{
			"message": "rate limit exceeded",
			"method":  r.Method,
			"path":    r.URL.Path,
			"remote":  r.RemoteAddr,
		})

		apiErr := rest.Errorf(rest.RateLimited, "Rate limit exceeded")
		w.Header().Set("Retry-After", "1")
		gimlet.WriteJSONResponse(w, apiErr.StatusCode, apiErr)
	}
}

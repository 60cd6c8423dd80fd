package service

import (
	"context"
	"net/http"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/slither"
	"github.com/evergreen-ci/slither/rest/data"
	"github.com/evergreen-ci/slither/rest/route"
	"github.com/gorilla/handlers"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"golang.org/x/time/rate"
)

const (
	statusPath  = "/status"
	metricsPath = "/metrics"
)

// GetServer produces an HTTP server instance for a handler.
func GetServer(addr string, n http.Handler) *http.Server {
	grip.Notice(message.Fields{
		"action":  "starting service",
		"service": addr,
		"build":   slither.BuildRevision,
		"process": grip.Name(),
	})

	return &http.Server{
		Addr:              addr,
		Handler:           n,
		ReadTimeout:       time.Minute,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      time.Minute,
	}
}

// HealthCheck reports whether the storage behind the resources can be
// reached.
type HealthCheck func(context.Context) error

// GetRouter builds the handler for the service: every resource under
// the configured prefix, a status endpoint and, unless disabled,
// prometheus metrics.
func GetRouter(conf slither.APIConfig, sc data.Connector, check HealthCheck, resources ...*route.Resource) (http.Handler, error) {
	app := gimlet.NewApp()
	app.NoVersions = true
	app.ResetMiddleware()
	app.AddMiddleware(gimlet.MakeRecoveryLogger())

	var metrics *requestMetrics
	if !conf.DisableMetrics {
		registry := prometheus.NewRegistry()
		metrics = newRequestMetrics(registry)
		app.AddRoute(metricsPath).Get().Handler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	if conf.RateLimit > 0 {
		limiter := &rateLimiter{
			limiter: rate.NewLimiter(rate.Limit(conf.RateLimit), conf.Burst),
			exempt:  map[string]bool{statusPath: true, metricsPath: true},
		}
		if metrics != nil {
			limiter.rejects = metrics.rateLimitRejects
		}
		app.AddMiddleware(gimlet.WrapperMiddleware(limiter.wrap))
	}

	app.AddRoute(statusPath).Get().Handler(statusHandler(check, resources))

	if err := app.Resolve(); err != nil {
		return nil, errors.Wrap(err, "resolving routes")
	}
	router, err := app.Router()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	router.Use(otelmux.Middleware(slither.ProgramName))
	if metrics != nil {
		router.Use(metrics.middleware)
	}

	root := router
	if conf.Prefix != "" {
		root = router.PathPrefix(conf.Prefix).Subrouter()
	}
	route.AttachHandler(root, sc, resources...)

	handler, err := app.Handler()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if conf.TrustProxyHeaders {
		handler = handlers.ProxyHeaders(handler)
	}

	return handler, nil
}

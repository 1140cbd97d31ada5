// Package obs holds the Prometheus collectors exported on /metrics.
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the counters below.
const (
	OK   = "ok"
	Fail = "fail"
)

var (
	Provisioned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_provisioning_total",
		Help: "Account provisioning attempts by outcome.",
	}, []string{"outcome"})

	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authority_sessions_issued_total",
		Help: "Refresh sessions created by registration or login.",
	})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	Refreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_refreshes_total",
		Help: "Access token refreshes by outcome.",
	}, []string{"outcome"})

	Revocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_revocations_total",
		Help: "Refresh token revocations by outcome.",
	}, []string{"outcome"})

	TokensConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_single_use_consumed_total",
		Help: "Single-use token consumption by kind and outcome.",
	}, []string{"kind", "outcome"})

	GuardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_guard_rejections_total",
		Help: "Requests stopped by the authorization guard by gate.",
	}, []string{"gate"})

	EmailDispatchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_email_dispatch_failures_total",
		Help: "Email hand-offs that failed after commit.",
	}, []string{"kind"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_http_requests_total",
		Help: "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "authority_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// Outcome maps an error to the ok/fail label.
func Outcome(err error) string {
	if err != nil {
		return Fail
	}
	return OK
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Instrument records request counts and latency per matched route.
func Instrument() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

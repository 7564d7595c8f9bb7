package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blog_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	registrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_registrations_total",
			Help: "Total number of registered users",
		},
	)

	postsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_posts_created_total",
			Help: "Total number of blog posts created",
		},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blog_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	sessionsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blog_sessions_purged_total",
			Help: "Expired sessions removed by cleanup",
		},
	)
)

// routeLabel names the request by the pattern the mux matched, so unknown
// paths all land in one series. It is only set once the mux has run.
func routeLabel(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	return r.Pattern
}

package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmerrifield20/SecretTriage/internal/triage/model"
)

var (
	triageRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	triageRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "triage_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	triageClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_classifications_total",
		Help: "Total classified findings by final verdict and decision method.",
	}, []string{"verdict", "method"})

	triageJudgeCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_judge_calls_total",
		Help: "Total external judge calls by outcome.",
	}, []string{"outcome"})

	triageJudgeHealthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_judge_health_checks_total",
		Help: "Total dependency health probes by target and result.",
	}, []string{"target", "result"})

	triageWebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "triage_webhook_deliveries_total",
		Help: "Total webhook deliveries by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		triageRequestsTotal.WithLabelValues(method, path, status).Inc()
		triageRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordClassification counts one classified finding.
func RecordClassification(verdict model.Verdict, method model.Method) {
	triageClassificationsTotal.WithLabelValues(string(verdict), string(method)).Inc()
}

// RecordJudgeCall counts one judge call outcome.
func RecordJudgeCall(outcome string) {
	triageJudgeCallsTotal.WithLabelValues(outcome).Inc()
}

// RecordHealthCheck records a health check probe result.
func RecordHealthCheck(target string, success bool) {
	triageJudgeHealthChecksTotal.WithLabelValues(target, result(success)).Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt outcome.
func RecordWebhookDelivery(success bool) {
	triageWebhookDeliveriesTotal.WithLabelValues(result(success)).Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

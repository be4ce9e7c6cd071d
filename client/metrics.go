package client

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors recorded by the metrics interceptor.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the client collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netops",
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "GraphQL requests by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "netops",
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "GraphQL request latency by operation, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.requests, m.duration)

	return m
}

func (m *Metrics) Interceptor() RequestInterceptor {
	return func(ctx context.Context, req *http.Request, info *GQLRequestInfo, out any, next RequestInterceptorFunc) error {
		start := time.Now()
		err := next(ctx, req, info, out)
		m.duration.WithLabelValues(info.OperationName).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(info.OperationName, outcome(err)).Inc()

		return err
	}
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var errResp *ErrorResponse
	if errors.As(err, &errResp) {
		if errResp.NetworkError != nil {
			return "http_error"
		}
		return "graphql_error"
	}
	return "error"
}

// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for transport activity. Entities report every
// completed operation; the CLI exposes the default registry over HTTP.

package control

import (
	"net/http"

	"github.com/momentics/hioload-sock/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	opsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hioload_sock_ops_total",
		Help: "Transport operations by backend, operation and outcome code",
	}, []string{"backend", "op", "code"})

	bytesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hioload_sock_bytes_total",
		Help: "Payload bytes moved by backend and operation",
	}, []string{"backend", "op"})

	openHandles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hioload_sock_open_handles",
		Help: "Handle pairs currently owned by live entities",
	}, []string{"backend", "kind"})
)

// ObserveOp records one finished operation and, on success, its byte count.
func ObserveOp(backend, op string, n int, err error) {
	opsCounter.WithLabelValues(backend, op, api.CodeOf(err).String()).Inc()
	if err == nil && n > 0 {
		bytesCounter.WithLabelValues(backend, op).Add(float64(n))
	}
}

// HandleOpened counts a pair taken over by an entity of the given kind.
func HandleOpened(backend, kind string) {
	openHandles.WithLabelValues(backend, kind).Inc()
}

// HandleClosed reverses HandleOpened.
func HandleClosed(backend, kind string) {
	openHandles.WithLabelValues(backend, kind).Dec()
}

// MetricsHandler serves the default registry in the Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

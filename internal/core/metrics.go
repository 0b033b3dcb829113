package core

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds the instruments exported on the /metrics endpoint.
type Metrics struct {
	// ConnectionsAccepted counts every connection the frontend accepted.
	ConnectionsAccepted prometheus.Counter
	// LoginsRejected counts logins refused before relay, labeled by cause.
	LoginsRejected *prometheus.CounterVec
	// ActiveRelays tracks connections currently in the relay phase.
	ActiveRelays prometheus.Gauge
	// RelayedBytes counts bytes copied between client and server, labeled
	// by direction.
	RelayedBytes *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "portcullis_connections_accepted_total",
			Help: "Number of TCP connections accepted by the proxy.",
		}),
		LoginsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portcullis_logins_rejected_total",
			Help: "Number of login attempts refused before reaching the proxied server.",
		}, []string{"cause"}),
		ActiveRelays: factory.NewGauge(prometheus.GaugeOpts{
			Name: "portcullis_active_relays",
			Help: "Number of connections currently being relayed.",
		}),
		RelayedBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portcullis_relayed_bytes_total",
			Help: "Number of bytes copied between client and proxied server.",
		}, []string{"direction"}),
	}
}

// Serve starts the Prometheus scrape endpoint in a background goroutine.
func (m *Metrics) Serve(logger *logrus.Logger, port int) {
	addr := fmt.Sprintf(":%d", port)
	logger.Infof("serving metrics on %s/metrics", addr)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warnf("metrics server exited: %s", err)
		}
	}()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "requests_total",
		Help:      "Count of consignment relay requests.",
	}, []string{"operation", "code"})
	relayStoredBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "stored_bytes",
		Help:      "Size of consignments posted to the relay.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
	})
)

// Relay tracks the consignment relay endpoints.
type Relay struct{}

// NewRelay constructs a Relay collector.
func NewRelay() *Relay {
	return &Relay{}
}

// ObserveRequest counts a request by HTTP status code.
func (Relay) ObserveRequest(operation string, code int) {
	relayRequestsTotal.WithLabelValues(operation, httpCode(code)).Inc()
}

// ObserveStored records the size of an accepted consignment.
func (Relay) ObserveStored(size int) {
	relayStoredBytes.Observe(float64(size))
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

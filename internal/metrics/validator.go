package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "validator",
		Name:      "validations_total",
		Help:      "Count of consignment validations by outcome.",
	}, []string{"network", "status"})
	validationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "validator",
		Name:      "validation_duration_seconds",
		Help:      "Duration of consignment validation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})
	validationOperations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "validator",
		Name:      "operations_per_consignment",
		Help:      "Number of operations checked per consignment.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"network"})
	validationWarningsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "validator",
		Name:      "warnings_total",
		Help:      "Count of validation warnings by kind.",
	}, []string{"network", "kind"})
)

// Validator tracks consignment validation outcomes.
type Validator struct {
	network string
}

// NewValidator constructs a Validator collector.
func NewValidator(network string) *Validator {
	if network == "" {
		network = "unknown"
	}
	return &Validator{network: network}
}

// ObserveValidation records one finished validation.
func (m Validator) ObserveValidation(status string, operations int, started time.Time) {
	validationsTotal.WithLabelValues(m.network, status).Inc()
	validationDuration.WithLabelValues(m.network, status).Observe(time.Since(started).Seconds())
	validationOperations.WithLabelValues(m.network).Observe(float64(operations))
}

// ObserveWarning counts a warning of kind.
func (m Validator) ObserveWarning(kind string) {
	validationWarningsTotal.WithLabelValues(m.network, kind).Inc()
}

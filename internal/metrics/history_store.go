package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	historyStoreOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "history_store",
		Name:      "operations_total",
		Help:      "Count of history store operations.",
	}, []string{"operation", "status"})
	historyStoreOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "history_store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of history store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
	historyStoreAppendSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "history_store",
		Name:      "append_operations",
		Help:      "Number of contract operations written per append.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
	historyStoreSealConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "history_store",
		Name:      "seal_conflicts_total",
		Help:      "Count of appends rejected because a seal was already closed by another operation.",
	})
)

// HistoryStore tracks metrics for the local contract history store.
type HistoryStore struct{}

// NewHistoryStore constructs a HistoryStore collector.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// Observe records a store operation outcome and duration.
func (HistoryStore) Observe(operation string, err error, started time.Time) {
	status := statusOf(err)
	historyStoreOperationsTotal.WithLabelValues(operation, status).Inc()
	historyStoreOperationDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}

// ObserveAppend records the size of a successful append.
func (HistoryStore) ObserveAppend(operations int) {
	historyStoreAppendSize.Observe(float64(operations))
}

// ObserveSealConflict counts a rejected append.
func (HistoryStore) ObserveSealConflict() {
	historyStoreSealConflicts.Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	watcherCycleTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "cycles_total",
		Help:      "Count of anchor status refresh cycles.",
	}, []string{"network", "status"})
	watcherCycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of an anchor status refresh cycle.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})
	watcherPendingAnchors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "pending_anchors",
		Help:      "Anchors whose witness transaction is not yet safely confirmed.",
	}, []string{"network"})
	watcherStatusChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "watcher",
		Name:      "status_changes_total",
		Help:      "Count of witness status transitions by kind.",
	}, []string{"network", "kind"})
)

// Watcher tracks the witness status watcher loop.
type Watcher struct {
	network string
}

// NewWatcher constructs a Watcher collector.
func NewWatcher(network string) *Watcher {
	if network == "" {
		network = "unknown"
	}
	return &Watcher{network: network}
}

// ObserveCycle records a refresh cycle and the number of anchors still pending after it.
func (m Watcher) ObserveCycle(err error, pending int, started time.Time) {
	status := statusOf(err)
	watcherCycleTotal.WithLabelValues(m.network, status).Inc()
	watcherCycleDuration.WithLabelValues(m.network, status).Observe(time.Since(started).Seconds())
	if err == nil {
		watcherPendingAnchors.WithLabelValues(m.network).Set(float64(pending))
	}
}

// ObserveStatusChange counts a transition such as "mined" or "reorg".
func (m Watcher) ObserveStatusChange(kind string) {
	watcherStatusChanges.WithLabelValues(m.network, kind).Inc()
}

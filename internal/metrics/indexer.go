package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	indexerBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "blocks_total",
		Help:      "Count of blocks written to the chain index.",
	}, []string{"network", "status"})
	indexerBlockDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "block_duration_seconds",
		Help:      "Duration of converting and inserting one block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network", "status"})
	indexerHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "height",
		Help:      "Height of the last indexed block.",
	}, []string{"network"})
	indexerRewinds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "indexer",
		Name:      "rewinds_total",
		Help:      "Count of indexed blocks dropped after a reorg.",
	}, []string{"network"})
)

// Indexer tracks the chain indexer.
type Indexer struct {
	network string
}

// NewIndexer constructs an Indexer collector.
func NewIndexer(network string) *Indexer {
	if network == "" {
		network = "unknown"
	}
	return &Indexer{network: network}
}

// ObserveBlock records one indexed block.
func (m Indexer) ObserveBlock(err error, height uint64, started time.Time) {
	status := statusOf(err)
	indexerBlocksTotal.WithLabelValues(m.network, status).Inc()
	indexerBlockDuration.WithLabelValues(m.network, status).Observe(time.Since(started).Seconds())
	if err == nil {
		indexerHeight.WithLabelValues(m.network).Set(float64(height))
	}
}

// ObserveRewind records a block dropped from the index.
func (m Indexer) ObserveRewind(height uint64) {
	indexerRewinds.WithLabelValues(m.network).Inc()
	indexerHeight.WithLabelValues(m.network).Set(float64(height) - 1)
}

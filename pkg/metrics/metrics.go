// Package metrics registers the engine's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// JobsTotal counts settled job deliveries by topic and result
	// (ok, dropped, failed).
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "jobs_total",
		Help:      "Settled job deliveries by topic and result.",
	}, []string{"topic", "result"})

	// JobsExpiredTotal counts expired claims by topic and disposition
	// (requeue, dead).
	JobsExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "jobs_expired_total",
		Help:      "Expired job claims by topic and disposition.",
	}, []string{"topic", "disposition"})

	// FlushCyclesTotal counts counter flush cycles by result
	// (ok, error, skipped).
	FlushCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "flush_cycles_total",
		Help:      "Counter flush cycles by result.",
	}, []string{"result"})

	// FlushItemsTotal counts post deltas reconciled into the durable store.
	FlushItemsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "flush_items_total",
		Help:      "Post counter deltas applied durably.",
	})

	// FeedReadsTotal counts gate reads by result (hit, pending).
	FeedReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "feed_reads_total",
		Help:      "Feed gate reads by result.",
	}, []string{"result"})

	// FeedBuildSeconds tracks feed materialization latency by feed type.
	FeedBuildSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pulse",
		Name:      "feed_build_seconds",
		Help:      "Feed materialization duration.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

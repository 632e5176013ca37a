package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueItemsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "queue_consumer",
			Name:      "items_processed_total",
			Help:      "Total number of queue items resolved by this consumer.",
		},
		[]string{"outcome"}, // processed, retried, error_permanent, error_exhausted, claim_lost
	)

	queueTickDurationHist = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "queue_consumer",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one poll tick over a page of pending items.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"trigger"}, // timer, kick
	)

	queuePendingNotifyCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "queue_consumer",
			Name:      "pending_notifications_total",
			Help:      "Total number of pending-item notifications received over the broker.",
		},
	)
)

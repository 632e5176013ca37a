package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	payloadsProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook_processor",
			Name:      "payloads_processed_total",
			Help:      "Total number of webhook payloads processed.",
		},
		[]string{"outcome"}, // success, partial_failure, invalid
	)

	messagesProcessedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook_processor",
			Name:      "inbound_messages_total",
			Help:      "Total number of inbound message items handled.",
		},
		[]string{"outcome"}, // created, duplicate, skipped, error
	)

	statusEventsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook_processor",
			Name:      "status_events_total",
			Help:      "Total number of delivery-status events handled.",
		},
		[]string{"outcome"}, // promoted, ignored, unknown_message, error
	)

	autoRepliesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "webhook_processor",
			Name:      "auto_replies_total",
			Help:      "Total number of automatic replies sent.",
		},
		[]string{"kind"}, // out_of_hours, welcome
	)
)

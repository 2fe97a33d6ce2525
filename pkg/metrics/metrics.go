package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SignInsRecorded counts sign-ins durably written to the local queue
	// Label late is "true" or "false"
	SignInsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_signins_recorded_total",
		Help: "Total number of sign-ins persisted to the local queue",
	}, []string{"late"})

	// SyncOutcomes tracks the result of every sync attempt
	// outcome: nothing_to_sync, synced, partial_failure, network_failure, server_rejected
	SyncOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kiosk_sync_outcomes_total",
		Help: "Total number of sync attempts by outcome",
	}, []string{"outcome"})

	// SyncDuration measures read -> submit -> reconcile end to end
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kiosk_sync_duration_seconds",
		Help:    "Duration of a sync attempt in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RecordsAcknowledged counts records removed from the queue after the collector confirmed them
	RecordsAcknowledged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kiosk_records_acknowledged_total",
		Help: "Total number of queued records acknowledged by the collector",
	})

	// QueueDepth is the number of sign-ins still waiting for acknowledgment
	// This is the primary indicator of how long the kiosk has been offline
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kiosk_queue_depth",
		Help: "Current number of sign-ins held in the local queue",
	})
)

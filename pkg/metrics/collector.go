package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CollectorBatchSize tracks how many records each kiosk submits at once
	// Large batches mean a kiosk was offline for a long time
	CollectorBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collector_batch_size",
		Help:    "Number of records received per sync batch",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000},
	})

	// CollectorRecords counts records by result
	// status: accepted, invalid, storage_error
	CollectorRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_records_total",
		Help: "Total number of sign-in records processed by the collector",
	}, []string{"status"})

	// BrokerHealthy is 1 while the RabbitMQ link is up, 0 otherwise
	BrokerHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collector_broker_healthy",
		Help: "Current health of the RabbitMQ link (1 for healthy, 0 for unhealthy)",
	})

	// BrokerReconnections counts how many times the link had to be restored
	BrokerReconnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_broker_reconnections_total",
		Help: "Total number of RabbitMQ reconnection attempts",
	})

	// PublishFailures counts events that were stored but could not be announced
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_publish_failures_total",
		Help: "Total number of sign-in events that failed to publish",
	})
)

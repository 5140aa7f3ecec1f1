package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firealert_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "firealert_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Scoring metrics
	RecordsScoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firealert_records_scored_total",
			Help: "Total number of feature records scored",
		},
		[]string{"path"}, // path: predict, predict_batch, workflow
	)

	AlertDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firealert_alert_decisions_total",
			Help: "Total number of decisions that crossed the alert threshold",
		},
		[]string{"path"},
	)

	ScoreProbability = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "firealert_score_probability",
			Help:    "Distribution of predicted hazard probabilities",
			Buckets: prometheus.LinearBuckets(0.05, 0.05, 19),
		},
	)

	ScoringErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firealert_scoring_errors_total",
			Help: "Total number of rejected scoring requests",
		},
		[]string{"reason"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firealert_notifications_total",
			Help: "Emergency notifications by outcome",
		},
		[]string{"outcome"}, // outcome: delivered, config_incomplete, delivery_failed
	)

	NotificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "firealert_notification_duration_seconds",
			Help:    "Time spent delivering an emergency notification",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// Workflow metrics
	DetectionsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firealert_detections_received_total",
			Help: "Detections received for the alerting workflow",
		},
		[]string{"source", "status"}, // status: accepted, rejected
	)

	WorkerQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "firealert_worker_queue_size",
			Help: "Current size of the detection queue",
		},
	)

	WorkerQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "firealert_worker_queue_capacity",
			Help: "Capacity of the detection queue",
		},
	)

	WorkerBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "firealert_worker_batch_duration_seconds",
			Help:    "Time taken to score a batch and dispatch its alerts",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30},
		},
	)

	// Kafka consumer metrics
	KafkaMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firealert_kafka_messages_total",
			Help: "Kafka detection messages consumed",
		},
		[]string{"status"}, // status: enqueued, malformed, invalid
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "firealert_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)

// ObserveDecision records one scored record.
func ObserveDecision(path string, probability float64, alert bool) {
	RecordsScoredTotal.WithLabelValues(path).Inc()
	ScoreProbability.Observe(probability)
	if alert {
		AlertDecisionsTotal.WithLabelValues(path).Inc()
	}
}

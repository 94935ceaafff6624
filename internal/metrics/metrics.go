package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Outbox metrics
	outboxPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Total number of outbox events accepted by the bus",
		},
	)

	outboxPublishFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_events_publish_failed_total",
			Help: "Total number of failed outbox publish attempts",
		},
	)

	outboxDeadLetterTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_event_dead_letter_total",
			Help: "Total number of outbox events parked after exceeding max attempts",
		},
	)

	// Database write metrics (pipeline health)
	dbSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_writes_saved_total",
			Help: "Total number of committed domain writes",
		},
	)

	dbFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_writes_failed_total",
			Help: "Total number of failed domain writes",
		},
	)

	// Cache metrics
	cacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"layer"},
	)

	cacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"layer"},
	)

	// Consumer metrics
	messagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consumer_messages_total",
			Help: "Total number of records consumed from the bus",
		},
		[]string{"topic", "group"},
	)

	handlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "consumer_handler_duration_seconds",
			Help:    "Business handler latency by channel and event type",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"channel", "event_type"},
	)

	idempotencyHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_hits_total",
			Help: "Total number of duplicate deliveries skipped",
		},
	)

	idempotencyMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_misses_total",
			Help: "Total number of first-time deliveries processed",
		},
	)

	// Retry pipeline metrics
	retriesScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retries_scheduled_total",
			Help: "Total number of retry envelopes published",
		},
		[]string{"channel"},
	)

	retriesSuccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retries_success_total",
			Help: "Total number of retried handler invocations that succeeded",
		},
		[]string{"channel"},
	)

	retriesFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retries_failure_total",
			Help: "Total number of retried handler invocations that failed",
		},
		[]string{"channel"},
	)

	deadLetterTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letter_total",
			Help: "Total number of records dead-lettered after exhausting retries",
		},
		[]string{"channel", "reason"},
	)

	// Resilience metrics
	breakerStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Breaker state per dependency (0=closed 1=open 2=half-open)",
		},
		[]string{"name"},
	)

	bulkheadRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkhead_rejected_total",
			Help: "Total number of calls rejected by a saturated bulkhead",
		},
		[]string{"name"},
	)

	rateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of admissions denied by the rate limiter",
		},
		[]string{"action"},
	)
)

// snapshot counters back the load-test pipeline-health payload; they shadow
// the prometheus counters because the collectors are not cheaply readable.
var (
	snapBusPublished atomic.Int64
	snapBusFailed    atomic.Int64
	snapDBSaved      atomic.Int64
	snapDBFailed     atomic.Int64
	snapCacheHits    atomic.Int64
	snapCacheMisses  atomic.Int64
)

// PipelineHealth is the diagnostic payload consumed by the load-test harness.
type PipelineHealth struct {
	Kafka struct {
		Published int64 `json:"published"`
		Failed    int64 `json:"failed"`
	} `json:"kafka"`
	Database struct {
		Saved  int64 `json:"saved"`
		Failed int64 `json:"failed"`
	} `json:"database"`
	Redis struct {
		Hits   int64 `json:"hits"`
		Misses int64 `json:"misses"`
	} `json:"redis"`
}

func SnapshotPipelineHealth() PipelineHealth {
	var p PipelineHealth
	p.Kafka.Published = snapBusPublished.Load()
	p.Kafka.Failed = snapBusFailed.Load()
	p.Database.Saved = snapDBSaved.Load()
	p.Database.Failed = snapDBFailed.Load()
	p.Redis.Hits = snapCacheHits.Load()
	p.Redis.Misses = snapCacheMisses.Load()
	return p
}

func RecordOutboxPublished() {
	outboxPublishedTotal.Inc()
	snapBusPublished.Add(1)
}

func RecordOutboxPublishFailed() {
	outboxPublishFailedTotal.Inc()
	snapBusFailed.Add(1)
}

func RecordOutboxDeadLetter() {
	outboxDeadLetterTotal.Inc()
}

func RecordDBSaved() {
	dbSavedTotal.Inc()
	snapDBSaved.Add(1)
}

func RecordDBFailed() {
	dbFailedTotal.Inc()
	snapDBFailed.Add(1)
}

func RecordCacheHit(layer string) {
	cacheHitsTotal.WithLabelValues(layer).Inc()
	snapCacheHits.Add(1)
}

func RecordCacheMiss(layer string) {
	cacheMissesTotal.WithLabelValues(layer).Inc()
	snapCacheMisses.Add(1)
}

func RecordMessageConsumed(topic, group string) {
	messagesConsumedTotal.WithLabelValues(topic, group).Inc()
}

func RecordHandlerDuration(channel, eventType string, d time.Duration) {
	handlerDuration.WithLabelValues(channel, eventType).Observe(d.Seconds())
}

func RecordIdempotencyHit()  { idempotencyHitsTotal.Inc() }
func RecordIdempotencyMiss() { idempotencyMissesTotal.Inc() }

func RecordRetryScheduled(channel string) {
	retriesScheduledTotal.WithLabelValues(channel).Inc()
}

func RecordRetrySuccess(channel string) {
	retriesSuccessTotal.WithLabelValues(channel).Inc()
}

func RecordRetryFailure(channel string) {
	retriesFailureTotal.WithLabelValues(channel).Inc()
}

func RecordDeadLetter(channel, reason string) {
	deadLetterTotal.WithLabelValues(channel, reason).Inc()
}

func SetBreakerState(name string, state int) {
	breakerStateGauge.WithLabelValues(name).Set(float64(state))
}

func RecordBulkheadRejected(name string) {
	bulkheadRejectedTotal.WithLabelValues(name).Inc()
}

func RecordRateLimited(action string) {
	rateLimitedTotal.WithLabelValues(action).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

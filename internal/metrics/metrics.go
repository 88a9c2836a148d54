// Package metrics exposes the server's Prometheus metrics: player/room
// counts, reliability-layer retransmits and drops, universe diff traffic,
// and system resource gauges.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	playersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifenet_players_connected",
		Help: "Current number of connected players",
	})

	playersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifenet_players_total",
		Help: "Total number of players ever connected",
	})

	playersMax = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifenet_players_max",
		Help: "Maximum allowed concurrent players",
	})

	playersRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifenet_players_rejected_total",
		Help: "Total player connection rejections by reason",
	}, []string{"reason"})

	roomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifenet_rooms_active",
		Help: "Current number of active rooms",
	})

	requestsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifenet_requests_processed_total",
		Help: "Total requests processed by action kind",
	}, []string{"action"})

	requestsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifenet_requests_dropped_total",
		Help: "Total requests silently dropped (already processed or buffered)",
	}, []string{"reason"})

	chatMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifenet_chat_messages_total",
		Help: "Total chat messages accepted",
	})

	universeDiffBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lifenet_universe_diff_bytes",
		Help:    "Size in bytes of RLE-encoded universe diffs sent to players",
		Buckets: prometheus.ExponentialBuckets(16, 2, 12),
	})

	retransmitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifenet_retransmits_total",
		Help: "Total tx packets retransmitted",
	})

	queueDropsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifenet_queue_drops_total",
		Help: "Total rx/tx queue entries dropped for exceeding the per-player cap",
	}, []string{"queue"})

	rateLimitedRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifenet_rate_limited_requests_total",
		Help: "Total requests rejected by the per-player rate limiter",
	})

	memoryUsageBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifenet_memory_bytes",
		Help: "Current process memory usage in bytes",
	})

	memoryLimitBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifenet_memory_limit_bytes",
		Help: "Container memory limit in bytes, from cgroup",
	})

	cpuUsagePercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifenet_cpu_usage_percent",
		Help: "Current process CPU usage percentage",
	})

	goroutinesActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifenet_goroutines_active",
		Help: "Current number of active goroutines",
	})

	natsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lifenet_nats_connected",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lifenet_errors_total",
		Help: "Total errors by type and severity",
	}, []string{"type", "severity"})
)

func init() {
	prometheus.MustRegister(
		playersConnected, playersTotal, playersMax, playersRejected,
		roomsActive,
		requestsProcessed, requestsDropped,
		chatMessagesSent, universeDiffBytes,
		retransmitsTotal, queueDropsTotal, rateLimitedRequests,
		memoryUsageBytes, memoryLimitBytes, cpuUsagePercent, goroutinesActive,
		natsConnected,
		errorsTotal,
	)
}

// Error severity levels, shared across every RecordError call site.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
	SeverityFatal    = "fatal"
)

// Error type categories.
const (
	ErrorTypeNATS          = "nats"
	ErrorTypeProtocol      = "protocol"
	ErrorTypeUniverse      = "universe"
	ErrorTypeNetwork       = "network"
	ErrorTypeSerialization = "serialization"
)

// SetPlayersMax records the configured concurrent-player ceiling.
func SetPlayersMax(max int) { playersMax.Set(float64(max)) }

// RecordPlayerConnected increments the total and sets the current gauge.
func RecordPlayerConnected(current int) {
	playersTotal.Inc()
	playersConnected.Set(float64(current))
}

// RecordPlayerDisconnected updates the current player gauge after a player
// leaves.
func RecordPlayerDisconnected(current int) {
	playersConnected.Set(float64(current))
}

// RecordPlayerRejected records a connection rejection by reason (mirrors
// resourceguard.Guard.ShouldAcceptPlayer's reason strings).
func RecordPlayerRejected(reason string) { playersRejected.WithLabelValues(reason).Inc() }

// SetRoomsActive records the current number of active rooms.
func SetRoomsActive(n int) { roomsActive.Set(float64(n)) }

// RecordRequestProcessed tags a processed request by its action kind
// (e.g. "toggle", "chat", "join_room").
func RecordRequestProcessed(action string) { requestsProcessed.WithLabelValues(action).Inc() }

// RecordRequestDropped tags a silently-dropped request by reason
// ("already_processed" or "duplicate_buffered").
func RecordRequestDropped(reason string) { requestsDropped.WithLabelValues(reason).Inc() }

// RecordChatMessage increments the accepted chat message counter.
func RecordChatMessage() { chatMessagesSent.Inc() }

// RecordUniverseDiffBytes samples the size of an RLE diff sent to a player.
func RecordUniverseDiffBytes(n int) { universeDiffBytes.Observe(float64(n)) }

// RecordRetransmit increments the retransmit counter.
func RecordRetransmit() { retransmitsTotal.Inc() }

// RecordQueueDrop tags a dropped rx or tx queue entry.
func RecordQueueDrop(queue string) { queueDropsTotal.WithLabelValues(queue).Inc() }

// RecordRateLimited increments the rate-limited request counter.
func RecordRateLimited() { rateLimitedRequests.Inc() }

// RecordError tracks an error by type and severity.
func RecordError(errorType, severity string) { errorsTotal.WithLabelValues(errorType, severity).Inc() }

// SetNATSConnected records the NATS connection status.
func SetNATSConnected(connected bool) {
	if connected {
		natsConnected.Set(1)
	} else {
		natsConnected.Set(0)
	}
}

// SetMemoryLimitBytes records the container memory limit, once, at
// startup.
func SetMemoryLimitBytes(limit int64) { memoryLimitBytes.Set(float64(limit)) }

// SampleSystemResources records the current memory/CPU/goroutine snapshot.
// Call periodically from a ticker alongside resourceguard.Guard.UpdateResources.
func SampleSystemResources(memoryAllocBytes int64, cpuPercent float64, goroutines int) {
	memoryUsageBytes.Set(float64(memoryAllocBytes))
	cpuUsagePercent.Set(cpuPercent)
	goroutinesActive.Set(float64(goroutines))
}

// Handler returns the HTTP handler that serves metrics in the Prometheus
// exposition format.
func Handler() http.Handler { return promhttp.Handler() }

// Serve starts an HTTP server exposing Handler() at /metrics on addr. It
// runs until the process exits; callers typically launch it in its own
// goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

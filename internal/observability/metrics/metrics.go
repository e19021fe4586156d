package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "gridwatch_"

	resultSuccess = "success"
	resultError   = "error"

	reasonMalformed     = "malformed"
	reasonUnknownDevice = "unknown_device"
	reasonQueueFull     = "queue_full"
)

var (
	registerOnce sync.Once

	readingsReceived prometheus.Counter
	readingsRejected *prometheus.CounterVec
	readingsRouted   *prometheus.CounterVec
	shardQueueDepth  *prometheus.GaugeVec

	windowsClosed    *prometheus.CounterVec
	aggregateResults *prometheus.CounterVec
	alertResults     *prometheus.CounterVec
	trackedBuffers   *prometheus.GaugeVec

	directoryEvents  *prometheus.CounterVec
	directoryDevices prometheus.Gauge
)

// Init registers the telemetry core metrics. Safe to call once from main;
// helpers below are no-ops until it runs, which keeps unit tests quiet.
func Init() {
	registerOnce.Do(func() {
		readingsReceived = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_received_total",
				Help: "Total telemetry readings accepted at ingress",
			},
		)
		readingsRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_rejected_total",
				Help: "Total readings discarded before aggregation, by reason",
			},
			[]string{"reason"},
		)
		readingsRouted = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "readings_routed_total",
				Help: "Total readings enqueued per shard",
			},
			[]string{"shard"},
		)
		shardQueueDepth = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "shard_queue_depth",
				Help: "Current number of readings waiting in a shard queue",
			},
			[]string{"shard"},
		)

		windowsClosed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "windows_closed_total",
				Help: "Total completed aggregation windows per shard",
			},
			[]string{"shard"},
		)
		aggregateResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "aggregates_persisted_total",
				Help: "Total aggregate persist attempts by result",
			},
			[]string{"result"},
		)
		alertResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_delivered_total",
				Help: "Total alert delivery attempts by result",
			},
			[]string{"result"},
		)
		trackedBuffers = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "window_buffers",
				Help: "Per-device window buffers currently tracked per shard",
			},
			[]string{"shard"},
		)

		directoryEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "directory_events_total",
				Help: "Total directory lifecycle events by outcome",
			},
			[]string{"outcome"},
		)
		directoryDevices = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "directory_devices",
				Help: "Devices currently present in the local directory",
			},
		)

		prometheus.MustRegister(
			readingsReceived,
			readingsRejected,
			readingsRouted,
			shardQueueDepth,
			windowsClosed,
			aggregateResults,
			alertResults,
			trackedBuffers,
			directoryEvents,
			directoryDevices,
		)
	})
}

// IncReadingReceived counts an accepted ingress reading.
func IncReadingReceived() {
	if readingsReceived != nil {
		readingsReceived.Inc()
	}
}

// IncReadingMalformed counts a record rejected before hashing.
func IncReadingMalformed() {
	if readingsRejected != nil {
		readingsRejected.WithLabelValues(reasonMalformed).Inc()
	}
}

// IncReadingUnknownDevice counts a reading for a device absent from the directory.
func IncReadingUnknownDevice() {
	if readingsRejected != nil {
		readingsRejected.WithLabelValues(reasonUnknownDevice).Inc()
	}
}

// IncReadingDropped counts a reading dropped on shard queue saturation.
func IncReadingDropped() {
	if readingsRejected != nil {
		readingsRejected.WithLabelValues(reasonQueueFull).Inc()
	}
}

// IncReadingRouted counts a reading enqueued onto a shard.
func IncReadingRouted(shard int) {
	if readingsRouted != nil {
		readingsRouted.WithLabelValues(strconv.Itoa(shard)).Inc()
	}
}

// SetShardQueueDepth reports the current depth of one shard queue.
func SetShardQueueDepth(shard, depth int) {
	if shardQueueDepth != nil {
		shardQueueDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(depth))
	}
}

// IncWindowClosed counts a completed window on a shard.
func IncWindowClosed(shard int) {
	if windowsClosed != nil {
		windowsClosed.WithLabelValues(strconv.Itoa(shard)).Inc()
	}
}

// IncAggregatePersist counts an aggregate persist attempt.
func IncAggregatePersist(err error) {
	if aggregateResults == nil {
		return
	}
	if err != nil {
		aggregateResults.WithLabelValues(resultError).Inc()
		return
	}
	aggregateResults.WithLabelValues(resultSuccess).Inc()
}

// IncAlertDelivery counts an alert delivery attempt.
func IncAlertDelivery(err error) {
	if alertResults == nil {
		return
	}
	if err != nil {
		alertResults.WithLabelValues(resultError).Inc()
		return
	}
	alertResults.WithLabelValues(resultSuccess).Inc()
}

// SetTrackedBuffers reports how many device buffers a shard currently holds.
func SetTrackedBuffers(shard, count int) {
	if trackedBuffers != nil {
		trackedBuffers.WithLabelValues(strconv.Itoa(shard)).Set(float64(count))
	}
}

// IncDirectoryEvent counts a lifecycle event by outcome
// (applied, ignored, malformed).
func IncDirectoryEvent(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if directoryEvents != nil {
		directoryEvents.WithLabelValues(outcome).Inc()
	}
}

// SetDirectoryDevices reports the local directory size.
func SetDirectoryDevices(count int) {
	if directoryDevices != nil {
		directoryDevices.Set(float64(count))
	}
}

// Outcomes for IncDirectoryEvent.
const (
	DirectoryEventApplied   = "applied"
	DirectoryEventIgnored   = "ignored"
	DirectoryEventMalformed = "malformed"
)

package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	directory "gridwatch/internal/directory/domain"
	"gridwatch/internal/observability/metrics"
	telemetry "gridwatch/internal/telemetry/domain"
)

// DirectoryLookup is the read-only directory view an aggregator needs.
type DirectoryLookup interface {
	Lookup(deviceID uuid.UUID) (directory.Entry, bool)
}

// windowBuffer is the per-device accumulation state. An empty samples
// slice means the window has not started; windowStart is only meaningful
// while at least one sample is buffered.
type windowBuffer struct {
	windowStart int64
	samples     []float64
}

// Aggregator folds one shard's readings into fixed-size windows per
// device. It owns its buffer map exclusively: all mutation happens on the
// shard worker goroutine, so no locking is needed around the buffers.
type Aggregator struct {
	shard      int
	windowSize int
	directory  DirectoryLookup
	aggregates telemetry.AggregateSink
	alerts     telemetry.AlertSink
	logger     *log.Logger
	buffers    map[uuid.UUID]*windowBuffer
}

// NewAggregator constructs the aggregator for one shard.
func NewAggregator(shard, windowSize int, dir DirectoryLookup, aggregates telemetry.AggregateSink, alerts telemetry.AlertSink, logger *log.Logger) (*Aggregator, error) {
	if shard < 0 {
		return nil, fmt.Errorf("aggregation: negative shard index %d", shard)
	}
	if windowSize < 1 {
		return nil, fmt.Errorf("aggregation: window size must be >= 1, got %d", windowSize)
	}
	if dir == nil {
		return nil, errors.New("aggregation: nil directory")
	}
	if aggregates == nil {
		return nil, errors.New("aggregation: nil aggregate sink")
	}
	if alerts == nil {
		return nil, errors.New("aggregation: nil alert sink")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{
		shard:      shard,
		windowSize: windowSize,
		directory:  dir,
		aggregates: aggregates,
		alerts:     alerts,
		logger:     logger,
		buffers:    make(map[uuid.UUID]*windowBuffer),
	}, nil
}

// Run consumes the shard queue until it is closed or the context ends.
// Readings for the same device arrive and are folded in FIFO order.
func (a *Aggregator) Run(ctx context.Context, queue <-chan telemetry.Reading) {
	for {
		select {
		case <-ctx.Done():
			return
		case reading, ok := <-queue:
			if !ok {
				return
			}
			a.Ingest(ctx, reading)
		}
	}
}

// Ingest folds one reading into its device's window. A device absent from
// the local directory is discarded before any buffer is created: only
// known devices are monitored, and a reading that raced ahead of its
// device's creation event is not retroactively credited.
func (a *Aggregator) Ingest(ctx context.Context, reading telemetry.Reading) {
	entry, known := a.directory.Lookup(reading.DeviceID)
	if !known {
		a.logger.Printf("shard %d: discarding reading for unknown device %s", a.shard, reading.DeviceID)
		metrics.IncReadingUnknownDevice()
		return
	}

	buffer, ok := a.buffers[reading.DeviceID]
	if !ok {
		buffer = &windowBuffer{samples: make([]float64, 0, a.windowSize)}
		a.buffers[reading.DeviceID] = buffer
		metrics.SetTrackedBuffers(a.shard, len(a.buffers))
	}

	// Windows are bounded by sample count, not time. Out-of-order
	// timestamps are appended in arrival order; the window keeps the
	// first arrival's timestamp as its nominal start.
	if len(buffer.samples) == 0 {
		buffer.windowStart = reading.Timestamp
	}
	buffer.samples = append(buffer.samples, reading.Value)

	if len(buffer.samples) < a.windowSize {
		return
	}
	a.flush(ctx, reading.DeviceID, entry, buffer)
}

// flush emits the completed window and resets the buffer. Sink failures
// are logged and do not restore the samples; aggregates and alerts are
// delivered at most once.
func (a *Aggregator) flush(ctx context.Context, deviceID uuid.UUID, entry directory.Entry, buffer *windowBuffer) {
	var total float64
	for _, v := range buffer.samples {
		total += v
	}

	aggregate := telemetry.HourlyAggregate{
		DeviceID:         deviceID,
		WindowStart:      buffer.windowStart,
		TotalConsumption: total,
	}

	buffer.samples = buffer.samples[:0]
	buffer.windowStart = 0
	metrics.IncWindowClosed(a.shard)

	err := a.aggregates.Persist(ctx, aggregate)
	metrics.IncAggregatePersist(err)
	if err != nil {
		a.logger.Printf("shard %d: persist aggregate for device %s failed: %v", a.shard, deviceID, err)
	} else {
		a.logger.Printf("shard %d: window closed for device %s at %d, total %.2f", a.shard, deviceID, aggregate.WindowStart, total)
	}

	if total <= entry.MaxConsumptionThreshold {
		return
	}

	alert := telemetry.AlertEvent{
		OwnerUserID: entry.OwnerUserID,
		Message: fmt.Sprintf("Device %s consumed %.2fkW, exceeding limit of %.2fkW.",
			deviceID, total, entry.MaxConsumptionThreshold),
	}
	err = a.alerts.Deliver(ctx, alert)
	metrics.IncAlertDelivery(err)
	if err != nil {
		a.logger.Printf("shard %d: alert delivery for device %s failed: %v", a.shard, deviceID, err)
	}
}

// BufferedSamples reports how many samples are currently buffered for a
// device. Zero for unknown devices and between windows.
func (a *Aggregator) BufferedSamples(deviceID uuid.UUID) int {
	buffer, ok := a.buffers[deviceID]
	if !ok {
		return 0
	}
	return len(buffer.samples)
}

package aggregation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	directory "gridwatch/internal/directory/domain"
	telemetry "gridwatch/internal/telemetry/domain"
)

type recordingAggregateSink struct {
	aggregates []telemetry.HourlyAggregate
	err        error
}

func (s *recordingAggregateSink) Persist(_ context.Context, aggregate telemetry.HourlyAggregate) error {
	if s.err != nil {
		return s.err
	}
	s.aggregates = append(s.aggregates, aggregate)
	return nil
}

type recordingAlertSink struct {
	alerts []telemetry.AlertEvent
	err    error
}

func (s *recordingAlertSink) Deliver(_ context.Context, alert telemetry.AlertEvent) error {
	if s.err != nil {
		return s.err
	}
	s.alerts = append(s.alerts, alert)
	return nil
}

func newTestAggregator(t *testing.T, store *directory.Store) (*Aggregator, *recordingAggregateSink, *recordingAlertSink) {
	t.Helper()
	aggregates := &recordingAggregateSink{}
	alerts := &recordingAlertSink{}
	aggregator, err := NewAggregator(0, 6, store, aggregates, alerts, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	return aggregator, aggregates, alerts
}

func feed(aggregator *Aggregator, deviceID uuid.UUID, startTS int64, values ...float64) {
	ctx := context.Background()
	for i, v := range values {
		aggregator.Ingest(ctx, telemetry.Reading{
			DeviceID:  deviceID,
			Timestamp: startTS + int64(i)*600_000,
			Value:     v,
		})
	}
}

func TestWindowUnderThreshold(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 100})

	aggregator, aggregates, alerts := newTestAggregator(t, store)
	feed(aggregator, deviceID, 1_700_000_000_000, 10, 20, 15, 25, 10, 5)

	if len(aggregates.aggregates) != 1 {
		t.Fatalf("persisted %d aggregates, want 1", len(aggregates.aggregates))
	}
	got := aggregates.aggregates[0]
	if got.DeviceID != deviceID {
		t.Fatalf("aggregate device = %s, want %s", got.DeviceID, deviceID)
	}
	if got.WindowStart != 1_700_000_000_000 {
		t.Fatalf("window start = %d, want first reading's timestamp", got.WindowStart)
	}
	if got.TotalConsumption != 85 {
		t.Fatalf("total = %v, want 85", got.TotalConsumption)
	}
	if len(alerts.alerts) != 0 {
		t.Fatalf("unexpected alerts: %+v", alerts.alerts)
	}
}

func TestWindowOverThresholdAlerts(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()
	ownerID := uuid.New()
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 100, OwnerUserID: &ownerID})

	aggregator, aggregates, alerts := newTestAggregator(t, store)
	feed(aggregator, deviceID, 1_700_000_000_000, 30, 30, 30, 30, 20, 10)

	if len(aggregates.aggregates) != 1 || aggregates.aggregates[0].TotalConsumption != 150 {
		t.Fatalf("aggregates = %+v, want one with total 150", aggregates.aggregates)
	}
	if len(alerts.alerts) != 1 {
		t.Fatalf("emitted %d alerts, want 1", len(alerts.alerts))
	}
	alert := alerts.alerts[0]
	if alert.OwnerUserID == nil || *alert.OwnerUserID != ownerID {
		t.Fatalf("alert owner = %v, want %s", alert.OwnerUserID, ownerID)
	}
	if !strings.Contains(alert.Message, deviceID.String()) {
		t.Fatalf("alert message %q does not name the device", alert.Message)
	}
	if !strings.Contains(alert.Message, "exceeding limit of 100.00kW") {
		t.Fatalf("alert message %q does not name the limit", alert.Message)
	}
}

func TestExactThresholdDoesNotAlert(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 90})

	aggregator, _, alerts := newTestAggregator(t, store)
	feed(aggregator, deviceID, 1, 15, 15, 15, 15, 15, 15)

	if len(alerts.alerts) != 0 {
		t.Fatalf("alert fired at exactly the threshold: %+v", alerts.alerts)
	}
}

func TestUnknownDeviceDiscardedWithoutBuffer(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()

	aggregator, aggregates, alerts := newTestAggregator(t, store)

	// Three readings race ahead of the device's creation event.
	feed(aggregator, deviceID, 1, 10, 10, 10)
	if aggregator.BufferedSamples(deviceID) != 0 {
		t.Fatal("buffer created for unknown device")
	}

	// The device appears; only readings from now on count. The discarded
	// ones are not retroactively credited to the window.
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 100})
	feed(aggregator, deviceID, 4, 10, 10, 10)

	if len(aggregates.aggregates) != 0 {
		t.Fatalf("window closed early: %+v", aggregates.aggregates)
	}
	if aggregator.BufferedSamples(deviceID) != 3 {
		t.Fatalf("buffered %d samples, want 3", aggregator.BufferedSamples(deviceID))
	}

	feed(aggregator, deviceID, 7, 10, 10, 10)
	if len(aggregates.aggregates) != 1 || aggregates.aggregates[0].TotalConsumption != 60 {
		t.Fatalf("aggregates = %+v, want one with total 60", aggregates.aggregates)
	}
	if len(alerts.alerts) != 0 {
		t.Fatalf("unexpected alerts: %+v", alerts.alerts)
	}
}

func TestDeletedDeviceStopsAccumulating(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 100})

	aggregator, aggregates, _ := newTestAggregator(t, store)
	feed(aggregator, deviceID, 1, 10, 10)

	store.Delete(deviceID)
	feed(aggregator, deviceID, 3, 10, 10, 10, 10)

	if len(aggregates.aggregates) != 0 {
		t.Fatalf("window closed for deleted device: %+v", aggregates.aggregates)
	}
	if aggregator.BufferedSamples(deviceID) != 2 {
		t.Fatalf("buffered %d samples, want the 2 pre-delete ones", aggregator.BufferedSamples(deviceID))
	}
}

func TestOutOfOrderTimestampsKeepArrivalOrder(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 1000})

	aggregator, aggregates, _ := newTestAggregator(t, store)
	ctx := context.Background()

	// The first arrival defines the window start even when later arrivals
	// carry earlier timestamps; windows are count-bounded, not time-bounded.
	timestamps := []int64{600, 100, 200, 300, 400, 500}
	for _, ts := range timestamps {
		aggregator.Ingest(ctx, telemetry.Reading{DeviceID: deviceID, Timestamp: ts, Value: 1})
	}

	if len(aggregates.aggregates) != 1 {
		t.Fatalf("persisted %d aggregates, want 1", len(aggregates.aggregates))
	}
	if got := aggregates.aggregates[0].WindowStart; got != 600 {
		t.Fatalf("window start = %d, want 600 (first arrival)", got)
	}
	if got := aggregates.aggregates[0].TotalConsumption; got != 6 {
		t.Fatalf("total = %v, want 6", got)
	}
}

func TestConsecutiveWindowsReuseBuffer(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 1000})

	aggregator, aggregates, _ := newTestAggregator(t, store)
	feed(aggregator, deviceID, 1_000, 1, 1, 1, 1, 1, 1)
	feed(aggregator, deviceID, 5_000_000, 2, 2, 2, 2, 2, 2)

	if len(aggregates.aggregates) != 2 {
		t.Fatalf("persisted %d aggregates, want 2", len(aggregates.aggregates))
	}
	if aggregates.aggregates[0].WindowStart != 1_000 || aggregates.aggregates[1].WindowStart != 5_000_000 {
		t.Fatalf("window starts = %d, %d", aggregates.aggregates[0].WindowStart, aggregates.aggregates[1].WindowStart)
	}
	if aggregates.aggregates[1].TotalConsumption != 12 {
		t.Fatalf("second total = %v, want 12", aggregates.aggregates[1].TotalConsumption)
	}
}

func TestSinkFailureDoesNotReplayWindow(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 10})

	aggregates := &recordingAggregateSink{err: errors.New("storage down")}
	alerts := &recordingAlertSink{err: errors.New("notifier down")}
	aggregator, err := NewAggregator(0, 6, store, aggregates, alerts, nil)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	feed(aggregator, deviceID, 1, 10, 10, 10, 10, 10, 10)

	// At-most-once: the failed window is gone, the buffer starts fresh.
	if aggregator.BufferedSamples(deviceID) != 0 {
		t.Fatalf("buffer not cleared after sink failure: %d samples", aggregator.BufferedSamples(deviceID))
	}

	aggregates.err = nil
	feed(aggregator, deviceID, 10, 1, 1, 1, 1, 1, 1)
	if len(aggregates.aggregates) != 1 || aggregates.aggregates[0].TotalConsumption != 6 {
		t.Fatalf("aggregates = %+v, want only the second window", aggregates.aggregates)
	}
}

func TestIndependentDevicesDoNotShareBuffers(t *testing.T) {
	store := directory.NewStore()
	first := uuid.New()
	second := uuid.New()
	store.Upsert(directory.Entry{DeviceID: first, MaxConsumptionThreshold: 1000})
	store.Upsert(directory.Entry{DeviceID: second, MaxConsumptionThreshold: 1000})

	aggregator, aggregates, _ := newTestAggregator(t, store)
	feed(aggregator, first, 1, 1, 1, 1)
	feed(aggregator, second, 1, 5, 5, 5, 5, 5, 5)

	if len(aggregates.aggregates) != 1 {
		t.Fatalf("persisted %d aggregates, want 1 (second device only)", len(aggregates.aggregates))
	}
	if aggregates.aggregates[0].DeviceID != second || aggregates.aggregates[0].TotalConsumption != 30 {
		t.Fatalf("aggregate = %+v, want second device total 30", aggregates.aggregates[0])
	}
	if aggregator.BufferedSamples(first) != 3 {
		t.Fatalf("first device buffered %d, want 3", aggregator.BufferedSamples(first))
	}
}

func TestRunDrainsQueueUntilClosed(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 1000})

	aggregator, aggregates, _ := newTestAggregator(t, store)

	queue := make(chan telemetry.Reading, 6)
	for i := 0; i < 6; i++ {
		queue <- telemetry.Reading{DeviceID: deviceID, Timestamp: int64(i + 1), Value: 2}
	}
	close(queue)

	aggregator.Run(context.Background(), queue)

	if len(aggregates.aggregates) != 1 || aggregates.aggregates[0].TotalConsumption != 12 {
		t.Fatalf("aggregates = %+v, want one with total 12", aggregates.aggregates)
	}
}

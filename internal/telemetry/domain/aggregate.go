package telemetry

import (
	"context"

	"github.com/google/uuid"
)

// HourlyAggregate is the total consumption of one completed window.
// Immutable once constructed; handed to the AggregateSink exactly once.
type HourlyAggregate struct {
	DeviceID         uuid.UUID
	WindowStart      int64
	TotalConsumption float64
}

// AlertEvent notifies a device owner that a window exceeded the
// configured threshold. OwnerUserID is nil for unassigned devices.
type AlertEvent struct {
	OwnerUserID *uuid.UUID
	Message     string
}

// AggregateSink receives completed window aggregates for durable storage.
type AggregateSink interface {
	Persist(ctx context.Context, aggregate HourlyAggregate) error
}

// AlertSink receives threshold alerts for delivery.
type AlertSink interface {
	Deliver(ctx context.Context, alert AlertEvent) error
}

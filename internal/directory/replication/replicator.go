package replication

import (
	"context"
	"errors"
	"log"

	directory "gridwatch/internal/directory/domain"
	"gridwatch/internal/observability/metrics"
)

// Replicator applies broadcast lifecycle events to the local directory
// store. It is transport-independent: the subscriber hands it an event
// type plus raw payload, and Apply does the rest. A malformed event is
// dropped whole; the store is never partially updated.
type Replicator struct {
	store  *directory.Store
	logger *log.Logger
}

// NewReplicator constructs a replicator over the given store.
func NewReplicator(store *directory.Store, logger *log.Logger) (*Replicator, error) {
	if store == nil {
		return nil, errors.New("replication: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Replicator{store: store, logger: logger}, nil
}

// HandleEvent decodes and applies one lifecycle event. It always returns
// nil: every failure mode is a single-event drop, logged and counted,
// never a reason to stop consuming.
func (r *Replicator) HandleEvent(ctx context.Context, eventType string, payload []byte) error {
	event, err := directory.DecodeEvent(eventType, payload)
	if err != nil {
		r.logger.Printf("directory sync: dropping event: %v", err)
		metrics.IncDirectoryEvent(metrics.DirectoryEventMalformed)
		return nil
	}

	applied, err := directory.Apply(r.store, event)
	if err != nil {
		r.logger.Printf("directory sync: apply %s failed: %v", eventType, err)
		metrics.IncDirectoryEvent(metrics.DirectoryEventMalformed)
		return nil
	}
	if !applied {
		metrics.IncDirectoryEvent(metrics.DirectoryEventIgnored)
		return nil
	}

	metrics.IncDirectoryEvent(metrics.DirectoryEventApplied)
	metrics.SetDirectoryDevices(r.store.Len())
	switch e := event.(type) {
	case directory.CreateOrUpdateDevice:
		r.logger.Printf("directory sync: upserted device %s (threshold %.2f)", e.DeviceID, e.MaxConsumption)
	case directory.DeleteDevice:
		r.logger.Printf("directory sync: deleted device %s", e.DeviceID)
	}
	return nil
}

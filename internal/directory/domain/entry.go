package directory

import "github.com/google/uuid"

// Entry is the locally replicated metadata for one known device.
// Entries are written only by the replicator; aggregator shards read them.
type Entry struct {
	DeviceID                uuid.UUID
	MaxConsumptionThreshold float64
	OwnerUserID             *uuid.UUID
}

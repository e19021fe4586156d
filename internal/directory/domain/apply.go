package directory

import "errors"

// Apply folds one lifecycle event into the store. It is idempotent and
// order-tolerant: the broadcast channel may duplicate or reorder events,
// so applying the same event twice must leave the store unchanged, and
// any delivery order must converge absent conflicting updates for the
// same device. Returns true when the store was mutated.
func Apply(store *Store, event Event) (bool, error) {
	if store == nil {
		return false, errors.New("directory: nil store")
	}
	if event == nil {
		return false, errors.New("directory: nil event")
	}

	switch e := event.(type) {
	case CreateOrUpdateDevice:
		store.Upsert(Entry{
			DeviceID:                e.DeviceID,
			MaxConsumptionThreshold: e.MaxConsumption,
			OwnerUserID:             e.OwnerUserID,
		})
		return true, nil
	case DeleteDevice:
		store.Delete(e.DeviceID)
		return true, nil
	case CreateUser, DeleteUser:
		// User lifecycle is consumed by other services on the same channel.
		return false, nil
	default:
		return false, errors.New("directory: unsupported event")
	}
}

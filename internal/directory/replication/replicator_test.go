package replication

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	directory "gridwatch/internal/directory/domain"
)

func TestHandleEventAppliesDeviceUpsert(t *testing.T) {
	store := directory.NewStore()
	replicator, err := NewReplicator(store, nil)
	if err != nil {
		t.Fatalf("new replicator: %v", err)
	}

	deviceID := uuid.New()
	payload, _ := json.Marshal(directory.CreateOrUpdateDevice{DeviceID: deviceID, MaxConsumption: 42})

	if err := replicator.HandleEvent(context.Background(), directory.EventTypeCreateOrUpdateDevice, payload); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	entry, ok := store.Lookup(deviceID)
	if !ok {
		t.Fatal("device not applied")
	}
	if entry.MaxConsumptionThreshold != 42 {
		t.Fatalf("threshold = %v, want 42", entry.MaxConsumptionThreshold)
	}
}

func TestHandleEventAppliesDeviceDelete(t *testing.T) {
	store := directory.NewStore()
	deviceID := uuid.New()
	store.Upsert(directory.Entry{DeviceID: deviceID, MaxConsumptionThreshold: 1})
	replicator, _ := NewReplicator(store, nil)

	payload, _ := json.Marshal(directory.DeleteDevice{DeviceID: deviceID})
	if err := replicator.HandleEvent(context.Background(), directory.EventTypeDeleteDevice, payload); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if _, ok := store.Lookup(deviceID); ok {
		t.Fatal("device still present after delete event")
	}
}

func TestHandleEventDropsMalformedWithoutFailing(t *testing.T) {
	store := directory.NewStore()
	replicator, _ := NewReplicator(store, nil)
	ctx := context.Background()

	// Unknown type, broken JSON, missing device id: each is dropped
	// whole and must never surface as an error that stops the consumer.
	cases := []struct {
		eventType string
		payload   string
	}{
		{"directory.device.exploded", `{}`},
		{directory.EventTypeCreateOrUpdateDevice, `{"deviceId": 12`},
		{directory.EventTypeCreateOrUpdateDevice, `{"maxConsumption": 10}`},
		{directory.EventTypeDeleteDevice, `{"deviceId": "not-a-uuid"}`},
	}
	for _, tc := range cases {
		if err := replicator.HandleEvent(ctx, tc.eventType, []byte(tc.payload)); err != nil {
			t.Fatalf("%s: handle event returned %v, want nil", tc.eventType, err)
		}
	}
	if store.Len() != 0 {
		t.Fatalf("store has %d entries after malformed events, want 0", store.Len())
	}
}

func TestHandleEventIgnoresUserLifecycle(t *testing.T) {
	store := directory.NewStore()
	replicator, _ := NewReplicator(store, nil)

	payload, _ := json.Marshal(directory.CreateUser{UserID: uuid.New(), Name: "grace"})
	if err := replicator.HandleEvent(context.Background(), directory.EventTypeCreateUser, payload); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if store.Len() != 0 {
		t.Fatal("user event mutated the device directory")
	}
}

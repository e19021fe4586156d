package directory

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Lifecycle event types carried on the broadcast channel. Device events
// mutate the local store; user events exist for the user-facing services
// that share the channel and are ignored here.
const (
	EventTypeCreateOrUpdateDevice = "directory.device.upsert"
	EventTypeDeleteDevice         = "directory.device.delete"
	EventTypeCreateUser           = "directory.user.create"
	EventTypeDeleteUser           = "directory.user.delete"
)

// ErrUnknownEventType marks an event type this replica cannot decode.
var ErrUnknownEventType = errors.New("directory: unknown event type")

// Event is one member of the lifecycle event union.
type Event interface {
	EventType() string
}

// CreateOrUpdateDevice upserts a device entry. Missing userId means the
// device is unassigned.
type CreateOrUpdateDevice struct {
	DeviceID       uuid.UUID  `json:"deviceId"`
	MaxConsumption float64    `json:"maxConsumption"`
	OwnerUserID    *uuid.UUID `json:"userId,omitempty"`
}

// DeleteDevice removes a device entry if present.
type DeleteDevice struct {
	DeviceID uuid.UUID `json:"deviceId"`
}

// CreateUser announces a new user. Not applied by the device directory.
type CreateUser struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name,omitempty"`
}

// DeleteUser announces a removed user. Not applied by the device directory.
type DeleteUser struct {
	UserID uuid.UUID `json:"userId"`
}

func (CreateOrUpdateDevice) EventType() string { return EventTypeCreateOrUpdateDevice }
func (DeleteDevice) EventType() string         { return EventTypeDeleteDevice }
func (CreateUser) EventType() string           { return EventTypeCreateUser }
func (DeleteUser) EventType() string           { return EventTypeDeleteUser }

// DecodeEvent turns a typed payload back into a union member. Unknown types
// and malformed payloads are decode errors; callers drop and log them.
func DecodeEvent(eventType string, payload []byte) (Event, error) {
	switch eventType {
	case EventTypeCreateOrUpdateDevice:
		var event CreateOrUpdateDevice
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("directory: decode %s: %w", eventType, err)
		}
		if event.DeviceID == uuid.Nil {
			return nil, fmt.Errorf("directory: decode %s: missing deviceId", eventType)
		}
		return event, nil
	case EventTypeDeleteDevice:
		var event DeleteDevice
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("directory: decode %s: %w", eventType, err)
		}
		if event.DeviceID == uuid.Nil {
			return nil, fmt.Errorf("directory: decode %s: missing deviceId", eventType)
		}
		return event, nil
	case EventTypeCreateUser:
		var event CreateUser
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("directory: decode %s: %w", eventType, err)
		}
		return event, nil
	case EventTypeDeleteUser:
		var event DeleteUser
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("directory: decode %s: %w", eventType, err)
		}
		return event, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
}

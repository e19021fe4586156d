package telemetry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Reading is a single energy-consumption sample reported by a device.
// Timestamp is logical epoch milliseconds supplied by the producer.
type Reading struct {
	DeviceID  uuid.UUID
	Timestamp int64
	Value     float64
}

var (
	// ErrMissingDeviceID marks a record without a device identifier.
	ErrMissingDeviceID = errors.New("telemetry: missing device id")
	// ErrBadRecord marks a record that cannot be converted to a Reading.
	ErrBadRecord = errors.New("telemetry: malformed record")
)

// ParseCSVLine converts a "timestamp,deviceId,value" line into a Reading.
// This is the device simulator wire format.
func ParseCSVLine(line string) (Reading, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return Reading{}, fmt.Errorf("%w: want 3 fields, got %d", ErrBadRecord, len(parts))
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: bad timestamp %q", ErrBadRecord, parts[0])
	}

	deviceID, err := uuid.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return Reading{}, fmt.Errorf("%w: bad device id %q", ErrBadRecord, parts[1])
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return Reading{}, fmt.Errorf("%w: bad value %q", ErrBadRecord, parts[2])
	}

	return Reading{DeviceID: deviceID, Timestamp: ts, Value: value}, nil
}

// Validate rejects readings that must never reach a shard.
func (r Reading) Validate() error {
	if r.DeviceID == uuid.Nil {
		return ErrMissingDeviceID
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("%w: non-positive timestamp %d", ErrBadRecord, r.Timestamp)
	}
	return nil
}

package alerting

import (
	"context"
	"errors"
	"log"

	telemetry "gridwatch/internal/telemetry/domain"
)

// MultiSink fans one alert out to several sinks. Every sink gets the
// alert even if an earlier one fails; the joined error is reported once.
type MultiSink struct {
	sinks []telemetry.AlertSink
}

// NewMultiSink constructs a fan-out sink.
func NewMultiSink(sinks ...telemetry.AlertSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Deliver forwards the alert to all sinks.
func (m *MultiSink) Deliver(ctx context.Context, alert telemetry.AlertEvent) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, sink := range m.sinks {
		if sink == nil {
			continue
		}
		if err := sink.Deliver(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink records alerts on the process log. Used as the always-on sink
// so an alert is never completely silent.
type LogSink struct {
	logger *log.Logger
}

// NewLogSink constructs a log sink.
func NewLogSink(logger *log.Logger) *LogSink {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver logs the alert.
func (s *LogSink) Deliver(_ context.Context, alert telemetry.AlertEvent) error {
	if alert.OwnerUserID != nil {
		s.logger.Printf("ALERT for user %s: %s", alert.OwnerUserID, alert.Message)
		return nil
	}
	s.logger.Printf("ALERT (unassigned device): %s", alert.Message)
	return nil
}

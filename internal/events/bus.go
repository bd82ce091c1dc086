package events

import (
	"context"
	"errors"
	"time"
)

const (
	SourceEmergencyEngine = "health.emergency"

	TypeAlertProcessed     = "EmergencyAlertProcessed"
	TypeAlertEscalated     = "EmergencyAlertEscalated"
	TypeAlertStatusChanged = "EmergencyAlertStatusChanged"
)

type Event struct {
	Source    string         `json:"source"`
	Type      string         `json:"event_type"`
	Detail    map[string]any `json:"detail"`
	Timestamp time.Time      `json:"timestamp"`
}

// Bus is fire-and-forget: callers log a Publish error and move on.
type Bus interface {
	Publish(ctx context.Context, source, eventType string, detail map[string]any) error
}

// MultiBus publishes to every bus and joins their errors.
type MultiBus []Bus

func (m MultiBus) Publish(ctx context.Context, source, eventType string, detail map[string]any) error {
	var errs []error
	for _, b := range m {
		if err := b.Publish(ctx, source, eventType, detail); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

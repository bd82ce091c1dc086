package gateway

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/notification"
)

// LogProvider stands in for a vendor when no endpoint is configured. It
// logs the message and reports success.
type LogProvider struct {
	name string
}

func NewLogProvider(name string) *LogProvider {
	return &LogProvider{name: name}
}

func (p *LogProvider) Name() string { return p.name }

func (p *LogProvider) Send(_ context.Context, msg notification.Message) notification.SendResult {
	id := "log-" + uuid.NewString()
	slog.Info("notification logged",
		"provider", p.name,
		"recipient", msg.Recipient,
		"subject", msg.Subject,
		"message_id", id,
	)
	return notification.SendResult{Success: true, MessageID: id}
}

// LogResponder logs immediate actions and consultation requests instead of
// calling out.
type LogResponder struct{}

func (LogResponder) CallEMS(_ context.Context, alert *models.EmergencyAlert) (string, error) {
	return logAction("ems_call", alert), nil
}

func (LogResponder) AlertProviders(_ context.Context, alert *models.EmergencyAlert) (string, error) {
	return logAction("provider_alert", alert), nil
}

func (LogResponder) IncreaseMonitoring(_ context.Context, alert *models.EmergencyAlert) (string, error) {
	return logAction("monitoring_increase", alert), nil
}

func (LogResponder) RequestConsultation(_ context.Context, patientID, alertID string, _ map[string]any) (string, error) {
	ref := "log-" + uuid.NewString()
	slog.Info("consultation requested", "patient_id", patientID, "alert_id", alertID, "reference", ref)
	return ref, nil
}

func logAction(action string, alert *models.EmergencyAlert) string {
	ref := "log-" + uuid.NewString()
	slog.Warn("action logged",
		"action", action,
		"alert_id", alert.ID,
		"patient_id", alert.PatientID,
		"urgency", alert.UrgencyLevel,
		"reference", ref,
	)
	return ref
}

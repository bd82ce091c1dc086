package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

type ActionEndpoints struct {
	EMS        string
	Providers  string
	Monitoring string
}

type actionRequest struct {
	AlertID        string                `json:"alert_id"`
	PatientID      string                `json:"patient_id"`
	DeviceID       string                `json:"device_id,omitempty"`
	UrgencyLevel   models.UrgencyLevel   `json:"urgency_level"`
	Classification models.Classification `json:"classification,omitempty"`
	MedicalCode    string                `json:"medical_code,omitempty"`
	SeverityScore  float64               `json:"severity_score"`
	Escalation     int                   `json:"escalation_level"`
}

type actionResponse struct {
	Reference string `json:"reference"`
	Error     string `json:"error"`
}

// ActionWebhook posts immediate-response actions (EMS dispatch, provider
// paging, monitoring changes) to the facility's integration endpoints.
type ActionWebhook struct {
	endpoints ActionEndpoints
	client    *resty.Client
}

func NewActionWebhook(endpoints ActionEndpoints, cfg ClientConfig) *ActionWebhook {
	return &ActionWebhook{
		endpoints: endpoints,
		client:    newClient(cfg),
	}
}

func (w *ActionWebhook) CallEMS(ctx context.Context, alert *models.EmergencyAlert) (string, error) {
	return w.post(ctx, "ems_call", w.endpoints.EMS, alert)
}

func (w *ActionWebhook) AlertProviders(ctx context.Context, alert *models.EmergencyAlert) (string, error) {
	return w.post(ctx, "provider_alert", w.endpoints.Providers, alert)
}

func (w *ActionWebhook) IncreaseMonitoring(ctx context.Context, alert *models.EmergencyAlert) (string, error) {
	return w.post(ctx, "monitoring_increase", w.endpoints.Monitoring, alert)
}

func (w *ActionWebhook) post(ctx context.Context, action, endpoint string, alert *models.EmergencyAlert) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("%s: %w", action, ErrNotConfigured)
	}

	var out actionResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(actionRequest{
			AlertID:        alert.ID,
			PatientID:      alert.PatientID,
			DeviceID:       alert.DeviceID,
			UrgencyLevel:   alert.UrgencyLevel,
			Classification: alert.Classification,
			MedicalCode:    alert.Protocol.MedicalCode,
			SeverityScore:  alert.SeverityScore,
			Escalation:     alert.EscalationLevel,
		}).
		SetResult(&out).
		SetError(&out).
		Post(endpoint)
	if err != nil {
		return "", fmt.Errorf("%s: %w", action, err)
	}
	if resp.IsError() {
		if out.Error != "" {
			return "", fmt.Errorf("%s: %s", action, out.Error)
		}
		return "", fmt.Errorf("%s: %w", action, statusError(resp))
	}

	slog.Info("action delivered", "action", action, "alert_id", alert.ID, "reference", out.Reference)
	return out.Reference, nil
}

package models

import (
	"fmt"
	"strings"
)

// TriggerPayload is the raw event that opens an alert: a device reading,
// an AI analysis result or a manual report.
type TriggerPayload struct {
	PatientID    string         `json:"patient_id"`
	DeviceID     string         `json:"device_id,omitempty"`
	AnalysisID   string         `json:"analysis_id,omitempty"`
	AlertType    AlertType      `json:"alert_type"`
	UrgencyLevel UrgencyLevel   `json:"urgency_level,omitempty"`
	HealthData   map[string]any `json:"health_data"`
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (p *TriggerPayload) Validate() error {
	if strings.TrimSpace(p.PatientID) == "" {
		return &ValidationError{Field: "patient_id", Message: "is required"}
	}
	if p.AlertType == "" {
		return &ValidationError{Field: "alert_type", Message: "is required"}
	}
	if !p.AlertType.Valid() {
		return &ValidationError{Field: "alert_type", Message: fmt.Sprintf("unknown type %q", p.AlertType)}
	}
	return nil
}

package models

import (
	"fmt"
	"strings"
	"time"
)

type AlertType string

const (
	AlertTypeDeviceReading  AlertType = "device_reading"
	AlertTypeHealthAnalysis AlertType = "health_analysis"
	AlertTypeManualTrigger  AlertType = "manual_trigger"
	AlertTypeSystemTest     AlertType = "system_test"

	// Origin tags produced by scheduled checks and trend jobs upstream.
	AlertTypeScheduledCheck AlertType = "scheduled_check"
	AlertTypeTrendAnalysis  AlertType = "trend_analysis"
	AlertTypeNeurological   AlertType = "neurological"
)

func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeDeviceReading, AlertTypeHealthAnalysis, AlertTypeManualTrigger, AlertTypeSystemTest,
		AlertTypeScheduledCheck, AlertTypeTrendAnalysis, AlertTypeNeurological:
		return true
	}
	return false
}

// UrgencyLevel is ordered: LOW < MEDIUM < HIGH < CRITICAL.
type UrgencyLevel int

const (
	UrgencyUnknown UrgencyLevel = iota
	UrgencyLow
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical
)

func (u UrgencyLevel) String() string {
	switch u {
	case UrgencyLow:
		return "LOW"
	case UrgencyMedium:
		return "MEDIUM"
	case UrgencyHigh:
		return "HIGH"
	case UrgencyCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func ParseUrgencyLevel(s string) UrgencyLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return UrgencyLow
	case "MEDIUM", "MODERATE":
		return UrgencyMedium
	case "HIGH":
		return UrgencyHigh
	case "CRITICAL":
		return UrgencyCritical
	default:
		return UrgencyUnknown
	}
}

func (u UrgencyLevel) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *UrgencyLevel) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*u = UrgencyUnknown
		return nil
	}
	level := ParseUrgencyLevel(string(b))
	if level == UrgencyUnknown {
		return fmt.Errorf("unknown urgency level: %q", string(b))
	}
	*u = level
	return nil
}

type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "ACTIVE"
	AlertStatusEscalated AlertStatus = "ESCALATED"
	AlertStatusResolved  AlertStatus = "RESOLVED"
)

func ParseAlertStatus(s string) (AlertStatus, bool) {
	switch AlertStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case AlertStatusActive:
		return AlertStatusActive, true
	case AlertStatusEscalated:
		return AlertStatusEscalated, true
	case AlertStatusResolved:
		return AlertStatusResolved, true
	}
	return "", false
}

// CanTransition reports whether an alert may move from s to next.
// Status only moves forward; ESCALATED may be re-entered.
func (s AlertStatus) CanTransition(next AlertStatus) bool {
	switch s {
	case AlertStatusActive:
		return next == AlertStatusEscalated || next == AlertStatusResolved
	case AlertStatusEscalated:
		return next == AlertStatusEscalated || next == AlertStatusResolved
	default:
		return false
	}
}

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelVoice Channel = "voice"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

type ResponseAction struct {
	Action    string    `json:"action"`
	Result    string    `json:"result"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

type NotificationAttempt struct {
	Channel   Channel   `json:"channel"`
	Provider  string    `json:"provider"`
	Recipient string    `json:"recipient"`
	ContactID string    `json:"contact_id,omitempty"`
	Success   bool      `json:"success"`
	MessageID string    `json:"provider_message_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

type EmergencyAlert struct {
	ID                string                `json:"alert_id"`
	PatientID         string                `json:"patient_id"`
	DeviceID          string                `json:"device_id,omitempty"`
	AnalysisID        string                `json:"analysis_id,omitempty"`
	AlertType         AlertType             `json:"alert_type"`
	UrgencyLevel      UrgencyLevel          `json:"urgency_level"`
	HealthData        map[string]any        `json:"health_data"`
	SeverityScore     float64               `json:"severity_score"`
	Classification    Classification        `json:"classification,omitempty"`
	Status            AlertStatus           `json:"status"`
	EscalationLevel   int                   `json:"escalation_level"`
	Protocol          ResponseProtocol      `json:"protocol"`
	EscalationPlan    []EscalationStep      `json:"escalation_plan"`
	ResponseActions   []ResponseAction      `json:"response_actions"`
	NotificationsSent []NotificationAttempt `json:"notifications_sent"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// RecordAction appends a response action and bumps UpdatedAt. result is
// the collaborator's reference or summary; err marks the action failed.
func (a *EmergencyAlert) RecordAction(action, result string, err error, now time.Time) {
	ra := ResponseAction{
		Action:    action,
		Result:    result,
		Success:   err == nil,
		Timestamp: now,
	}
	if err != nil {
		ra.Result = "failed: " + err.Error()
	} else if ra.Result == "" {
		ra.Result = "success"
	}
	a.ResponseActions = append(a.ResponseActions, ra)
	a.UpdatedAt = now
}

func (a *EmergencyAlert) RecordNotifications(attempts []NotificationAttempt, now time.Time) {
	a.NotificationsSent = append(a.NotificationsSent, attempts...)
	a.UpdatedAt = now
}

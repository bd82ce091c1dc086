package models

import (
	"encoding/json"
	"time"
)

// Classification is a medical condition code inferred from vitals. The
// empty value means no condition matched.
type Classification string

const (
	ClassificationNone                Classification = ""
	ClassificationCardiacArrest       Classification = "cardiac_arrest"
	ClassificationCardiacArrhythmia   Classification = "cardiac_arrhythmia"
	ClassificationHypertensiveCrisis  Classification = "hypertensive_crisis"
	ClassificationHypotension         Classification = "hypotension"
	ClassificationHypoglycemia        Classification = "hypoglycemia"
	ClassificationHyperglycemia       Classification = "hyperglycemia"
	ClassificationSevereHypoxemia     Classification = "severe_hypoxemia"
	ClassificationRespiratoryDistress Classification = "respiratory_distress"
	ClassificationHyperthermia        Classification = "hyperthermia"
	ClassificationStroke              Classification = "stroke"
)

type ResponseProtocol struct {
	UrgencyLevel              UrgencyLevel   `json:"urgency_level"`
	ResponseTimeBudgetSeconds int            `json:"response_time_budget_seconds"`
	AutoCallEMS               bool           `json:"auto_call_ems"`
	NotifyEmergencyContacts   bool           `json:"notify_emergency_contacts"`
	AlertProviders            bool           `json:"alert_providers"`
	RequireConsultation       bool           `json:"require_consultation"`
	IncreaseMonitoring        bool           `json:"increase_monitoring"`
	SendSMS                   bool           `json:"send_sms"`
	SendEmail                 bool           `json:"send_email"`
	SendPush                  bool           `json:"send_push"`
	SendVoice                 bool           `json:"send_voice"`
	EscalationLevels          int            `json:"escalation_levels"`
	FollowUpIntervalsMinutes  []int          `json:"follow_up_intervals_minutes"`
	Classification            Classification `json:"classification,omitempty"`
	MedicalCode               string         `json:"medical_code,omitempty"`
}

type EscalationStep struct {
	Level              int           `json:"level"`
	TriggerDescription string        `json:"trigger_description"`
	RequiredActions    []string      `json:"required_actions"`
	TimeOffset         time.Duration `json:"-"`
}

type escalationStepJSON struct {
	Level              int      `json:"level"`
	TriggerDescription string   `json:"trigger_description"`
	RequiredActions    []string `json:"required_actions"`
	TimeOffsetSeconds  int64    `json:"time_offset_seconds"`
}

// MarshalJSON writes the offset as whole seconds.
func (s EscalationStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(escalationStepJSON{
		Level:              s.Level,
		TriggerDescription: s.TriggerDescription,
		RequiredActions:    s.RequiredActions,
		TimeOffsetSeconds:  int64(s.TimeOffset / time.Second),
	})
}

func (s *EscalationStep) UnmarshalJSON(b []byte) error {
	var raw escalationStepJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = EscalationStep{
		Level:              raw.Level,
		TriggerDescription: raw.TriggerDescription,
		RequiredActions:    raw.RequiredActions,
		TimeOffset:         time.Duration(raw.TimeOffsetSeconds) * time.Second,
	}
	return nil
}

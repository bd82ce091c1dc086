package protocol

import (
	"time"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

const (
	ActionNotifyContacts   = "notify_emergency_contacts"
	ActionBeginMonitoring  = "begin_monitoring"
	ActionAlertProviders   = "alert_providers"
	ActionConsiderEMS      = "consider_ems"
	ActionCallEMS          = "call_ems"
	ActionPrepareTransport = "prepare_transport"
)

// Plan expands the protocol into exactly EscalationLevels time-triggered
// steps. Levels above 3 repeat the level-3 step; no further tier is
// defined yet.
func Plan(p models.ResponseProtocol) []models.EscalationStep {
	steps := make([]models.EscalationStep, 0, p.EscalationLevels)
	for level := 1; level <= p.EscalationLevels; level++ {
		steps = append(steps, StepFor(level))
	}
	return steps
}

func StepFor(level int) models.EscalationStep {
	switch {
	case level <= 1:
		return models.EscalationStep{
			Level:              1,
			TriggerDescription: "immediate: notify contacts, begin monitoring",
			RequiredActions:    []string{ActionNotifyContacts, ActionBeginMonitoring},
			TimeOffset:         0,
		}
	case level == 2:
		return models.EscalationStep{
			Level:              2,
			TriggerDescription: "no resolution after 10 minutes: alert providers, consider EMS",
			RequiredActions:    []string{ActionAlertProviders, ActionConsiderEMS},
			TimeOffset:         10 * time.Minute,
		}
	default:
		return models.EscalationStep{
			Level:              level,
			TriggerDescription: "no resolution after 15 minutes: call EMS, prepare transport",
			RequiredActions:    []string{ActionCallEMS, ActionPrepareTransport},
			TimeOffset:         15 * time.Minute,
		}
	}
}

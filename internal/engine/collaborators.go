package engine

import (
	"context"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/notification"
)

// Immediate-response collaborators return a reference (ticket, page or
// session id) that is kept on the alert's action log.

type EMSCaller interface {
	CallEMS(ctx context.Context, alert *models.EmergencyAlert) (string, error)
}

type ProviderPager interface {
	AlertProviders(ctx context.Context, alert *models.EmergencyAlert) (string, error)
}

type MonitoringController interface {
	IncreaseMonitoring(ctx context.Context, alert *models.EmergencyAlert) (string, error)
}

type ConsultationRequester interface {
	RequestConsultation(ctx context.Context, patientID, alertID string, healthData map[string]any) (string, error)
}

type Notifier interface {
	Dispatch(ctx context.Context, alert *models.EmergencyAlert, p models.ResponseProtocol, contacts []models.EmergencyContact) notification.DispatchResult
}

package repository

import (
	"context"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

type AlertFilter struct {
	Limit        int
	PatientID    *string
	Status       *models.AlertStatus
	UrgencyLevel *models.UrgencyLevel
}

// AlertStore is keyed by alert id. Put is a full-record overwrite, so
// repeating it with the same record is harmless.
type AlertStore interface {
	Put(ctx context.Context, a *models.EmergencyAlert) error
	Get(ctx context.Context, id string) (*models.EmergencyAlert, error)
	QueryByPatient(ctx context.Context, patientID string) ([]models.EmergencyAlert, error)
	QueryByStatus(ctx context.Context, status models.AlertStatus) ([]models.EmergencyAlert, error)
	ListAlerts(ctx context.Context, opts AlertFilter) ([]models.EmergencyAlert, error)
}

type ContactDirectory interface {
	GetContacts(ctx context.Context, patientID string) ([]models.EmergencyContact, error)
}

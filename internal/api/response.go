package api

import (
	"time"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

type AlertList struct {
	Count  int            `json:"count"`
	Alerts []AlertSummary `json:"alerts"`
}

// AlertSummary is the list view of an alert; GET /api/alerts/:id returns the
// full record.
type AlertSummary struct {
	ID                 string                `json:"alert_id"`
	PatientID          string                `json:"patient_id"`
	AlertType          models.AlertType      `json:"alert_type"`
	UrgencyLevel       models.UrgencyLevel   `json:"urgency_level"`
	Classification     models.Classification `json:"classification,omitempty"`
	SeverityScore      float64               `json:"severity_score"`
	Status             models.AlertStatus    `json:"status"`
	EscalationLevel    int                   `json:"escalation_level"`
	NotificationsSent  int                   `json:"notifications_sent"`
	NotificationsTotal int                   `json:"notifications_total"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

func toAlertList(alerts []models.EmergencyAlert) AlertList {
	summaries := make([]AlertSummary, 0, len(alerts))

	for _, a := range alerts {
		delivered := 0
		for _, n := range a.NotificationsSent {
			if n.Success {
				delivered++
			}
		}
		summaries = append(summaries, AlertSummary{
			ID:                 a.ID,
			PatientID:          a.PatientID,
			AlertType:          a.AlertType,
			UrgencyLevel:       a.UrgencyLevel,
			Classification:     a.Classification,
			SeverityScore:      a.SeverityScore,
			Status:             a.Status,
			EscalationLevel:    a.EscalationLevel,
			NotificationsSent:  delivered,
			NotificationsTotal: len(a.NotificationsSent),
			CreatedAt:          a.CreatedAt,
			UpdatedAt:          a.UpdatedAt,
		})
	}

	return AlertList{
		Count:  len(summaries),
		Alerts: summaries,
	}
}

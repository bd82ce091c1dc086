package repository

import (
	"context"
	"testing"
	"time"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	return db
}

func newAlert(id, patientID string, status models.AlertStatus, urgency models.UrgencyLevel, created time.Time) *models.EmergencyAlert {
	return &models.EmergencyAlert{
		ID:              id,
		PatientID:       patientID,
		AlertType:       models.AlertTypeDeviceReading,
		UrgencyLevel:    urgency,
		HealthData:      map[string]any{"heart_rate": 35.0},
		SeverityScore:   0.44,
		Classification:  models.ClassificationCardiacArrest,
		Status:          status,
		EscalationLevel: 1,
		Protocol: models.ResponseProtocol{
			UrgencyLevel:             urgency,
			EscalationLevels:         3,
			FollowUpIntervalsMinutes: []int{5, 15, 30},
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func TestSQLiteDB_PutAndGet(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	a := newAlert("alert_1", "patient_1", models.AlertStatusActive, models.UrgencyCritical, time.Now())
	a.NotificationsSent = []models.NotificationAttempt{{Channel: models.ChannelSMS, Provider: "sms-primary", Recipient: "+15550001", Success: true}}

	if err := db.Put(ctx, a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := db.Get(ctx, "alert_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected alert, got nil")
	}
	if got.UrgencyLevel != models.UrgencyCritical {
		t.Errorf("expected CRITICAL, got %s", got.UrgencyLevel)
	}
	if got.Classification != models.ClassificationCardiacArrest {
		t.Errorf("expected cardiac_arrest, got %q", got.Classification)
	}
	if len(got.NotificationsSent) != 1 || got.NotificationsSent[0].Provider != "sms-primary" {
		t.Errorf("notifications not round-tripped: %+v", got.NotificationsSent)
	}
	if got.HealthData["heart_rate"] != 35.0 {
		t.Errorf("health data not round-tripped: %v", got.HealthData)
	}
}

func TestSQLiteDB_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	got, err := db.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing alert, got %+v", got)
	}
}

func TestSQLiteDB_PutOverwrites(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	a := newAlert("alert_1", "patient_1", models.AlertStatusActive, models.UrgencyHigh, time.Now())
	if err := db.Put(ctx, a); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	a.Status = models.AlertStatusEscalated
	a.EscalationLevel = 2
	if err := db.Put(ctx, a); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	// repeating the same write is harmless
	if err := db.Put(ctx, a); err != nil {
		t.Fatalf("repeated Put failed: %v", err)
	}

	got, err := db.Get(ctx, "alert_1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.AlertStatusEscalated || got.EscalationLevel != 2 {
		t.Errorf("expected ESCALATED/2, got %s/%d", got.Status, got.EscalationLevel)
	}

	escalated, err := db.QueryByStatus(ctx, models.AlertStatusEscalated)
	if err != nil {
		t.Fatalf("QueryByStatus failed: %v", err)
	}
	if len(escalated) != 1 {
		t.Errorf("expected 1 escalated alert, got %d", len(escalated))
	}
}

func TestSQLiteDB_ListAlerts_WithFilters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	alerts := []*models.EmergencyAlert{
		newAlert("a1", "p1", models.AlertStatusActive, models.UrgencyCritical, now.Add(-3*time.Minute)),
		newAlert("a2", "p1", models.AlertStatusResolved, models.UrgencyLow, now.Add(-2*time.Minute)),
		newAlert("a3", "p2", models.AlertStatusActive, models.UrgencyCritical, now.Add(-1*time.Minute)),
	}
	for _, a := range alerts {
		if err := db.Put(ctx, a); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	results, err := db.QueryByPatient(ctx, "p1")
	if err != nil {
		t.Fatalf("QueryByPatient failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 alerts for p1, got %d", len(results))
	}

	results, err = db.QueryByStatus(ctx, models.AlertStatusActive)
	if err != nil {
		t.Fatalf("QueryByStatus failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 active alerts, got %d", len(results))
	}
	if results[0].ID != "a3" {
		t.Errorf("expected newest first, got %s", results[0].ID)
	}

	critical := models.UrgencyCritical
	p1 := "p1"
	results, err = db.ListAlerts(ctx, AlertFilter{PatientID: &p1, UrgencyLevel: &critical})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(results) != 1 || results[0].ID != "a1" {
		t.Errorf("expected only a1, got %+v", results)
	}

	results, err = db.ListAlerts(ctx, AlertFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 alerts with limit, got %d", len(results))
	}
}

func TestSQLiteDB_Contacts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	contacts := []*models.EmergencyContact{
		{PatientID: "p1", ContactID: "c1", Name: "Ana", Relationship: "daughter", Phone: "+15550001", Email: "ana@example.com"},
		{PatientID: "p1", ContactID: "c2", Name: "Ben", Relationship: "neighbour", Phone: "+15550002"},
		{PatientID: "p2", ContactID: "c1", Name: "Cleo", Relationship: "spouse", Email: "cleo@example.com"},
	}
	for _, c := range contacts {
		if err := db.AddContact(ctx, c); err != nil {
			t.Fatalf("AddContact failed: %v", err)
		}
	}

	got, err := db.GetContacts(ctx, "p1")
	if err != nil {
		t.Fatalf("GetContacts failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(got))
	}
	if got[1].Email != "" || got[1].Phone != "+15550002" {
		t.Errorf("unexpected optional fields: %+v", got[1])
	}

	// upsert replaces the existing contact
	if err := db.AddContact(ctx, &models.EmergencyContact{PatientID: "p1", ContactID: "c2", Name: "Ben", PushToken: "tok"}); err != nil {
		t.Fatalf("AddContact upsert failed: %v", err)
	}
	got, _ = db.GetContacts(ctx, "p1")
	if got[1].PushToken != "tok" || got[1].Phone != "" {
		t.Errorf("expected upserted contact, got %+v", got[1])
	}

	none, err := db.GetContacts(ctx, "unknown")
	if err != nil {
		t.Fatalf("GetContacts failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no contacts, got %d", len(none))
	}
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// a single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS emergency_alerts (
			id TEXT PRIMARY KEY,
			patient_id TEXT NOT NULL,
			status TEXT NOT NULL,
			urgency_level INTEGER NOT NULL,
			escalation_level INTEGER NOT NULL,
			record BLOB NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS emergency_contacts (
			patient_id TEXT NOT NULL,
			contact_id TEXT NOT NULL,
			name TEXT NOT NULL,
			relationship TEXT,
			phone TEXT,
			email TEXT,
			push_token TEXT,
			PRIMARY KEY (patient_id, contact_id)
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_patient_id ON emergency_alerts(patient_id);
		CREATE INDEX IF NOT EXISTS idx_alerts_status ON emergency_alerts(status);
		CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON emergency_alerts(created_at);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) Put(ctx context.Context, a *models.EmergencyAlert) error {
	record, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("error encoding alert %s: %w", a.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO emergency_alerts (id, patient_id, status, urgency_level, escalation_level, record, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			patient_id = excluded.patient_id,
			status = excluded.status,
			urgency_level = excluded.urgency_level,
			escalation_level = excluded.escalation_level,
			record = excluded.record,
			updated_at = excluded.updated_at`,
		a.ID, a.PatientID, string(a.Status), int(a.UrgencyLevel), a.EscalationLevel,
		record, a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("error writing alert %s: %w", a.ID, err)
	}
	return nil
}

func (s *SQLiteDB) Get(ctx context.Context, id string) (*models.EmergencyAlert, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM emergency_alerts WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading alert %s: %w", id, err)
	}

	var a models.EmergencyAlert
	if err := json.Unmarshal(record, &a); err != nil {
		return nil, fmt.Errorf("error decoding alert %s: %w", id, err)
	}
	return &a, nil
}

func (s *SQLiteDB) QueryByPatient(ctx context.Context, patientID string) ([]models.EmergencyAlert, error) {
	return s.ListAlerts(ctx, AlertFilter{PatientID: &patientID})
}

func (s *SQLiteDB) QueryByStatus(ctx context.Context, status models.AlertStatus) ([]models.EmergencyAlert, error) {
	return s.ListAlerts(ctx, AlertFilter{Status: &status})
}

// ListAlerts returns alerts newest first.
func (s *SQLiteDB) ListAlerts(ctx context.Context, opts AlertFilter) ([]models.EmergencyAlert, error) {
	query := `SELECT record FROM emergency_alerts WHERE 1=1`
	var args []any

	if opts.PatientID != nil {
		query += ` AND patient_id = ?`
		args = append(args, *opts.PatientID)
	}
	if opts.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*opts.Status))
	}
	if opts.UrgencyLevel != nil {
		query += ` AND urgency_level = ?`
		args = append(args, int(*opts.UrgencyLevel))
	}
	query += ` ORDER BY created_at DESC, id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.EmergencyAlert
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		var a models.EmergencyAlert
		if err := json.Unmarshal(record, &a); err != nil {
			return nil, fmt.Errorf("error decoding alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *SQLiteDB) AddContact(ctx context.Context, c *models.EmergencyContact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO emergency_contacts (patient_id, contact_id, name, relationship, phone, email, push_token)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(patient_id, contact_id) DO UPDATE SET
			name = excluded.name,
			relationship = excluded.relationship,
			phone = excluded.phone,
			email = excluded.email,
			push_token = excluded.push_token`,
		c.PatientID, c.ContactID, c.Name, c.Relationship, c.Phone, c.Email, c.PushToken,
	)
	if err != nil {
		return fmt.Errorf("error writing contact %s/%s: %w", c.PatientID, c.ContactID, err)
	}
	return nil
}

func (s *SQLiteDB) GetContacts(ctx context.Context, patientID string) ([]models.EmergencyContact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT patient_id, contact_id, name, COALESCE(relationship, ''), COALESCE(phone, ''), COALESCE(email, ''), COALESCE(push_token, '')
		FROM emergency_contacts WHERE patient_id = ? ORDER BY contact_id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("error querying contacts: %w", err)
	}
	defer rows.Close()

	var contacts []models.EmergencyContact
	for rows.Next() {
		var c models.EmergencyContact
		if err := rows.Scan(&c.PatientID, &c.ContactID, &c.Name, &c.Relationship, &c.Phone, &c.Email, &c.PushToken); err != nil {
			return nil, fmt.Errorf("error scanning contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Ping reports whether the database is reachable.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

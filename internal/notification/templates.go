package notification

import (
	"fmt"
	"strings"
	"sync"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

type Template struct {
	Subject string
	Body    string
}

type templateKey struct {
	channel models.Channel
	urgency models.UrgencyLevel
}

// TemplateEngine holds one template per channel and urgency level and
// renders {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[templateKey]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[templateKey]Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	sms := map[models.UrgencyLevel]string{
		models.UrgencyCritical: "EMERGENCY: {{patient_name}} needs immediate help ({{condition}}). Emergency services are being contacted. Alert {{alert_id}}",
		models.UrgencyHigh:     "URGENT: health alert for {{patient_name}} ({{condition}}). Please check in now. Alert {{alert_id}}",
		models.UrgencyMedium:   "Health notice for {{patient_name}}: readings need attention ({{condition}}). Alert {{alert_id}}",
		models.UrgencyLow:      "FYI: minor health reading for {{patient_name}}. Alert {{alert_id}}",
	}
	voice := map[models.UrgencyLevel]string{
		models.UrgencyCritical: "This is an emergency alert for {{patient_name}}. A {{condition}} event was detected. Emergency services are being contacted. Reference {{alert_id}}.",
		models.UrgencyHigh:     "This is an urgent health alert for {{patient_name}}. A {{condition}} event was detected. Reference {{alert_id}}.",
		models.UrgencyMedium:   "This is a health notice for {{patient_name}}. Reference {{alert_id}}.",
		models.UrgencyLow:      "This is a routine health notice for {{patient_name}}. Reference {{alert_id}}.",
	}
	emailSubjects := map[models.UrgencyLevel]string{
		models.UrgencyCritical: "[EMERGENCY] Immediate action required for {{patient_name}}",
		models.UrgencyHigh:     "[URGENT] Health alert for {{patient_name}}",
		models.UrgencyMedium:   "Health notice for {{patient_name}}",
		models.UrgencyLow:      "Health update for {{patient_name}}",
	}
	emailBody := "Dear {{contact_name}},\n\n" +
		"An alert with urgency {{urgency}} was raised for {{patient_name}}.\n" +
		"Condition: {{condition}}\nSeverity score: {{severity_score}}\n" +
		"Time: {{created_at}}\n\nAlert ID: {{alert_id}}\n"
	push := map[models.UrgencyLevel]string{
		models.UrgencyCritical: "Emergency for {{patient_name}}: {{condition}}. Tap to respond. ({{alert_id}})",
		models.UrgencyHigh:     "Urgent alert for {{patient_name}}: {{condition}} ({{alert_id}})",
		models.UrgencyMedium:   "Health notice for {{patient_name}} ({{alert_id}})",
		models.UrgencyLow:      "Health update for {{patient_name}} ({{alert_id}})",
	}

	for _, u := range []models.UrgencyLevel{models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh, models.UrgencyCritical} {
		e.templates[templateKey{models.ChannelSMS, u}] = Template{Body: sms[u]}
		e.templates[templateKey{models.ChannelVoice, u}] = Template{Body: voice[u]}
		e.templates[templateKey{models.ChannelEmail, u}] = Template{Subject: emailSubjects[u], Body: emailBody}
		e.templates[templateKey{models.ChannelPush, u}] = Template{Body: push[u]}
	}
}

// RegisterTemplate adds or replaces the template for a channel and urgency.
func (e *TemplateEngine) RegisterTemplate(channel models.Channel, urgency models.UrgencyLevel, t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[templateKey{channel, urgency}] = t
}

// Render fills the template for channel/urgency. The alert id is always
// present in the body, even for custom templates that omit it.
func (e *TemplateEngine) Render(channel models.Channel, urgency models.UrgencyLevel, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateKey{channel, urgency}]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("no %s template for urgency %s", channel, urgency)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}

	if id := data["alert_id"]; id != "" && !strings.Contains(body, id) {
		body = strings.TrimRight(body, " \n") + " (alert " + id + ")"
	}
	return subject, body, nil
}

func templateData(alert *models.EmergencyAlert, contact models.EmergencyContact) map[string]string {
	condition := string(alert.Classification)
	if condition == "" {
		condition = "abnormal readings"
	}
	condition = strings.ReplaceAll(condition, "_", " ")

	return map[string]string{
		"alert_id":       alert.ID,
		"patient_id":     alert.PatientID,
		"patient_name":   "patient " + alert.PatientID,
		"contact_name":   contact.Name,
		"urgency":        alert.UrgencyLevel.String(),
		"condition":      condition,
		"classification": string(alert.Classification),
		"severity_score": fmt.Sprintf("%.3f", alert.SeverityScore),
		"created_at":     alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
	}
}

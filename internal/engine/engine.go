package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mr1hm/go-emergency-alerts/internal/assessment"
	"github.com/mr1hm/go-emergency-alerts/internal/events"
	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/protocol"
	"github.com/mr1hm/go-emergency-alerts/internal/repository"
)

const (
	ActionCallEMS            = "ems_call"
	ActionAlertProviders     = "provider_alert"
	ActionIncreaseMonitoring = "monitoring_increase"
	ActionContactLookup      = "contact_lookup"
	ActionNotifyContacts     = "notify_emergency_contacts"
	ActionConsultation       = "consultation_request"
	ActionStatusChange       = "status_change"
	ActionEscalation         = "escalation"
	ActionConsiderEMS        = "consider_ems"
	ActionPrepareTransport   = "prepare_transport"
)

const defaultActionTimeout = 10 * time.Second

var (
	ErrAlertNotFound     = errors.New("alert not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	errNotConfigured     = errors.New("no collaborator configured")
)

type Engine struct {
	store    repository.AlertStore
	contacts repository.ContactDirectory
	notifier Notifier
	resolver *protocol.Resolver

	ems     EMSCaller
	pager   ProviderPager
	monitor MonitoringController
	consult ConsultationRequester
	bus     events.Bus

	actionTimeout time.Duration
	now           func() time.Time
	newID         func() string
}

type Option func(*Engine)

func WithResolver(r *protocol.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

func WithEMSCaller(c EMSCaller) Option {
	return func(e *Engine) { e.ems = c }
}

func WithProviderPager(p ProviderPager) Option {
	return func(e *Engine) { e.pager = p }
}

func WithMonitoringController(m MonitoringController) Option {
	return func(e *Engine) { e.monitor = m }
}

func WithConsultationRequester(c ConsultationRequester) Option {
	return func(e *Engine) { e.consult = c }
}

func WithBus(b events.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithActionTimeout bounds each immediate action and consultation call.
func WithActionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.actionTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func New(store repository.AlertStore, contacts repository.ContactDirectory, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		contacts:      contacts,
		notifier:      notifier,
		actionTimeout: defaultActionTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = protocol.NewResolver(protocol.WithClock(e.now))
	}
	return e
}

// CreateAndProcessAlert turns a trigger into a persisted alert and runs its
// immediate response. Only validation and the first write fail the call;
// every later step records its outcome on the alert and processing goes on.
// Once the alert is stored the response runs to completion even if the
// caller goes away.
func (e *Engine) CreateAndProcessAlert(ctx context.Context, payload models.TriggerPayload) (*models.EmergencyAlert, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	result := assessment.Assess(payload.HealthData, payload.AlertType, payload.UrgencyLevel)
	p := e.resolver.Resolve(result.Urgency, result.Classification, result.Health)

	now := e.now()
	alert := &models.EmergencyAlert{
		ID:                e.newID(),
		PatientID:         payload.PatientID,
		DeviceID:          payload.DeviceID,
		AnalysisID:        payload.AnalysisID,
		AlertType:         payload.AlertType,
		UrgencyLevel:      result.Urgency,
		HealthData:        cloneHealthData(payload.HealthData),
		SeverityScore:     result.SeverityScore,
		Classification:    result.Classification,
		Status:            models.AlertStatusActive,
		EscalationLevel:   1,
		Protocol:          p,
		EscalationPlan:    protocol.Plan(p),
		ResponseActions:   []models.ResponseAction{},
		NotificationsSent: []models.NotificationAttempt{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := e.store.Put(ctx, alert); err != nil {
		return nil, fmt.Errorf("error storing alert %s: %w", alert.ID, err)
	}

	slog.Info("alert created",
		"alert_id", alert.ID,
		"patient_id", alert.PatientID,
		"alert_type", alert.AlertType,
		"urgency", alert.UrgencyLevel,
		"classification", alert.Classification,
		"severity_score", alert.SeverityScore,
	)

	ctx = context.WithoutCancel(ctx)
	e.runImmediateActions(ctx, alert)
	e.notifyContacts(ctx, alert)

	if p.RequireConsultation {
		e.runAction(ctx, alert, ActionConsultation, e.consult != nil, func(ctx context.Context, a *models.EmergencyAlert) (string, error) {
			return e.consult.RequestConsultation(ctx, a.PatientID, a.ID, a.HealthData)
		})
	}

	if err := e.store.Put(ctx, alert); err != nil {
		// the ACTIVE record from the first write stays readable
		slog.Error("failed to store processed alert", "alert_id", alert.ID, "error", err)
	}

	e.publish(ctx, events.TypeAlertProcessed, processedDetail(alert))
	return alert, nil
}

func (e *Engine) runImmediateActions(ctx context.Context, alert *models.EmergencyAlert) {
	p := alert.Protocol
	if p.AutoCallEMS {
		e.runAction(ctx, alert, ActionCallEMS, e.ems != nil, func(ctx context.Context, a *models.EmergencyAlert) (string, error) {
			return e.ems.CallEMS(ctx, a)
		})
	}
	if p.AlertProviders {
		e.runAction(ctx, alert, ActionAlertProviders, e.pager != nil, func(ctx context.Context, a *models.EmergencyAlert) (string, error) {
			return e.pager.AlertProviders(ctx, a)
		})
	}
	if p.IncreaseMonitoring {
		e.runAction(ctx, alert, ActionIncreaseMonitoring, e.monitor != nil, func(ctx context.Context, a *models.EmergencyAlert) (string, error) {
			return e.monitor.IncreaseMonitoring(ctx, a)
		})
	}
}

// runAction calls a collaborator under the action timeout and records the
// outcome. A missing collaborator is recorded as a failed action. The
// collaborator gets a copy of the alert since a timed-out call may still be
// reading it.
func (e *Engine) runAction(ctx context.Context, alert *models.EmergencyAlert, action string, configured bool, call func(context.Context, *models.EmergencyAlert) (string, error)) {
	if !configured {
		alert.RecordAction(action, "", errNotConfigured, e.now())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.actionTimeout)
	defer cancel()

	type outcome struct {
		ref string
		err error
	}
	snapshot := *alert
	done := make(chan outcome, 1)
	go func() {
		ref, err := call(ctx, &snapshot)
		done <- outcome{ref, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		// a result that raced the deadline still counts
		select {
		case out = <-done:
		default:
			out.err = ctx.Err()
		}
	}
	if out.err != nil && ctx.Err() != nil {
		out.err = e.interrupted(ctx, out.err)
	}

	if out.err != nil {
		slog.Warn("response action failed", "alert_id", alert.ID, "action", action, "error", out.err)
	}
	alert.RecordAction(action, out.ref, out.err, e.now())
}

func (e *Engine) interrupted(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("cancelled: %w", err)
	}
	return fmt.Errorf("timed out after %s: %w", e.actionTimeout, err)
}

func (e *Engine) notifyContacts(ctx context.Context, alert *models.EmergencyAlert) {
	if !alert.Protocol.NotifyEmergencyContacts {
		return
	}

	contacts, err := e.contacts.GetContacts(ctx, alert.PatientID)
	if err != nil {
		slog.Warn("contact lookup failed", "alert_id", alert.ID, "patient_id", alert.PatientID, "error", err)
		alert.RecordAction(ActionContactLookup, "", err, e.now())
	}

	res := e.notifier.Dispatch(ctx, alert, alert.Protocol, contacts)
	alert.RecordNotifications(res.Attempts, e.now())

	summary := fmt.Sprintf("%d/%d deliveries succeeded", res.ChannelsSuccessful, res.ChannelsAttempted)
	var dispatchErr error
	switch {
	case res.ChannelsAttempted == 0:
		dispatchErr = errors.New("no reachable contacts")
	case res.ChannelsSuccessful == 0:
		dispatchErr = errors.New("every delivery failed")
	}
	alert.RecordAction(ActionNotifyContacts, summary, dispatchErr, e.now())
}

func (e *Engine) GetAlert(ctx context.Context, id string) (*models.EmergencyAlert, error) {
	alert, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error loading alert %s: %w", id, err)
	}
	return alert, nil
}

func (e *Engine) ListAlerts(ctx context.Context, filter repository.AlertFilter) ([]models.EmergencyAlert, error) {
	alerts, err := e.store.ListAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}
	return alerts, nil
}

// UpdateAlertStatus applies an operator transition. Resolving an already
// resolved alert is a no-op; entering ESCALATED raises the level.
func (e *Engine) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) (*models.EmergencyAlert, error) {
	alert, err := e.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}

	prev := alert.Status
	if prev == models.AlertStatusResolved && status == models.AlertStatusResolved {
		return alert, nil
	}
	if !prev.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, status)
	}

	alert.Status = status
	if status == models.AlertStatusEscalated {
		alert.EscalationLevel++
	}
	alert.RecordAction(ActionStatusChange, fmt.Sprintf("%s -> %s", prev, status), nil, e.now())

	if err := e.store.Put(ctx, alert); err != nil {
		return nil, fmt.Errorf("error storing alert %s: %w", id, err)
	}

	slog.Info("alert status changed", "alert_id", id, "from", prev, "to", status)
	e.publish(ctx, events.TypeAlertStatusChanged, map[string]any{
		"alert_id":         alert.ID,
		"patient_id":       alert.PatientID,
		"previous_status":  string(prev),
		"status":           string(status),
		"escalation_level": alert.EscalationLevel,
	})
	return alert, nil
}

// EscalateAlert executes the next step of the alert's plan. It is called by
// the external scheduler when a step's offset elapses without resolution.
func (e *Engine) EscalateAlert(ctx context.Context, id string) (*models.EmergencyAlert, error) {
	alert, err := e.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !alert.Status.CanTransition(models.AlertStatusEscalated) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, alert.Status, models.AlertStatusEscalated)
	}

	ctx = context.WithoutCancel(ctx)
	level := alert.EscalationLevel + 1
	step := protocol.StepFor(level)
	prev := alert.Status

	alert.Status = models.AlertStatusEscalated
	alert.EscalationLevel = level
	alert.RecordAction(ActionEscalation, fmt.Sprintf("level %d: %s", level, step.TriggerDescription), nil, e.now())

	for _, required := range step.RequiredActions {
		switch required {
		case protocol.ActionAlertProviders:
			e.runAction(ctx, alert, ActionAlertProviders, e.pager != nil, func(ctx context.Context, a *models.EmergencyAlert) (string, error) {
				return e.pager.AlertProviders(ctx, a)
			})
		case protocol.ActionCallEMS:
			e.runAction(ctx, alert, ActionCallEMS, e.ems != nil, func(ctx context.Context, a *models.EmergencyAlert) (string, error) {
				return e.ems.CallEMS(ctx, a)
			})
		case protocol.ActionConsiderEMS:
			alert.RecordAction(ActionConsiderEMS, "flagged for provider review", nil, e.now())
		case protocol.ActionPrepareTransport:
			alert.RecordAction(ActionPrepareTransport, "transport requested with EMS dispatch", nil, e.now())
		}
	}

	if err := e.store.Put(ctx, alert); err != nil {
		return nil, fmt.Errorf("error storing alert %s: %w", id, err)
	}

	slog.Warn("alert escalated", "alert_id", id, "level", level, "from", prev)
	e.publish(ctx, events.TypeAlertEscalated, map[string]any{
		"alert_id":         alert.ID,
		"patient_id":       alert.PatientID,
		"escalation_level": level,
		"urgency_level":    alert.UrgencyLevel.String(),
		"required_actions": strings.Join(step.RequiredActions, ","),
	})
	return alert, nil
}

func (e *Engine) mustGet(ctx context.Context, id string) (*models.EmergencyAlert, error) {
	alert, err := e.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, id)
	}
	return alert, nil
}

func (e *Engine) publish(ctx context.Context, eventType string, detail map[string]any) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(ctx, events.SourceEmergencyEngine, eventType, detail); err != nil {
		slog.Warn("event publish failed", "event_type", eventType, "alert_id", detail["alert_id"], "error", err)
	}
}

func processedDetail(alert *models.EmergencyAlert) map[string]any {
	delivered := 0
	for _, n := range alert.NotificationsSent {
		if n.Success {
			delivered++
		}
	}
	return map[string]any{
		"alert_id":           alert.ID,
		"patient_id":         alert.PatientID,
		"urgency_level":      alert.UrgencyLevel.String(),
		"classification":     string(alert.Classification),
		"severity_score":     alert.SeverityScore,
		"status":             string(alert.Status),
		"notifications_sent": delivered,
		"response_actions":   len(alert.ResponseActions),
	}
}

// cloneHealthData deep-copies nested maps and slices so the stored snapshot
// does not share state with the caller.
func cloneHealthData(raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneHealthData(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	}
	return v
}

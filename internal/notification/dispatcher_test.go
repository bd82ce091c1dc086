package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProvider records every message and fails for the configured recipients.
type fakeProvider struct {
	name    string
	failFor map[string]bool
	failAll bool
	block   bool

	mu   sync.Mutex
	sent []Message
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Send(ctx context.Context, msg Message) SendResult {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return SendResult{Error: ctx.Err().Error()}
	}
	if f.failAll || f.failFor[msg.Recipient] {
		return SendResult{Error: "gateway rejected message"}
	}
	return SendResult{Success: true, MessageID: fmt.Sprintf("%s-%d", f.name, time.Now().UnixNano())}
}

func (f *fakeProvider) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

func testAlert(urgency models.UrgencyLevel) *models.EmergencyAlert {
	return &models.EmergencyAlert{
		ID:             "alert-123",
		PatientID:      "patient-1",
		UrgencyLevel:   urgency,
		SeverityScore:  0.75,
		Classification: models.ClassificationCardiacArrest,
		CreatedAt:      time.Now(),
	}
}

func contacts(n int) []models.EmergencyContact {
	out := make([]models.EmergencyContact, n)
	for i := range out {
		out[i] = models.EmergencyContact{
			PatientID: "patient-1",
			ContactID: fmt.Sprintf("c%d", i),
			Name:      fmt.Sprintf("Contact %d", i),
			Phone:     fmt.Sprintf("+1555000%04d", i),
			Email:     fmt.Sprintf("contact%d@example.com", i),
		}
	}
	return out
}

func countAttempts(attempts []models.NotificationAttempt, ch models.Channel) int {
	n := 0
	for _, a := range attempts {
		if a.Channel == ch {
			n++
		}
	}
	return n
}

func TestDispatch_SMSFallbackToSecondary(t *testing.T) {
	cs := contacts(2)
	primary := &fakeProvider{name: "sms-primary", failFor: map[string]bool{cs[0].Phone: true}}
	secondary := &fakeProvider{name: "sms-secondary"}

	d := NewDispatcher(WithProviders(models.ChannelSMS, primary, secondary))
	p := models.ResponseProtocol{UrgencyLevel: models.UrgencyHigh, NotifyEmergencyContacts: true, SendSMS: true}

	res := d.Dispatch(context.Background(), testAlert(models.UrgencyHigh), p, cs)

	var forFirst []models.NotificationAttempt
	for _, a := range res.Attempts {
		if a.Recipient == cs[0].Phone {
			forFirst = append(forFirst, a)
		}
	}
	if len(forFirst) != 2 {
		t.Fatalf("expected 2 attempts for failing recipient, got %d", len(forFirst))
	}
	if forFirst[0].Provider != "sms-primary" || forFirst[0].Success {
		t.Errorf("expected failed primary attempt first, got %+v", forFirst[0])
	}
	if forFirst[1].Provider != "sms-secondary" || !forFirst[1].Success {
		t.Errorf("expected successful secondary attempt, got %+v", forFirst[1])
	}

	if got := len(secondary.messages()); got != 1 {
		t.Errorf("expected exactly 1 secondary call, got %d", got)
	}
	if res.ChannelsAttempted != 2 || res.ChannelsSuccessful != 2 {
		t.Errorf("expected 2/2 channels, got %d/%d", res.ChannelsSuccessful, res.ChannelsAttempted)
	}
}

func TestDispatch_SMSBothProvidersFail(t *testing.T) {
	cs := contacts(1)
	d := NewDispatcher(WithProviders(models.ChannelSMS,
		&fakeProvider{name: "sms-primary", failAll: true},
		&fakeProvider{name: "sms-secondary", failAll: true},
	))
	p := models.ResponseProtocol{UrgencyLevel: models.UrgencyMedium, NotifyEmergencyContacts: true, SendSMS: true}

	res := d.Dispatch(context.Background(), testAlert(models.UrgencyMedium), p, cs)
	if len(res.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(res.Attempts))
	}
	if res.ChannelsSuccessful != 0 || res.SuccessRate() != 0 {
		t.Errorf("expected no successful channels, got %d (rate %v)", res.ChannelsSuccessful, res.SuccessRate())
	}
	for _, a := range res.Attempts {
		if a.Error == "" {
			t.Errorf("expected error recorded on failed attempt: %+v", a)
		}
	}
}

func TestDispatch_CompletenessSMSAndEmail(t *testing.T) {
	const n = 5
	sms := &fakeProvider{name: "sms-primary"}
	email := &fakeProvider{name: "email"}
	voice := &fakeProvider{name: "voice"}
	push := &fakeProvider{name: "push"}

	d := NewDispatcher(
		WithProviders(models.ChannelSMS, sms),
		WithProviders(models.ChannelEmail, email),
		WithProviders(models.ChannelVoice, voice),
		WithProviders(models.ChannelPush, push),
	)
	p := models.ResponseProtocol{
		UrgencyLevel:            models.UrgencyHigh,
		NotifyEmergencyContacts: true,
		SendSMS:                 true,
		SendEmail:               true,
		SendVoice:               true, // ignored below CRITICAL
	}

	res := d.Dispatch(context.Background(), testAlert(models.UrgencyHigh), p, contacts(n))
	if res.ChannelsAttempted != 2*n {
		t.Errorf("expected %d channels attempted, got %d", 2*n, res.ChannelsAttempted)
	}
	if countAttempts(res.Attempts, models.ChannelVoice) != 0 || len(voice.messages()) != 0 {
		t.Error("voice must not be used below CRITICAL")
	}
	if countAttempts(res.Attempts, models.ChannelPush) != 0 {
		t.Error("push was not requested by the protocol")
	}
	if res.SuccessRate() != 1 {
		t.Errorf("expected success rate 1, got %v", res.SuccessRate())
	}
}

func TestDispatch_CriticalUsesVoiceForPhoneContactsOnly(t *testing.T) {
	cs := contacts(2)
	cs[1].Phone = ""
	voice := &fakeProvider{name: "voice"}

	d := NewDispatcher(
		WithProviders(models.ChannelSMS, &fakeProvider{name: "sms"}),
		WithProviders(models.ChannelVoice, voice),
		WithProviders(models.ChannelEmail, &fakeProvider{name: "email"}),
	)
	p := models.ResponseProtocol{
		UrgencyLevel: models.UrgencyCritical, NotifyEmergencyContacts: true,
		SendSMS: true, SendEmail: true, SendVoice: true,
	}

	res := d.Dispatch(context.Background(), testAlert(models.UrgencyCritical), p, cs)
	if got := countAttempts(res.Attempts, models.ChannelVoice); got != 1 {
		t.Errorf("expected 1 voice attempt, got %d", got)
	}
	if got := countAttempts(res.Attempts, models.ChannelSMS); got != 1 {
		t.Errorf("expected 1 sms attempt, got %d", got)
	}
	if got := countAttempts(res.Attempts, models.ChannelEmail); got != 2 {
		t.Errorf("expected 2 email attempts, got %d", got)
	}
}

func TestDispatch_LowUrgencyPushOnly(t *testing.T) {
	cs := contacts(2)
	cs[0].PushToken = "token-0"
	push := &fakeProvider{name: "push"}

	d := NewDispatcher(
		WithProviders(models.ChannelSMS, &fakeProvider{name: "sms"}),
		WithProviders(models.ChannelEmail, &fakeProvider{name: "email"}),
		WithProviders(models.ChannelPush, push),
	)
	p := models.ResponseProtocol{UrgencyLevel: models.UrgencyLow, NotifyEmergencyContacts: true, SendPush: true}

	res := d.Dispatch(context.Background(), testAlert(models.UrgencyLow), p, cs)
	if res.ChannelsAttempted != 1 {
		t.Errorf("expected a single push delivery, got %d", res.ChannelsAttempted)
	}
	if len(res.Attempts) != 1 || res.Attempts[0].Channel != models.ChannelPush {
		t.Errorf("expected only a push attempt, got %+v", res.Attempts)
	}
}

func TestDispatch_TimeoutFallsBack(t *testing.T) {
	cs := contacts(1)
	d := NewDispatcher(
		WithTimeout(20*time.Millisecond),
		WithProviders(models.ChannelSMS,
			&fakeProvider{name: "sms-primary", block: true},
			&fakeProvider{name: "sms-secondary"},
		),
	)
	p := models.ResponseProtocol{UrgencyLevel: models.UrgencyHigh, NotifyEmergencyContacts: true, SendSMS: true}

	start := time.Now()
	res := d.Dispatch(context.Background(), testAlert(models.UrgencyHigh), p, cs)
	if time.Since(start) > 2*time.Second {
		t.Fatal("dispatch was not bounded by the timeout")
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(res.Attempts))
	}
	if res.Attempts[0].Success || !strings.Contains(res.Attempts[0].Error, "timed out") {
		t.Errorf("expected timed-out primary attempt, got %+v", res.Attempts[0])
	}
	if !res.Attempts[1].Success {
		t.Errorf("expected secondary to succeed, got %+v", res.Attempts[1])
	}
}

func TestDispatch_MissingProviderRecorded(t *testing.T) {
	d := NewDispatcher(WithProviders(models.ChannelSMS, &fakeProvider{name: "sms"}))
	p := models.ResponseProtocol{UrgencyLevel: models.UrgencyHigh, NotifyEmergencyContacts: true, SendSMS: true, SendEmail: true}

	res := d.Dispatch(context.Background(), testAlert(models.UrgencyHigh), p, contacts(1))
	if res.ChannelsAttempted != 2 || res.ChannelsSuccessful != 1 {
		t.Errorf("expected 1 of 2 channels delivered, got %d/%d", res.ChannelsSuccessful, res.ChannelsAttempted)
	}
	if res.SuccessRate() != 0.5 {
		t.Errorf("expected success rate 0.5, got %v", res.SuccessRate())
	}
	for _, a := range res.Attempts {
		if a.Channel == models.ChannelEmail && a.Error != "no provider configured" {
			t.Errorf("expected missing provider error, got %+v", a)
		}
	}
}

func TestDispatch_MessagesCarryAlertID(t *testing.T) {
	sms := &fakeProvider{name: "sms"}
	email := &fakeProvider{name: "email"}
	voice := &fakeProvider{name: "voice"}
	d := NewDispatcher(
		WithProviders(models.ChannelSMS, sms),
		WithProviders(models.ChannelEmail, email),
		WithProviders(models.ChannelVoice, voice),
	)

	for _, u := range []models.UrgencyLevel{models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh, models.UrgencyCritical} {
		p := models.ResponseProtocol{UrgencyLevel: u, NotifyEmergencyContacts: true, SendSMS: true, SendEmail: true, SendVoice: true}
		d.Dispatch(context.Background(), testAlert(u), p, contacts(1))
	}

	for _, f := range []*fakeProvider{sms, email, voice} {
		for _, m := range f.messages() {
			if !strings.Contains(m.Body, "alert-123") {
				t.Errorf("%s message missing alert id: %q", f.name, m.Body)
			}
		}
	}
	if len(email.messages()) == 0 || email.messages()[0].Subject == "" {
		t.Error("expected email subject to be rendered")
	}
}

func TestDispatch_NoContacts(t *testing.T) {
	d := NewDispatcher()
	p := models.ResponseProtocol{UrgencyLevel: models.UrgencyCritical, NotifyEmergencyContacts: true, SendSMS: true}

	res := d.Dispatch(context.Background(), testAlert(models.UrgencyCritical), p, nil)
	if res.ChannelsAttempted != 0 || res.SuccessRate() != 0 || len(res.Attempts) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestDispatch_CancelledContextRecordsEveryDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(WithProviders(models.ChannelSMS, &fakeProvider{name: "sms"}))
	p := models.ResponseProtocol{UrgencyLevel: models.UrgencyHigh, NotifyEmergencyContacts: true, SendSMS: true}

	res := d.Dispatch(ctx, testAlert(models.UrgencyHigh), p, contacts(3))
	if res.ChannelsAttempted != 3 {
		t.Errorf("expected 3 deliveries, got %d", res.ChannelsAttempted)
	}
	if len(res.Attempts) < 3 {
		t.Errorf("expected every delivery recorded, got %d attempts", len(res.Attempts))
	}
}

func TestSend_CancellationIsNotReportedAsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDispatcher(WithTimeout(time.Minute))
	res := d.send(ctx, &fakeProvider{name: "sms", block: true}, Message{Recipient: "+15550001"})
	if res.Success {
		t.Fatal("expected failure on a cancelled context")
	}
	if !strings.HasPrefix(res.Error, "cancelled: ") || strings.Contains(res.Error, "timed out") {
		t.Errorf("expected cancellation error, got %q", res.Error)
	}
}

func TestSend_SuccessIsKept(t *testing.T) {
	d := NewDispatcher(WithTimeout(time.Minute))
	res := d.send(context.Background(), &fakeProvider{name: "sms"}, Message{Recipient: "+15550001"})
	if !res.Success || res.Error != "" {
		t.Errorf("expected clean success, got %+v", res)
	}
}

func TestTemplateEngine_CustomTemplateKeepsAlertID(t *testing.T) {
	e := NewTemplateEngine()
	e.RegisterTemplate(models.ChannelSMS, models.UrgencyHigh, Template{Body: "Check on {{patient_id}}"})

	_, body, err := e.Render(models.ChannelSMS, models.UrgencyHigh, map[string]string{"alert_id": "a-1", "patient_id": "p-1"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(body, "p-1") || !strings.Contains(body, "a-1") {
		t.Errorf("unexpected body %q", body)
	}

	if _, _, err := e.Render(models.ChannelSMS, models.UrgencyUnknown, nil); err == nil {
		t.Error("expected error for unknown urgency")
	}
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/notification"
)

func testAlert() *models.EmergencyAlert {
	return &models.EmergencyAlert{
		ID:              "alert-1",
		PatientID:       "patient-1",
		DeviceID:        "device-9",
		UrgencyLevel:    models.UrgencyCritical,
		Classification:  models.ClassificationCardiacArrest,
		SeverityScore:   0.82,
		EscalationLevel: 1,
		Protocol:        models.ResponseProtocol{MedicalCode: "I46.9"},
	}
}

func TestHTTPProvider_Send(t *testing.T) {
	type captured struct {
		req  sendRequest
		auth string
	}
	calls := make(chan captured, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c captured
		c.auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&c.req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		calls <- c
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message_id":"msg-42","status":"queued"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("sms-primary", models.ChannelSMS, srv.URL, ClientConfig{APIKey: "secret"})
	res := p.Send(context.Background(), notification.Message{Recipient: "+15550001", Body: "alert-1 needs attention"})

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.MessageID != "msg-42" {
		t.Errorf("expected message id msg-42, got %q", res.MessageID)
	}
	c := <-calls
	if c.req.Recipient != "+15550001" || c.req.Channel != models.ChannelSMS {
		t.Errorf("unexpected request %+v", c.req)
	}
	if c.auth != "Bearer secret" {
		t.Errorf("expected bearer auth header, got %q", c.auth)
	}
	if p.Name() != "sms-primary" {
		t.Errorf("unexpected name %q", p.Name())
	}
}

func TestHTTPProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"carrier unavailable"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("sms-primary", models.ChannelSMS, srv.URL, ClientConfig{})
	res := p.Send(context.Background(), notification.Message{Recipient: "+15550001", Body: "x"})

	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Error != "carrier unavailable" {
		t.Errorf("expected vendor error, got %q", res.Error)
	}
}

func TestHTTPProvider_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message_id":"m-1","status":"rejected","error":"invalid number"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider("sms-secondary", models.ChannelSMS, srv.URL, ClientConfig{})
	res := p.Send(context.Background(), notification.Message{Recipient: "bad", Body: "x"})

	if res.Success {
		t.Fatal("expected rejected send to fail")
	}
	if !strings.Contains(res.Error, "invalid number") {
		t.Errorf("unexpected error %q", res.Error)
	}
}

func TestHTTPProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewHTTPProvider("email", models.ChannelEmail, srv.URL, ClientConfig{Timeout: 50 * time.Millisecond})
	res := p.Send(context.Background(), notification.Message{Recipient: "a@b.c", Body: "x"})

	if res.Success || res.Error == "" {
		t.Errorf("expected timeout failure, got %+v", res)
	}
}

func TestActionWebhook(t *testing.T) {
	paths := make(chan string, 3)
	reqs := make(chan actionRequest, 3)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		var req actionRequest
		json.NewDecoder(r.Body).Decode(&req)
		reqs <- req
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"reference":"ref-` + strings.TrimPrefix(r.URL.Path, "/") + `"}`))
	}))
	defer srv.Close()

	w := NewActionWebhook(ActionEndpoints{
		EMS:        srv.URL + "/ems",
		Providers:  srv.URL + "/providers",
		Monitoring: srv.URL + "/monitoring",
	}, ClientConfig{})

	ctx := context.Background()
	alert := testAlert()

	ref, err := w.CallEMS(ctx, alert)
	if err != nil || ref != "ref-ems" {
		t.Errorf("CallEMS = %q, %v", ref, err)
	}
	req := <-reqs
	if req.AlertID != "alert-1" || req.MedicalCode != "I46.9" || req.UrgencyLevel != models.UrgencyCritical {
		t.Errorf("unexpected EMS payload %+v", req)
	}

	if ref, err := w.AlertProviders(ctx, alert); err != nil || ref != "ref-providers" {
		t.Errorf("AlertProviders = %q, %v", ref, err)
	}
	if ref, err := w.IncreaseMonitoring(ctx, alert); err != nil || ref != "ref-monitoring" {
		t.Errorf("IncreaseMonitoring = %q, %v", ref, err)
	}
	if len(paths) != 3 {
		t.Errorf("expected 3 calls, got %d", len(paths))
	}
}

func TestActionWebhook_NotConfigured(t *testing.T) {
	w := NewActionWebhook(ActionEndpoints{}, ClientConfig{})
	_, err := w.CallEMS(context.Background(), testAlert())
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestActionWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewActionWebhook(ActionEndpoints{EMS: srv.URL}, ClientConfig{})
	_, err := w.CallEMS(context.Background(), testAlert())
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("expected status error, got %v", err)
	}
}

func TestHTTPConsultationRequester(t *testing.T) {
	reqs := make(chan consultationRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got consultationRequest
		json.NewDecoder(r.Body).Decode(&got)
		reqs <- got
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"session_id":"sess-7","status":"requested"}`))
	}))
	defer srv.Close()

	c := NewHTTPConsultationRequester(srv.URL, ClientConfig{})
	ref, err := c.RequestConsultation(context.Background(), "patient-1", "alert-1", map[string]any{"heart_rate": 35.0})
	if err != nil {
		t.Fatalf("RequestConsultation failed: %v", err)
	}
	if ref != "sess-7" {
		t.Errorf("expected session id sess-7, got %q", ref)
	}
	got := <-reqs
	if got.PatientID != "patient-1" || got.AlertID != "alert-1" || got.HealthData["heart_rate"] != 35.0 {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestHTTPConsultationRequester_NotConfigured(t *testing.T) {
	c := NewHTTPConsultationRequester("", ClientConfig{})
	if _, err := c.RequestConsultation(context.Background(), "p", "a", nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestLogStubs(t *testing.T) {
	p := NewLogProvider("push-log")
	res := p.Send(context.Background(), notification.Message{Recipient: "token", Body: "x"})
	if !res.Success || !strings.HasPrefix(res.MessageID, "log-") {
		t.Errorf("unexpected log provider result %+v", res)
	}

	var r LogResponder
	if ref, err := r.CallEMS(context.Background(), testAlert()); err != nil || ref == "" {
		t.Errorf("CallEMS = %q, %v", ref, err)
	}
	if ref, err := r.RequestConsultation(context.Background(), "p", "a", nil); err != nil || ref == "" {
		t.Errorf("RequestConsultation = %q, %v", ref, err)
	}
}

package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/mr1hm/go-emergency-alerts/internal/config"
	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/worker"
)

const connectTimeout = 10 * time.Second

type AlertCreator interface {
	CreateAndProcessAlert(ctx context.Context, payload models.TriggerPayload) (*models.EmergencyAlert, error)
}

// Manager feeds triggers from device and analysis publishers into the
// engine through a bounded worker pool.
type Manager struct {
	cfg     *config.Config
	creator AlertCreator
	pool    *worker.WorkerPool
	client  mqtt.Client

	// mu guards stopped; Submit holds the read side while it queues so
	// Stop never closes the pool under a sender.
	mu       sync.RWMutex
	stopped  bool
	quit     chan struct{}
	stopOnce sync.Once

	processed atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewManager(cfg *config.Config, creator AlertCreator) *Manager {
	return &Manager{
		cfg:     cfg,
		creator: creator,
		quit:    make(chan struct{}),
	}
}

func (m *Manager) Start(ctx context.Context) error {
	processor := func(ctx context.Context, job worker.Job) error {
		payload := job.(models.TriggerPayload)

		alert, err := m.creator.CreateAndProcessAlert(ctx, payload)
		if err != nil {
			var verr *models.ValidationError
			if errors.As(err, &verr) {
				m.rejected.Add(1)
				slog.Warn("trigger rejected", "patient_id", payload.PatientID, "device_id", payload.DeviceID, "error", err)
				return err
			}
			m.failed.Add(1)
			slog.Error("trigger processing failed", "patient_id", payload.PatientID, "device_id", payload.DeviceID, "error", err)
			return err
		}

		m.processed.Add(1)
		slog.Info("trigger processed", "alert_id", alert.ID, "urgency", alert.UrgencyLevel, "device_id", payload.DeviceID)
		return nil
	}

	m.pool = worker.NewWorkerPool("intake", m.cfg.Worker.Count, m.cfg.Worker.BufferSize, processor)
	m.pool.Start(ctx)

	if !m.cfg.MQTT.Enabled {
		return nil
	}
	client, err := m.connect()
	if err != nil {
		return err
	}
	m.client = client
	return nil
}

func (m *Manager) connect() (mqtt.Client, error) {
	cfg := m.cfg.MQTT

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.OnConnect = func(client mqtt.Client) {
		slog.Info("connected to MQTT broker", "broker", cfg.Broker)
		m.subscribe(client)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		slog.Warn("MQTT connection lost", "error", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("error connecting to MQTT broker %s: %w", cfg.Broker, err)
	}
	return client, nil
}

// subscribe runs on every (re)connect since the broker may drop
// subscriptions with the session.
func (m *Manager) subscribe(client mqtt.Client) {
	for _, topic := range m.cfg.MQTT.Topics {
		token := client.Subscribe(topic, byte(m.cfg.MQTT.QoS), m.handleMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			slog.Error("MQTT subscribe failed", "topic", topic, "error", err)
			continue
		}
		slog.Info("subscribed to topic", "topic", topic)
	}
}

func (m *Manager) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	payload, err := decodeTrigger(msg.Topic(), msg.Payload())
	if err != nil {
		m.rejected.Add(1)
		slog.Warn("dropping malformed trigger", "topic", msg.Topic(), "error", err)
		return
	}
	m.Submit(payload)
}

// Submit queues a trigger, blocking while the queue is full. Triggers that
// arrive once Stop has begun are dropped and counted; the result reports
// whether the trigger was queued.
func (m *Manager) Submit(payload models.TriggerPayload) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.stopped || m.pool == nil || !m.pool.SubmitUntil(m.quit, payload) {
		m.dropped.Add(1)
		slog.Warn("dropping trigger, intake stopped", "patient_id", payload.PatientID, "device_id", payload.DeviceID)
		return false
	}
	return true
}

func decodeTrigger(topic string, body []byte) (models.TriggerPayload, error) {
	var payload models.TriggerPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return payload, fmt.Errorf("invalid trigger JSON: %w", err)
	}
	if payload.DeviceID == "" {
		payload.DeviceID = deviceFromTopic(topic)
	}
	if payload.AlertType == "" && payload.DeviceID != "" {
		payload.AlertType = models.AlertTypeDeviceReading
	}
	return payload, nil
}

// deviceFromTopic extracts the id from topics shaped devices/{id}/...
func deviceFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 3 && parts[0] == "devices" {
		return parts[1]
	}
	return ""
}

type Stats struct {
	Processed int64 `json:"processed"`
	Rejected  int64 `json:"rejected"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

func (m *Manager) Stats() Stats {
	return Stats{
		Processed: m.processed.Load(),
		Rejected:  m.rejected.Load(),
		Failed:    m.failed.Load(),
		Dropped:   m.dropped.Load(),
	}
}

// Stop unsubscribes from the broker, turns away new triggers and waits for
// queued ones to finish. It is safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.client != nil {
			if topics := m.cfg.MQTT.Topics; len(topics) > 0 {
				if token := m.client.Unsubscribe(topics...); !token.WaitTimeout(connectTimeout) {
					slog.Warn("timed out unsubscribing from MQTT topics")
				}
			}
			m.client.Disconnect(250)
		}

		// release senders blocked on a full queue, then wait for the rest
		close(m.quit)
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()

		if m.pool != nil {
			m.pool.Stop()
		}
		slog.Info("intake manager stopped",
			"processed", m.processed.Load(),
			"rejected", m.rejected.Load(),
			"failed", m.failed.Load(),
			"dropped", m.dropped.Load(),
		)
	})
}

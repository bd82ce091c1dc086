package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/protocol"
	"github.com/mr1hm/go-emergency-alerts/internal/worker"
)

const defaultSendTimeout = 10 * time.Second

// channelOrder fixes the order deliveries are queued and attempts reported.
var channelOrder = []models.Channel{
	models.ChannelSMS,
	models.ChannelVoice,
	models.ChannelEmail,
	models.ChannelPush,
}

type DispatchResult struct {
	Attempts           []models.NotificationAttempt
	ChannelsAttempted  int
	ChannelsSuccessful int
}

func (r DispatchResult) SuccessRate() float64 {
	if r.ChannelsAttempted == 0 {
		return 0
	}
	return float64(r.ChannelsSuccessful) / float64(r.ChannelsAttempted)
}

type Dispatcher struct {
	providers map[models.Channel][]Provider
	templates *TemplateEngine
	timeout   time.Duration
	now       func() time.Time
}

type Option func(*Dispatcher)

// WithProviders sets the providers for a channel in fallback order.
func WithProviders(channel models.Channel, providers ...Provider) Option {
	return func(d *Dispatcher) {
		d.providers[channel] = providers
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithTemplates(t *TemplateEngine) Option {
	return func(d *Dispatcher) { d.templates = t }
}

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		providers: make(map[models.Channel][]Provider),
		templates: NewTemplateEngine(),
		timeout:   defaultSendTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type delivery struct {
	index     int
	channel   models.Channel
	contact   models.EmergencyContact
	recipient string
}

type deliveryOutcome struct {
	attempts  []models.NotificationAttempt
	delivered bool
	done      bool
}

// Dispatch sends the alert to every contact over every channel the protocol
// enables. Deliveries run concurrently; a channel's providers are tried in
// order until one succeeds. Every attempt is recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.EmergencyAlert, p models.ResponseProtocol, contacts []models.EmergencyContact) DispatchResult {
	if !p.NotifyEmergencyContacts {
		return DispatchResult{}
	}

	channels := d.enabledChannels(alert, p)
	var deliveries []delivery
	for _, contact := range contacts {
		for _, ch := range channels {
			recipient := recipientFor(ch, contact)
			if recipient == "" {
				continue
			}
			deliveries = append(deliveries, delivery{
				index:     len(deliveries),
				channel:   ch,
				contact:   contact,
				recipient: recipient,
			})
		}
	}
	if len(deliveries) == 0 {
		return DispatchResult{}
	}

	outcomes := make([]deliveryOutcome, len(deliveries))
	pool := worker.NewWorkerPool("dispatch", len(channels), len(deliveries), func(ctx context.Context, job worker.Job) error {
		dl := job.(delivery)
		outcomes[dl.index] = d.deliver(ctx, alert, dl)
		if !outcomes[dl.index].delivered {
			return fmt.Errorf("%s delivery to contact %s failed", dl.channel, dl.contact.ContactID)
		}
		return nil
	})
	for _, dl := range deliveries {
		pool.Submit(dl)
	}
	pool.Start(ctx)
	pool.Stop()

	result := DispatchResult{ChannelsAttempted: len(deliveries)}
	for i, out := range outcomes {
		if !out.done {
			// the context ended before a worker picked this delivery up
			dl := deliveries[i]
			out.attempts = []models.NotificationAttempt{{
				Channel:   dl.channel,
				Provider:  "none",
				Recipient: dl.recipient,
				ContactID: dl.contact.ContactID,
				Timestamp: d.now(),
				Error:     fmt.Sprintf("not attempted: %v", ctx.Err()),
			}}
		}
		result.Attempts = append(result.Attempts, out.attempts...)
		if out.delivered {
			result.ChannelsSuccessful++
		}
	}

	slog.Info("alert dispatched",
		"alert_id", alert.ID,
		"channels_attempted", result.ChannelsAttempted,
		"channels_successful", result.ChannelsSuccessful,
	)
	return result
}

func (d *Dispatcher) enabledChannels(alert *models.EmergencyAlert, p models.ResponseProtocol) []models.Channel {
	var out []models.Channel
	for _, ch := range channelOrder {
		switch ch {
		case models.ChannelSMS:
			if p.SendSMS {
				out = append(out, ch)
			}
		case models.ChannelVoice:
			if protocol.VoiceAllowed(p) && alert.UrgencyLevel == models.UrgencyCritical {
				out = append(out, ch)
			}
		case models.ChannelEmail:
			if p.SendEmail {
				out = append(out, ch)
			}
		case models.ChannelPush:
			if p.SendPush {
				out = append(out, ch)
			}
		}
	}
	return out
}

func recipientFor(ch models.Channel, c models.EmergencyContact) string {
	switch ch {
	case models.ChannelSMS, models.ChannelVoice:
		return c.Phone
	case models.ChannelEmail:
		return c.Email
	case models.ChannelPush:
		return c.PushToken
	}
	return ""
}

func (d *Dispatcher) deliver(ctx context.Context, alert *models.EmergencyAlert, dl delivery) deliveryOutcome {
	out := deliveryOutcome{done: true}
	attempt := func(provider string, res SendResult) {
		out.attempts = append(out.attempts, models.NotificationAttempt{
			Channel:   dl.channel,
			Provider:  provider,
			Recipient: dl.recipient,
			ContactID: dl.contact.ContactID,
			Success:   res.Success,
			MessageID: res.MessageID,
			Timestamp: d.now(),
			Error:     res.Error,
		})
	}

	subject, body, err := d.templates.Render(dl.channel, alert.UrgencyLevel, templateData(alert, dl.contact))
	if err != nil {
		attempt("none", SendResult{Error: err.Error()})
		return out
	}

	providers := d.providers[dl.channel]
	if len(providers) == 0 {
		attempt("none", SendResult{Error: "no provider configured"})
		return out
	}

	msg := Message{Recipient: dl.recipient, Subject: subject, Body: body}
	for _, p := range providers {
		res := d.send(ctx, p, msg)
		attempt(p.Name(), res)
		if res.Success {
			out.delivered = true
			return out
		}
		slog.Warn("provider send failed",
			"alert_id", alert.ID,
			"channel", dl.channel,
			"provider", p.Name(),
			"error", res.Error,
		)
	}
	return out
}

// send bounds a provider call by the dispatcher timeout. A call that does
// not return in time is reported as a failure.
func (d *Dispatcher) send(ctx context.Context, p Provider, msg Message) SendResult {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan SendResult, 1)
	go func() {
		done <- p.Send(ctx, msg)
	}()

	var res SendResult
	select {
	case res = <-done:
	case <-ctx.Done():
		// a result that raced the deadline still counts
		select {
		case res = <-done:
		default:
			res = SendResult{Error: ctx.Err().Error()}
		}
	}
	if res.Success {
		return res
	}
	if res.Error == "" {
		res.Error = "provider reported failure"
	}
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		res.Error = "cancelled: " + res.Error
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Error = fmt.Sprintf("timed out after %s: %s", d.timeout, res.Error)
	}
	return res
}

package gateway

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/mr1hm/go-emergency-alerts/internal/models"
	"github.com/mr1hm/go-emergency-alerts/internal/notification"
)

type sendRequest struct {
	Channel   models.Channel `json:"channel"`
	Recipient string         `json:"to"`
	Subject   string         `json:"subject,omitempty"`
	Body      string         `json:"body"`
}

type sendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error"`
}

// HTTPProvider delivers one channel through a vendor's JSON API.
type HTTPProvider struct {
	name     string
	channel  models.Channel
	endpoint string
	client   *resty.Client
}

func NewHTTPProvider(name string, channel models.Channel, endpoint string, cfg ClientConfig) *HTTPProvider {
	return &HTTPProvider{
		name:     name,
		channel:  channel,
		endpoint: endpoint,
		client:   newClient(cfg),
	}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Send(ctx context.Context, msg notification.Message) notification.SendResult {
	var out sendResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(sendRequest{
			Channel:   p.channel,
			Recipient: msg.Recipient,
			Subject:   msg.Subject,
			Body:      msg.Body,
		}).
		SetResult(&out).
		SetError(&out).
		Post(p.endpoint)
	if err != nil {
		return notification.SendResult{Error: fmt.Sprintf("%s request failed: %v", p.name, err)}
	}
	if resp.IsError() {
		msg := out.Error
		if msg == "" {
			msg = statusError(resp).Error()
		}
		return notification.SendResult{Error: msg}
	}
	if out.Status == "failed" || out.Status == "rejected" {
		return notification.SendResult{MessageID: out.MessageID, Error: fmt.Sprintf("%s reported %s: %s", p.name, out.Status, out.Error)}
	}
	return notification.SendResult{Success: true, MessageID: out.MessageID}
}

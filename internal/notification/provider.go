package notification

import "context"

type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// SendResult is the outcome of one provider call. Providers report failure
// through Success/Error rather than by returning an error.
type SendResult struct {
	Success   bool
	MessageID string
	Error     string
}

// Provider is one vendor implementation of a channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) SendResult
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	ProviderName string
	SendFunc     func(ctx context.Context, msg Message) SendResult
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Send(ctx context.Context, msg Message) SendResult {
	return p.SendFunc(ctx, msg)
}

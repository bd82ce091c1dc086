package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultStream = "emergency:events"

// RedisStreamBus appends events to a Redis stream with XADD. The detail is
// stored as a JSON string so consumers in other services can decode it.
type RedisStreamBus struct {
	client *redis.Client
	stream string
	maxLen int64
	now    func() time.Time
}

func NewRedisStreamBus(client *redis.Client, stream string, maxLen int64) *RedisStreamBus {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStreamBus{
		client: client,
		stream: stream,
		maxLen: maxLen,
		now:    time.Now,
	}
}

func (r *RedisStreamBus) Publish(ctx context.Context, source, eventType string, detail map[string]any) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal %s detail: %w", eventType, err)
	}

	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"source":     source,
			"event_type": eventType,
			"detail":     string(payload),
			"timestamp":  r.now().UTC().Format(time.RFC3339Nano),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}

	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}

// Read returns up to count events from the start of the stream.
func (r *RedisStreamBus) Read(ctx context.Context, count int64) ([]Event, error) {
	msgs, err := r.client.XRangeN(ctx, r.stream, "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("xrange %s: %w", r.stream, err)
	}

	events := make([]Event, 0, len(msgs))
	for _, msg := range msgs {
		e := Event{
			Source: fmt.Sprint(msg.Values["source"]),
			Type:   fmt.Sprint(msg.Values["event_type"]),
		}
		if raw, ok := msg.Values["detail"].(string); ok {
			if err := json.Unmarshal([]byte(raw), &e.Detail); err != nil {
				return nil, fmt.Errorf("decode event %s: %w", msg.ID, err)
			}
		}
		if ts, ok := msg.Values["timestamp"].(string); ok {
			e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		}
		events = append(events, e)
	}
	return events, nil
}

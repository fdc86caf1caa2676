package notifier

import (
	"context"
	"encoding/json"

	"sjsage522/flightdealworker/pkg/errors"
	"sjsage522/flightdealworker/services/publisher"
)

// Stream field keys
const (
	StreamKeyNewFlight = "new_flight"
	StreamKeyPriceDrop = "price_drop"
)

// StreamChannel publishes each new offer and price drop as JSON for downstream consumers
type StreamChannel struct {
	publisher publisher.Publisher
}

// NewStreamChannel creates a channel over pub
func NewStreamChannel(pub publisher.Publisher) *StreamChannel {
	return &StreamChannel{publisher: pub}
}

// Name implements Channel
func (c *StreamChannel) Name() string {
	return "stream"
}

// Deliver publishes the records in n. The rendered message is not used.
func (c *StreamChannel) Deliver(ctx context.Context, _ *RenderedMessage, n Notification) error {
	for _, o := range n.New {
		if err := c.publish(ctx, StreamKeyNewFlight, o); err != nil {
			return err
		}
	}
	for _, change := range n.Changed {
		if err := c.publish(ctx, StreamKeyPriceDrop, change); err != nil {
			return err
		}
	}
	return c.publisher.TrimStreams(ctx)
}

func (c *StreamChannel) publish(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewNotification(c.Name(), "encode "+key, err)
	}
	return c.publisher.Publish(ctx, key, data)
}

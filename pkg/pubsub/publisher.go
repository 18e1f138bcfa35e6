package pubsub

import (
	"context"
	"errors"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
)

const defaultPublishTimeout = 5 * time.Second

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) publishResult
}

// MessagePublisher publishes raw payloads and waits for the server ack.
type MessagePublisher struct {
	pub     publisher
	timeout time.Duration
}

func NewMessagePublisher(p *pubsub.Publisher) *MessagePublisher {
	if p == nil {
		return nil
	}
	return &MessagePublisher{pub: &gcpPublisher{Publisher: p}, timeout: defaultPublishTimeout}
}

// Publish sends data with attributes and returns the server-assigned message id.
func (m *MessagePublisher) Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error) {
	if m == nil || m.pub == nil {
		return "", errors.New("publisher not configured")
	}
	publishCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result := m.pub.Publish(publishCtx, &pubsub.Message{Data: data, Attributes: attributes})
	if result == nil {
		return "", errors.New("publish result is nil")
	}
	return result.Get(publishCtx)
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}

package natsstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/nats-io/nuid"

	"github.com/kmntree/onos/types"
)

// Common errors for topic operations.
var (
	ErrUnknownRegistration = errors.New("unknown subscription registration")
)

// topic is a globally ordered broadcast topic on a JetStream stream.
//
// Every subscription is an ordered consumer starting at new messages, so all
// subscribers observe the stream's single total order. Publishers receive
// their own messages like any other subscriber.
type topic struct {
	js      jetstream.JetStream
	stream  jetstream.Stream
	subject string
	logger  types.Logger

	mu   sync.Mutex
	subs map[string]jetstream.ConsumeContext
}

// Compile-time assertion that topic implements OrderedTopic.
var _ types.OrderedTopic = (*topic)(nil)

// Publish broadcasts data to all subscribers cluster-wide.
func (t *topic) Publish(ctx context.Context, data []byte) error {
	if _, err := t.js.Publish(ctx, t.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", t.subject, err)
	}

	return nil
}

// Subscribe registers a handler backed by a fresh ordered consumer and
// returns its registration ID.
func (t *topic) Subscribe(ctx context.Context, handler types.MessageHandler) (string, error) {
	consumer, err := t.stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		DeliverPolicy: jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create ordered consumer on %s: %w", t.subject, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		handler(msg.Data())
	})
	if err != nil {
		return "", fmt.Errorf("failed to consume from %s: %w", t.subject, err)
	}

	id := nuid.Next()

	t.mu.Lock()
	t.subs[id] = cc
	t.mu.Unlock()

	return id, nil
}

// Unsubscribe stops the registration's consumer.
func (t *topic) Unsubscribe(id string) error {
	t.mu.Lock()
	cc, ok := t.subs[id]
	delete(t.subs, id)
	t.mu.Unlock()

	if !ok {
		return ErrUnknownRegistration
	}
	cc.Stop()

	return nil
}

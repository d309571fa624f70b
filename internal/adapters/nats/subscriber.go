package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/geowhisper/towers/internal/core/ports"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := EnsureStreams(js); err != nil {
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribePrefetchRequests consumes prefetch requests. Malformed messages are
// terminated; handler errors are redelivered up to three times.
func (s *Subscriber) SubscribePrefetchRequests(ctx context.Context, handler func(ctx context.Context, req ports.PrefetchRequest) error) error {
	sub, err := s.js.Subscribe(SubjectPrefetchRequest, func(msg *nats.Msg) {
		var req ports.PrefetchRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Warn("dropping malformed prefetch request", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, req); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("label-prefetcher"),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}

package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/geowhisper/towers/internal/core/ports"
)

// Subjects.
const (
	SubjectLabelResolved   = "zones.label.resolved"
	SubjectPrefetchRequest = "zones.prefetch.request"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
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

	return &Publisher{conn: conn, js: js}, nil
}

// EnsureStreams creates or updates the zone streams.
func EnsureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      "ZONE_LABELS",
			Subjects:  []string{SubjectLabelResolved + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "ZONE_PREFETCH",
			Subjects:  []string{"zones.prefetch.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    15 * time.Minute,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishLabelResolved publishes on zones.label.resolved.{session}.{zone}.
func (p *Publisher) PublishLabelResolved(ctx context.Context, ev ports.LabelResolved) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(LabelSubject(ev.SessionID, ev.ZoneID), data, nats.Context(ctx))
	return err
}

// PublishPrefetchRequest queues a label prefetch.
func (p *Publisher) PublishPrefetchRequest(ctx context.Context, req ports.PrefetchRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectPrefetchRequest, data, nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// LabelSubject returns the subject a resolved label is published on.
func LabelSubject(sessionID, zoneID string) string {
	return SubjectLabelResolved + "." + subjectToken(sessionID) + "." + subjectToken(zoneID)
}

// SessionLabelSubjects returns the wildcard matching every label event of a session.
func SessionLabelSubjects(sessionID string) string {
	return SubjectLabelResolved + "." + subjectToken(sessionID) + ".>"
}

// subjectToken makes s usable as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '.', r == '*', r == '>', r <= ' ', r == 0x7f:
			return '_'
		}
		return r
	}, s)
}

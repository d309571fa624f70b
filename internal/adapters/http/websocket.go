package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/geowhisper/towers/internal/adapters/nats"
	"github.com/geowhisper/towers/internal/core/domain"
	"github.com/geowhisper/towers/internal/core/ports"
	"github.com/geowhisper/towers/internal/pkg/metrics"
)

// wsMessage is sent from client to narrow the relay or queue label lookups.
type wsMessage struct {
	Action string        `json:"action"`  // "subscribe" | "unsubscribe" | "prefetch"
	ZoneID string        `json:"zone_id"` // subscribe/unsubscribe: one zone, "" = all zones of the session
	Zones  []domain.Zone `json:"zones"`   // prefetch
}

// WebSocketHandler returns a handler that relays label-resolved events of
// the caller's session. Every connection starts subscribed to all of its
// session's zones.
// Clients send JSON: {"action":"subscribe","zone_id":"z1"} or
// {"action":"prefetch","zones":[{"id":"z1","location":{"lat":1,"lon":2}}]}.
func WebSocketHandler(nc *nats.Conn, publisher ports.EventPublisher) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		sid, _ := c.Locals(sessionLocal).(string)
		log := slog.Default().With("session_id", sid, "remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}

		subscribe := func(subject string) error {
			if _, exists := subs[subject]; exists {
				return nil
			}
			s, err := nc.Subscribe(subject, relay)
			if err != nil {
				return err
			}
			subs[subject] = s
			return nil
		}

		if err := subscribe(natsadapter.SessionLabelSubjects(sid)); err != nil {
			log.Error("ws default subscribe failed", "error", err)
			return
		}

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject := natsadapter.SessionLabelSubjects(sid)
			if m.ZoneID != "" {
				subject = natsadapter.LabelSubject(sid, m.ZoneID)
			}

			switch m.Action {
			case "subscribe":
				if err := subscribe(subject); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			case "prefetch":
				if publisher == nil {
					_ = writeJSON(map[string]string{"error": "prefetch unavailable"})
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := publisher.PublishPrefetchRequest(ctx, ports.PrefetchRequest{SessionID: sid, Zones: m.Zones})
				cancel()
				if err != nil {
					_ = writeJSON(map[string]string{"error": "prefetch failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]any{"status": "queued", "zones": len(m.Zones)})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}

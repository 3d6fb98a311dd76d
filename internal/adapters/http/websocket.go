package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/jmaguas/azenha/internal/pkg/metrics"
)

// wsMessage is a client subscription command.
type wsMessage struct {
	Action string `json:"action"` // subscribe | unsubscribe
	Feed   string `json:"feed"`   // structures | channels | snaps | updates
	Event  string `json:"event"`  // created | updated | deleted, "" for all
}

// feedSubject maps a client feed request onto a NATS subject. The snap
// and updates feeds each have a single subject; the write feeds can
// narrow to one action.
func feedSubject(feed, event string) (string, bool) {
	switch feed {
	case "", "structures":
		if event != "" {
			return "catalog.structure." + event, true
		}
		return "catalog.structure.>", true
	case "channels":
		if event != "" {
			return "catalog.channel." + event, true
		}
		return "catalog.channel.>", true
	case "snaps":
		return "catalog.snap.resolved", true
	case "updates":
		return "catalog.updates.broadcast", true
	}
	return "", false
}

// WebSocketHandler relays catalog events from NATS to the client.
// Clients steer with {"action":"subscribe","feed":"channels","event":"created"};
// every connection starts on the structure feed.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		// The API runs without NATS; tell the client instead of panicking.
		if nc == nil {
			_ = c.WriteMessage(websocket.TextMessage, []byte(`{"error":"live updates unavailable"}`))
			return
		}

		remote := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remote)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription)

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		subject, _ := feedSubject("structures", "")
		sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		})
		if err != nil {
			slog.Warn("ws default subscribe failed", "error", err)
			return
		}
		subs[subject] = sub

		// Keep-alive ping
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

			subject, ok := feedSubject(m.Feed, m.Event)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown feed: " + m.Feed})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
					_ = writeJSON(json.RawMessage(msg.Data))
				})
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				s, exists := subs[subject]
				if !exists {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
					continue
				}
				_ = s.Unsubscribe()
				delete(subs, subject)
				_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remote)
	}
}

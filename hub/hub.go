// Package hub broadcasts published snapshots to all authenticated
// WebSocket subscribers, replaying the current cached snapshot to each new
// subscriber so late joiners catch up immediately.
package hub

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hazyhaar/appmirror/auth"
	"github.com/hazyhaar/appmirror/mirror"
	"github.com/hazyhaar/appmirror/observability"
)

// Frame is the distribution wire format.
type Frame struct {
	Type      string           `json:"type"`
	Data      *mirror.Snapshot `json:"data"`
	Timestamp string           `json:"timestamp"`
}

// Config configures the hub.
type Config struct {
	// Token gates subscription. Checked before the upgrade; a bad token
	// gets an explicit 401 and zero snapshot bytes.
	Token string

	// Cache supplies the snapshot replayed on subscribe.
	Cache *mirror.Cache

	Logger *slog.Logger
	Events *observability.Log
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type subscriber struct {
	id   string
	ws   *websocket.Conn
	send chan Frame
}

// Hub is the distribution channel. Subscribers form a set with no ordering
// guarantee; disconnects are detected passively and simply remove the
// subscriber, with no backlog kept.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// New creates a Hub.
func New(cfg Config) *Hub {
	cfg.defaults()
	return &Hub{
		cfg: cfg,
		// The shared token is the gate; subscribers are local clients
		// behind it, so origin checking stays open.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		subs:     make(map[*subscriber]struct{}),
	}
}

// ServeHTTP handles a subscription request: token check, upgrade, replay,
// then pump frames until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.cfg.Logger

	if !auth.Equal(h.cfg.Token, auth.FromRequest(r)) {
		auth.Unauthorized(w)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("hub: upgrade failed", "error", err)
		return
	}

	sub := &subscriber{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan Frame, 8),
	}

	// Queue the replay before the subscriber becomes visible to
	// Broadcast, so a late joiner always sees cached state first.
	if h.cfg.Cache != nil {
		if snap, ok := h.cfg.Cache.Current(); ok {
			sub.send <- frameFor(snap)
		}
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	count := len(h.subs)
	h.mu.Unlock()

	log.Info("hub: subscriber joined", "id", sub.id, "subscribers", count)
	h.cfg.Events.Event(observability.EventSubscriberJoin, true,
		map[string]any{"subscriber_id": sub.id})

	go h.writePump(sub)
	h.readPump(sub)
}

// Broadcast queues snap for every open subscriber. Subscribers whose send
// buffer is full are silently skipped, not treated as errors.
func (h *Hub) Broadcast(snap *mirror.Snapshot) {
	frame := frameFor(snap)

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.send <- frame:
		default:
			h.cfg.Logger.Debug("hub: slow subscriber skipped", "id", sub.id)
		}
	}
}

// Count returns the number of open subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		h.remove(sub)
	}
}

func frameFor(snap *mirror.Snapshot) Frame {
	return Frame{
		Type:      "snapshot",
		Data:      snap,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (h *Hub) writePump(sub *subscriber) {
	for frame := range sub.send {
		if err := sub.ws.WriteJSON(frame); err != nil {
			h.cfg.Logger.Debug("hub: write failed", "id", sub.id, "error", err)
			h.remove(sub)
			return
		}
	}
}

// readPump discards inbound frames; its only job is to notice the peer
// going away.
func (h *Hub) readPump(sub *subscriber) {
	for {
		if _, _, err := sub.ws.ReadMessage(); err != nil {
			h.remove(sub)
			return
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	_, open := h.subs[sub]
	if open {
		delete(h.subs, sub)
		close(sub.send)
	}
	count := len(h.subs)
	h.mu.Unlock()

	if open {
		sub.ws.Close()
		h.cfg.Logger.Info("hub: subscriber left", "id", sub.id, "subscribers", count)
		h.cfg.Events.Event(observability.EventSubscriberLeave, true,
			map[string]any{"subscriber_id": sub.id})
	}
}

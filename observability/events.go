// Package observability provides a SQLite-backed event log for the bridge:
// capture cycles, injections, and subscriber lifecycle.
//
// Persistence is async and non-blocking: buffer overflow silently drops
// events rather than applying backpressure to the polling loop.
package observability

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types recorded by the bridge.
const (
	EventCaptureChanged  = "capture_changed"
	EventCaptureFailed   = "capture_failed"
	EventInjection       = "injection"
	EventSubscriberJoin  = "subscriber_join"
	EventSubscriberLeave = "subscriber_leave"
)

type event struct {
	eventType string
	details   map[string]any
	success   bool
	at        time.Time
}

// Log buffers bridge events and persists them in the background. A nil
// *Log is a valid no-op sink, so callers never need to guard.
type Log struct {
	db     *sql.DB
	buf    chan event
	done   chan struct{}
	logger *slog.Logger
}

// NewLog creates an event log on db and starts its writer goroutine.
func NewLog(db *sql.DB, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Log{
		db:     db,
		buf:    make(chan event, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.writeLoop()
	return l
}

// Event queues one event. Non-blocking: a full buffer drops the event.
func (l *Log) Event(eventType string, success bool, details map[string]any) {
	if l == nil {
		return
	}
	select {
	case l.buf <- event{eventType: eventType, details: details, success: success, at: time.Now()}:
	default:
		l.logger.Debug("observability: buffer full, event dropped", "event_type", eventType)
	}
}

// Close drains the buffer and stops the writer.
func (l *Log) Close() {
	if l == nil {
		return
	}
	close(l.buf)
	<-l.done
}

func (l *Log) writeLoop() {
	defer close(l.done)
	for ev := range l.buf {
		details := "{}"
		if ev.details != nil {
			if b, err := json.Marshal(ev.details); err == nil {
				details = string(b)
			}
		}
		_, err := l.db.Exec(`
			INSERT INTO bridge_events (event_id, event_type, details, success, created_at)
			VALUES (?,?,?,?,?)`,
			"evt_"+uuid.NewString(), ev.eventType, details, ev.success, ev.at.Unix())
		if err != nil {
			l.logger.Warn("observability: event write failed",
				"error", err, "event_type", ev.eventType)
		}
	}
}

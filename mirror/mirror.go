// Package mirror bridges a running desktop application's remote-debugging
// endpoint to the distribution hub. It discovers the endpoint, holds the
// one multiplexed control connection, polls a rendering of application
// state out of the target's execution contexts, and publishes changes.
//
// mirror observes and injects; it does not interpret. Snapshots are handed
// to a publisher (typically the hub) as-is.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/appmirror/mirror/internal/capture"
	"github.com/hazyhaar/appmirror/mirror/internal/cdp"
	"github.com/hazyhaar/appmirror/mirror/internal/config"
	"github.com/hazyhaar/appmirror/mirror/internal/discovery"
	"github.com/hazyhaar/appmirror/mirror/internal/inject"
	"github.com/hazyhaar/appmirror/mirror/internal/snapshot"
	"github.com/hazyhaar/appmirror/observability"
)

// ErrNotConnected means an operation ran before Start succeeded. Dependent
// operations fail fast when there is no control connection.
var ErrNotConnected = errors.New("mirror: not connected")

// Bridge is the top-level orchestrator. Create one per process.
type Bridge struct {
	cfg    *config.Config
	logger *slog.Logger
	events *observability.Log

	publish func(*snapshot.Snapshot)

	conn     *cdp.Conn
	capturer *capture.Engine
	injector *inject.Engine
	cache    *snapshot.Cache

	cycles   atomic.Int64
	changes  atomic.Int64
	failures atomic.Int64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithPublisher sets the sink invoked for every accepted change.
func WithPublisher(fn func(*Snapshot)) Option {
	return func(b *Bridge) { b.publish = fn }
}

// WithEvents sets the observability event log.
func WithEvents(l *observability.Log) Option {
	return func(b *Bridge) { b.events = l }
}

// New creates a Bridge from configuration. Call Start to attach to the
// target, then Run for the poll loop.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		cfg:    cfg,
		logger: logger,
		cache:  snapshot.NewCache(),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// SetPublisher sets the change sink after construction, for callers that
// need the bridge's cache to build the sink first. Call before Run.
func (b *Bridge) SetPublisher(fn func(*Snapshot)) {
	b.publish = fn
}

// Cache exposes the snapshot cache for the hub's subscribe-time replay.
func (b *Bridge) Cache() *Cache {
	return b.cache
}

// Start discovers the debugging endpoint and opens the control connection.
// Both failures are fatal to startup: the caller terminates the process.
func (b *Bridge) Start(ctx context.Context) error {
	ep, err := discovery.Find(ctx, discovery.Config{
		Host:         b.cfg.Target.Host,
		Ports:        b.cfg.Target.Ports,
		Pattern:      b.cfg.Target.Pattern,
		ProbeTimeout: b.cfg.Target.ProbeTimeout,
		Logger:       b.logger,
	})
	if err != nil {
		return fmt.Errorf("mirror: discovery: %w", err)
	}

	conn, err := cdp.Dial(ctx, ep.ControlURL, cdp.Config{
		GracePeriod: b.cfg.Target.GracePeriod,
		Logger:      b.logger,
	})
	if err != nil {
		return fmt.Errorf("mirror: connect: %w", err)
	}
	b.conn = conn

	b.capturer = capture.New(capture.Config{
		Caller:   conn,
		Contexts: conn.Registry(),
		Logger:   b.logger,
	})
	b.injector = inject.New(inject.Config{
		Caller:   conn,
		Contexts: conn.Registry(),
		Logger:   b.logger,
	})

	b.logger.Info("mirror: attached", "port", ep.Port)
	return nil
}

// Run polls at the configured interval until ctx is cancelled. Capture
// failures are logged and retried next tick — they never stop the loop.
func (b *Bridge) Run(ctx context.Context) error {
	if b.conn == nil {
		return ErrNotConnected
	}

	ticker := time.NewTicker(b.cfg.Poll.Interval)
	defer ticker.Stop()

	b.logger.Info("mirror: polling", "interval", b.cfg.Poll.Interval)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("mirror: stopped")
			return nil
		case <-ticker.C:
			b.pollOnce(ctx)
		}
	}
}

func (b *Bridge) pollOnce(ctx context.Context) {
	b.cycles.Add(1)

	snap, err := b.capturer.Capture(ctx)
	if err != nil {
		b.failures.Add(1)
		b.logger.Warn("mirror: capture unavailable", "error", err)
		b.events.Event(observability.EventCaptureFailed, false,
			map[string]any{"error": err.Error()})
		return
	}

	if !b.cache.Update(snap) {
		return
	}
	b.changes.Add(1)
	b.events.Event(observability.EventCaptureChanged, true,
		map[string]any{"fingerprint": b.cache.Fingerprint(), "markup_bytes": len(snap.Markup)})
	if b.publish != nil {
		b.publish(snap)
	}
}

// State returns the latest published snapshot, or ok=false when nothing
// has been captured yet.
func (b *Bridge) State() (*Snapshot, bool) {
	return b.cache.Current()
}

// Send injects text as a synthetic user message. Delivery outcomes are
// result values; the only error path is an unconnected bridge.
func (b *Bridge) Send(ctx context.Context, text string) Result {
	if b.injector == nil {
		return Result{OK: false, Reason: "not_connected"}
	}
	res := b.injector.Send(ctx, text)
	b.events.Event(observability.EventInjection, res.OK,
		map[string]any{"method": res.Method, "reason": res.Reason})
	return res
}

// Stats are point-in-time poll-loop counters.
type Stats struct {
	Cycles      int64 `json:"cycles"`
	Changes     int64 `json:"changes"`
	Failures    int64 `json:"failures"`
	Contexts    int   `json:"contexts"`
	Subscribers int   `json:"subscribers,omitempty"`
}

// Stats returns the loop counters and context count.
func (b *Bridge) Stats() Stats {
	s := Stats{
		Cycles:   b.cycles.Load(),
		Changes:  b.changes.Load(),
		Failures: b.failures.Load(),
	}
	if b.conn != nil {
		s.Contexts = b.conn.Registry().Len()
	}
	return s
}

// Close tears down the control connection.
func (b *Bridge) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

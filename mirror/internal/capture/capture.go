// Package capture extracts a best-effort snapshot of the target
// application's visible state by evaluating an extraction routine against
// the discovered execution contexts, first success wins.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/appmirror/mirror/internal/cdp"
	"github.com/hazyhaar/appmirror/mirror/internal/snapshot"
)

// ErrUnavailable means no context yielded a usable snapshot this cycle.
// The poll loop logs it and tries again next tick; the cache is untouched.
var ErrUnavailable = errors.New("capture: no context yielded a snapshot")

// Caller issues one correlated request on the control connection.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// Contexts supplies the ordered execution contexts and receives
// per-context outcome feedback.
type Contexts interface {
	Ordered() []cdp.ExecutionContext
	RecordSuccess(id int64)
	RecordFailure(id int64)
}

// Config configures the capture engine.
type Config struct {
	Caller   Caller
	Contexts Contexts

	// Script overrides the built-in extraction routine. The routine must
	// evaluate to a JSON-serializable object; an "error" property marks
	// the result unusable.
	Script string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Script == "" {
		c.Script = extractionScript
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine produces snapshots. It performs no caching or fingerprinting —
// that belongs to the snapshot cache.
type Engine struct {
	cfg Config
}

// New creates a capture Engine.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg}
}

// evalResult is the shape of a Runtime.evaluate response.
type evalResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails"`
}

// Capture walks the registry in order and returns the first context's
// usable result. Contexts whose call fails, throws, or returns an
// error-flagged object are skipped. Returns ErrUnavailable when every
// context is exhausted.
func (e *Engine) Capture(ctx context.Context) (*snapshot.Snapshot, error) {
	log := e.cfg.Logger

	for _, ec := range e.cfg.Contexts.Ordered() {
		snap, err := e.evaluateIn(ctx, ec.ID)
		if err != nil {
			e.cfg.Contexts.RecordFailure(ec.ID)
			log.Debug("capture: context skipped", "context_id", ec.ID, "error", err)
			continue
		}
		e.cfg.Contexts.RecordSuccess(ec.ID)

		// Rewrite local resource references independently per field;
		// unreadable references stay as they are.
		snap.Markup = inlineLocalResources(snap.Markup)
		snap.Style = inlineLocalResources(snap.Style)
		return snap, nil
	}

	return nil, ErrUnavailable
}

func (e *Engine) evaluateIn(ctx context.Context, contextID int64) (*snapshot.Snapshot, error) {
	raw, err := e.cfg.Caller.Call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    e.cfg.Script,
		"contextId":     contextID,
		"returnByValue": true,
	})
	if err != nil {
		return nil, err
	}

	var res evalResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("capture: decode evaluate response: %w", err)
	}
	if res.ExceptionDetails != nil {
		return nil, fmt.Errorf("capture: evaluation threw: %s", res.ExceptionDetails.Text)
	}
	if len(res.Result.Value) == 0 {
		return nil, errors.New("capture: evaluation returned no value")
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(res.Result.Value, &snap); err != nil {
		return nil, fmt.Errorf("capture: result is not an object: %w", err)
	}
	if snap.Error != "" {
		return nil, fmt.Errorf("capture: context reported: %s", snap.Error)
	}
	return &snap, nil
}

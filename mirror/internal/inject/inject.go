// Package inject delivers free-form text as a synthetic user message
// inside the target application, with ordered fallback across execution
// contexts. All outcomes are result values — the engine never raises.
package inject

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/appmirror/mirror/internal/cdp"
)

// Result reports how delivery went. Method names the submission strategy
// that worked; Reason explains a failure.
type Result struct {
	OK     bool   `json:"ok"`
	Method string `json:"method,omitempty"`
	Reason string `json:"reason,omitempty"`
}

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

// Config configures the injection engine.
type Config struct {
	Caller   Caller
	Contexts Contexts
	Logger   *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine injects messages.
type Engine struct {
	cfg Config
}

// New creates an injection Engine.
func New(cfg Config) *Engine {
	cfg.defaults()
	return &Engine{cfg: cfg}
}

type evalResult struct {
	Result struct {
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails"`
}

// Send attempts delivery in each context in registry order and returns on
// the first success. If no context succeeds it returns the last observed
// failure, or a "no context available" result when the registry is empty
// or every call failed outright.
func (e *Engine) Send(ctx context.Context, text string) Result {
	log := e.cfg.Logger
	script := buildScript(text)

	last := Result{OK: false, Reason: "no_context_available"}

	for _, ec := range e.cfg.Contexts.Ordered() {
		res, err := e.evaluateIn(ctx, ec.ID, script)
		if err != nil {
			e.cfg.Contexts.RecordFailure(ec.ID)
			log.Debug("inject: context skipped", "context_id", ec.ID, "error", err)
			continue
		}
		e.cfg.Contexts.RecordSuccess(ec.ID)

		if res.OK {
			log.Info("inject: delivered", "context_id", ec.ID, "method", res.Method)
			return res
		}
		last = res
	}

	log.Warn("inject: delivery failed", "reason", last.Reason)
	return last
}

func (e *Engine) evaluateIn(ctx context.Context, contextID int64, script string) (Result, error) {
	raw, err := e.cfg.Caller.Call(ctx, "Runtime.evaluate", map[string]any{
		"expression":    script,
		"contextId":     contextID,
		"returnByValue": true,
	})
	if err != nil {
		return Result{}, err
	}

	var res evalResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return Result{}, fmt.Errorf("inject: decode evaluate response: %w", err)
	}
	if res.ExceptionDetails != nil {
		return Result{}, fmt.Errorf("inject: evaluation threw: %s", res.ExceptionDetails.Text)
	}
	if len(res.Result.Value) == 0 {
		return Result{}, fmt.Errorf("inject: evaluation returned no value")
	}

	var out Result
	if err := json.Unmarshal(res.Result.Value, &out); err != nil {
		return Result{}, fmt.Errorf("inject: result is not an object: %w", err)
	}
	return out, nil
}

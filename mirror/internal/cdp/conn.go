// Package cdp owns the single duplex control connection to the target
// application's debugging endpoint. It turns the socket into an
// id-correlated call interface plus a live registry of the execution
// contexts the target exposes.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed means the control socket died. The bridge does not
// reconnect on its own — the error surfaces through failed capture cycles.
var ErrConnectionClosed = errors.New("cdp: connection closed")

// ProtocolError is the error field of a protocol response.
type ProtocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("cdp: protocol error %d: %s", e.Code, e.Message)
}

type outbound struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// inbound covers both response frames (id set) and event frames (method
// set). Frames matching neither a pending call nor a known event are ignored.
type inbound struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Params json.RawMessage `json:"params"`
	Error  *ProtocolError  `json:"error"`
}

type callResult struct {
	result json.RawMessage
	err    error
}

// Config tunes the connection.
type Config struct {
	// GracePeriod is how long Dial waits after enabling context
	// notifications before the connection is considered ready, so initial
	// context-created events can arrive. A heuristic, not a completeness
	// guarantee — later contexts still fold into the registry live.
	// Default: 500ms.
	GracePeriod time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Conn is the one multiplexed control connection. At most one is active
// per bridge; it is not reopened after failure.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan callResult
	nextID  atomic.Int64

	registry *Registry
	logger   *slog.Logger

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial opens the control connection, starts the demultiplexing read loop,
// enables execution-context notifications, and waits out the grace period.
func Dial(ctx context.Context, controlURL string, cfg Config) (*Conn, error) {
	cfg.defaults()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, controlURL, nil)
	if err != nil {
		return nil, fmt.Errorf("cdp: dial %s: %w", controlURL, err)
	}

	c := &Conn{
		ws:       ws,
		pending:  make(map[int64]chan callResult),
		registry: NewRegistry(),
		logger:   cfg.Logger,
		closed:   make(chan struct{}),
	}
	go c.readLoop()

	if _, err := c.Call(ctx, "Runtime.enable", nil); err != nil {
		c.Close()
		return nil, fmt.Errorf("cdp: enable runtime: %w", err)
	}

	select {
	case <-time.After(cfg.GracePeriod):
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}

	c.logger.Info("cdp: connected", "url", controlURL, "contexts", c.registry.Len())
	return c, nil
}

// Registry returns the live execution-context registry. It keeps growing
// as the target announces new contexts.
func (c *Conn) Registry() *Registry {
	return c.registry
}

// Call sends one request tagged with a fresh id and blocks until the
// correlated response arrives, ctx expires, or the connection dies. There
// is no per-call timeout beyond ctx — callers bound their own patience.
func (c *Conn) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan callResult, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.ws.WriteJSON(outbound{ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("cdp: send %s: %w", method, err)
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-c.closed:
		c.forget(id)
		return nil, ErrConnectionClosed
	}
}

// Close tears down the socket and rejects every pending call.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.ws.Close()
		c.failPending()
	})
	return err
}

func (c *Conn) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Conn) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- callResult{err: ErrConnectionClosed}
		delete(c.pending, id)
	}
}

// readLoop demultiplexes every incoming frame: responses fulfill their
// pending call's one-shot slot, context-created events grow the registry,
// everything else is ignored.
func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Warn("cdp: read loop ended", "error", err)
			}
			c.Close()
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("cdp: unparseable frame dropped", "error", err)
			continue
		}

		if msg.ID != 0 {
			c.dispatchResponse(msg)
			continue
		}

		if msg.Method == "Runtime.executionContextCreated" {
			c.handleContextCreated(msg.Params)
		}
	}
}

func (c *Conn) dispatchResponse(msg inbound) {
	c.mu.Lock()
	ch, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()

	// A response matching no pending id is discarded silently.
	if !ok {
		return
	}

	if msg.Error != nil {
		ch <- callResult{err: msg.Error}
		return
	}
	ch <- callResult{result: msg.Result}
}

func (c *Conn) handleContextCreated(params json.RawMessage) {
	var ev struct {
		Context ExecutionContext `json:"context"`
	}
	if err := json.Unmarshal(params, &ev); err != nil {
		c.logger.Debug("cdp: bad context event dropped", "error", err)
		return
	}
	c.registry.Add(ev.Context)
	c.logger.Debug("cdp: execution context discovered",
		"id", ev.Context.ID, "origin", ev.Context.Origin, "name", ev.Context.Name)
}

package capture

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hazyhaar/appmirror/mirror/internal/cdp"
)

// scriptedCaller answers Runtime.evaluate per contextId.
type scriptedCaller struct {
	byContext map[int64]func() (json.RawMessage, error)
	calls     []int64
}

func (s *scriptedCaller) Call(_ context.Context, _ string, params any) (json.RawMessage, error) {
	p := params.(map[string]any)
	id := p["contextId"].(int64)
	s.calls = append(s.calls, id)
	fn, ok := s.byContext[id]
	if !ok {
		return nil, errors.New("no script for context")
	}
	return fn()
}

func evalValue(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"result": map[string]any{"type": "object", "value": v},
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func registryOf(ids ...int64) *cdp.Registry {
	r := cdp.NewRegistry()
	for _, id := range ids {
		r.Add(cdp.ExecutionContext{ID: id})
	}
	return r
}

func TestCapture_FallsThroughToFirstUsableContext(t *testing.T) {
	reg := registryOf(1, 2, 3)
	caller := &scriptedCaller{byContext: map[int64]func() (json.RawMessage, error){
		1: func() (json.RawMessage, error) { return nil, errors.New("call failed") },
		2: func() (json.RawMessage, error) {
			return evalValue(t, map[string]any{"error": "x"}), nil
		},
		3: func() (json.RawMessage, error) {
			return evalValue(t, map[string]any{"markup": "<main>hi</main>", "color": "rgb(0, 0, 0)"}), nil
		},
	}}

	e := New(Config{Caller: caller, Contexts: reg})
	snap, err := e.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if snap.Markup != "<main>hi</main>" || snap.Color != "rgb(0, 0, 0)" {
		t.Errorf("snapshot: got %+v, want context 3's result unchanged", snap)
	}
}

func TestCapture_FirstSuccessWinsNoLaterCalls(t *testing.T) {
	reg := registryOf(1, 2)
	caller := &scriptedCaller{byContext: map[int64]func() (json.RawMessage, error){
		1: func() (json.RawMessage, error) {
			return evalValue(t, map[string]any{"markup": "<main>first</main>"}), nil
		},
		2: func() (json.RawMessage, error) {
			t.Error("context 2 called after context 1 succeeded")
			return nil, errors.New("unreachable")
		},
	}}

	e := New(Config{Caller: caller, Contexts: reg})
	snap, err := e.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if snap.Markup != "<main>first</main>" {
		t.Errorf("markup: got %q", snap.Markup)
	}
	if len(caller.calls) != 1 {
		t.Errorf("calls: got %v, want exactly one", caller.calls)
	}
}

func TestCapture_AllExhaustedIsUnavailable(t *testing.T) {
	reg := registryOf(1, 2)
	caller := &scriptedCaller{byContext: map[int64]func() (json.RawMessage, error){
		1: func() (json.RawMessage, error) { return nil, errors.New("down") },
		2: func() (json.RawMessage, error) {
			return json.RawMessage(`{"exceptionDetails":{"text":"boom"}}`), nil
		},
	}}

	e := New(Config{Caller: caller, Contexts: reg})
	_, err := e.Capture(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestCapture_EmptyRegistryIsUnavailable(t *testing.T) {
	e := New(Config{Caller: &scriptedCaller{}, Contexts: registryOf()})
	_, err := e.Capture(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}

func TestCapture_RepeatedFailureDemotesContext(t *testing.T) {
	reg := registryOf(1, 2)
	failing := 0
	caller := &scriptedCaller{byContext: map[int64]func() (json.RawMessage, error){
		1: func() (json.RawMessage, error) { failing++; return nil, errors.New("dead context") },
		2: func() (json.RawMessage, error) {
			return evalValue(t, map[string]any{"markup": "<main>ok</main>"}), nil
		},
	}}

	e := New(Config{Caller: caller, Contexts: reg})
	for i := 0; i < 4; i++ {
		if _, err := e.Capture(context.Background()); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}

	// After three straight failures context 1 is tried last, so the
	// fourth cycle goes straight to context 2.
	if failing != 3 {
		t.Errorf("failing context calls: got %d, want 3 (demoted afterwards)", failing)
	}
}

package hub

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/appmirror/mirror"
)

func testHub(t *testing.T, cache *mirror.Cache) (*Hub, string) {
	t.Helper()
	h := New(Config{Token: "secret", Cache: cache})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	t.Cleanup(h.Close)
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestHub_BadTokenGetsUnauthorizedAndNoData(t *testing.T) {
	cache := mirror.NewCache()
	cache.Update(&mirror.Snapshot{Markup: "<main>secret state</main>"})
	_, url := testHub(t, cache)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=wrong", nil)
	if err == nil {
		t.Fatal("dial with bad token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake status: got %+v, want 401", resp)
	}
}

func TestHub_MissingTokenRejected(t *testing.T) {
	_, url := testHub(t, mirror.NewCache())

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("handshake status: got %+v, want 401", resp)
	}
}

func TestHub_ReplayOnSubscribe(t *testing.T) {
	cache := mirror.NewCache()
	cache.Update(&mirror.Snapshot{Markup: "<main>cached</main>"})
	_, url := testHub(t, cache)

	ws := dial(t, url, "secret")
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var frame Frame
	if err := ws.ReadJSON(&frame); err != nil {
		t.Fatalf("read replay: %v", err)
	}
	if frame.Type != "snapshot" {
		t.Errorf("type: got %q, want snapshot", frame.Type)
	}
	if frame.Data == nil || frame.Data.Markup != "<main>cached</main>" {
		t.Errorf("data: got %+v, want cached snapshot", frame.Data)
	}
	if _, err := time.Parse(time.RFC3339, frame.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC 3339: %v", frame.Timestamp, err)
	}
}

func TestHub_NoReplayFromEmptyCache(t *testing.T) {
	_, url := testHub(t, mirror.NewCache())

	ws := dial(t, url, "secret")
	ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

	var frame Frame
	if err := ws.ReadJSON(&frame); err == nil {
		t.Errorf("unexpected frame from empty cache: %+v", frame)
	}
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	h, url := testHub(t, mirror.NewCache())

	a := dial(t, url, "secret")
	b := dial(t, url, "secret")

	waitFor(t, func() bool { return h.Count() == 2 })

	h.Broadcast(&mirror.Snapshot{Markup: "<main>update</main>"})

	for _, ws := range []*websocket.Conn{a, b} {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var frame Frame
		if err := ws.ReadJSON(&frame); err != nil {
			t.Fatalf("read broadcast: %v", err)
		}
		if frame.Data.Markup != "<main>update</main>" {
			t.Errorf("broadcast data: got %q", frame.Data.Markup)
		}
	}
}

func TestHub_DisconnectPrunesSubscriber(t *testing.T) {
	h, url := testHub(t, mirror.NewCache())

	ws := dial(t, url, "secret")
	waitFor(t, func() bool { return h.Count() == 1 })

	ws.Close()
	waitFor(t, func() bool { return h.Count() == 0 })

	// Broadcasting afterwards must not panic or error.
	h.Broadcast(&mirror.Snapshot{Markup: "<main>later</main>"})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewToken_UniqueAndNonEmpty(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	b, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if a == "" || a == b {
		t.Errorf("tokens: %q vs %q", a, b)
	}
}

func TestEqual(t *testing.T) {
	if !Equal("secret", "secret") {
		t.Error("matching tokens rejected")
	}
	if Equal("secret", "wrong") {
		t.Error("mismatched tokens accepted")
	}
	if Equal("", "") {
		t.Error("empty tokens must never match")
	}
	if Equal("secret", "") {
		t.Error("empty candidate accepted")
	}
}

func TestFromRequest_Sources(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Auth-Token", "from-header")
	if got := FromRequest(r); got != "from-header" {
		t.Errorf("header: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer from-bearer")
	if got := FromRequest(r); got != "from-bearer" {
		t.Errorf("bearer: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/?token=from-query", nil)
	if got := FromRequest(r); got != "from-query" {
		t.Errorf("query: got %q", got)
	}

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := FromRequest(r); got != "" {
		t.Errorf("absent: got %q", got)
	}
}

func TestRequire_BlocksBeforeHandler(t *testing.T) {
	reached := false
	h := Require("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?token=wrong", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want 401", rec.Code)
	}
	if reached {
		t.Error("handler ran despite bad token")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?token=secret", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
	if !reached {
		t.Error("handler did not run for valid token")
	}
}

package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/appmirror/auth"
	"github.com/hazyhaar/appmirror/hub"
	"github.com/hazyhaar/appmirror/mirror"
)

// maxMessageBytes bounds the injection payload.
const maxMessageBytes = 1 << 20

func newRouter(bridge *mirror.Bridge, distributor *hub.Hub, token string) http.Handler {
	r := chi.NewRouter()

	// Health stays open: counters only, no snapshot data.
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		stats := bridge.Stats()
		stats.Subscribers = distributor.Count()
		writeJSON(w, http.StatusOK, stats)
	})

	// The hub checks the token itself, at connection time.
	r.Get("/ws", distributor.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(auth.Require(token))

		r.Get("/api/state", func(w http.ResponseWriter, req *http.Request) {
			snap, ok := bridge.State()
			if !ok {
				writeJSON(w, http.StatusServiceUnavailable,
					map[string]string{"error": "not_available"})
				return
			}
			writeJSON(w, http.StatusOK, snap)
		})

		r.Post("/api/message", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Text string `json:"text"`
			}
			dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxMessageBytes))
			if err := dec.Decode(&body); err != nil {
				writeJSON(w, http.StatusBadRequest,
					map[string]string{"error": "invalid_body"})
				return
			}
			if body.Text == "" {
				writeJSON(w, http.StatusBadRequest,
					map[string]string{"error": "empty_text"})
				return
			}

			res := bridge.Send(req.Context(), body.Text)
			writeJSON(w, http.StatusOK, res)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Package discovery locates the live remote-debugging endpoint of the
// target application among a set of candidate ports.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrEndpointNotFound means every candidate port was probed and none
// exposed a matching debugging target. Fatal to startup — the caller does
// not retry.
var ErrEndpointNotFound = errors.New("discovery: no debugging endpoint found")

// Target is one entry in a port's metadata listing.
type Target struct {
	Title                string `json:"title"`
	URL                  string `json:"url"`
	Type                 string `json:"type"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// Endpoint is the chosen debugging target. Immutable once discovered.
type Endpoint struct {
	Port       int
	ControlURL string // WebSocket control-channel address
}

// Config tunes the probe behaviour.
type Config struct {
	// Host the candidate ports are probed on. Default: "127.0.0.1".
	Host string

	// Ports are the candidate debugging ports, probed concurrently.
	Ports []int

	// Pattern is matched (substring, case-insensitive) against each
	// target's url and title to recognise the application's main page.
	Pattern string

	// ProbeTimeout bounds each individual probe. Default: 2s.
	ProbeTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Find probes every candidate port concurrently against its metadata
// listing and returns the first endpoint whose listing contains a target
// matching the configured pattern. Slower probes run to completion but
// their outcomes are discarded once a winner is chosen. Returns
// ErrEndpointNotFound if no candidate matches.
func Find(ctx context.Context, cfg Config) (*Endpoint, error) {
	cfg.defaults()
	log := cfg.Logger

	if len(cfg.Ports) == 0 {
		return nil, ErrEndpointNotFound
	}

	type outcome struct {
		ep  *Endpoint
		err error
	}
	results := make(chan outcome, len(cfg.Ports))

	for _, port := range cfg.Ports {
		go func(port int) {
			ep, err := probe(ctx, cfg, port)
			results <- outcome{ep: ep, err: err}
		}(port)
	}

	for range cfg.Ports {
		out := <-results
		if out.err != nil {
			log.Debug("discovery: probe failed", "error", out.err)
			continue
		}
		log.Info("discovery: endpoint found",
			"port", out.ep.Port, "control_url", out.ep.ControlURL)
		return out.ep, nil
	}

	return nil, ErrEndpointNotFound
}

// probe fetches one port's target listing and scans it for a match.
func probe(ctx context.Context, cfg Config, port int) (*Endpoint, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	listURL := fmt.Sprintf("http://%s:%d/json", cfg.Host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: build request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discovery: probe port %d: %w", port, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery: port %d: status %d", port, resp.StatusCode)
	}

	var targets []Target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("discovery: port %d: decode listing: %w", port, err)
	}

	pattern := strings.ToLower(cfg.Pattern)
	for _, t := range targets {
		if t.WebSocketDebuggerURL == "" {
			continue
		}
		if pattern != "" &&
			!strings.Contains(strings.ToLower(t.URL), pattern) &&
			!strings.Contains(strings.ToLower(t.Title), pattern) {
			continue
		}
		return &Endpoint{Port: port, ControlURL: t.WebSocketDebuggerURL}, nil
	}

	return nil, fmt.Errorf("discovery: port %d: no matching target", port)
}

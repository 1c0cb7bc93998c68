// Entry point for the appmirror bridge — attaches to the target
// application's debugging endpoint, polls state snapshots, and serves the
// authenticated HTTP/WebSocket surface.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/appmirror/auth"
	"github.com/hazyhaar/appmirror/hub"
	"github.com/hazyhaar/appmirror/mirror"
	"github.com/hazyhaar/appmirror/observability"
)

func main() {
	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}

	token := cfg.Server.Token
	if token == "" {
		token, err = auth.NewToken()
		if err != nil {
			logger.Error("token generation failed", "error", err)
			os.Exit(1)
		}
		logger.Info("access token generated", "token", token)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Event log (optional).
	var events *observability.Log
	if !cfg.Observability.Disabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Observability.Path), 0o755); err != nil {
			logger.Error("events dir", "error", err)
			os.Exit(1)
		}
		db, err := observability.Open(cfg.Observability.Path)
		if err != nil {
			logger.Error("events db", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		events = observability.NewLog(db, logger)
		defer events.Close()
	}

	bridge := mirror.New(cfg, logger, mirror.WithEvents(events))
	defer bridge.Close()

	distributor := hub.New(hub.Config{
		Token:  token,
		Cache:  bridge.Cache(),
		Logger: logger,
		Events: events,
	})
	defer distributor.Close()
	bridge.SetPublisher(distributor.Broadcast)

	// Startup failures are fatal: no endpoint or no connection means
	// there is nothing to bridge.
	if err := bridge.Start(ctx); err != nil {
		logger.Error("bridge startup failed", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(bridge, distributor, token),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bridge.Run(ctx)
	})
	g.Go(func() error {
		logger.Info("serving", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

// loadConfig reads the optional YAML config and applies env overrides.
func loadConfig() (*mirror.Config, error) {
	var cfg *mirror.Config
	if path := os.Getenv("CONFIG"); path != "" {
		loaded, err := mirror.LoadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = mirror.DefaultConfig()
	}

	if v := os.Getenv("ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("TARGET_PATTERN"); v != "" {
		cfg.Target.Pattern = v
	}
	if v := os.Getenv("TARGET_PORTS"); v != "" {
		var ports []int
		for _, p := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil {
				return nil, err
			}
			ports = append(ports, n)
		}
		cfg.Target.Ports = ports
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, err
		}
		cfg.Poll.Interval = d
	}
	if v := os.Getenv("EVENTS_DB"); v != "" {
		cfg.Observability.Path = v
	}
	if os.Getenv("EVENTS_DISABLED") == "true" {
		cfg.Observability.Disabled = true
	}
	return cfg, nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

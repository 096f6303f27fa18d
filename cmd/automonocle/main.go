// Package main provides the automonocle add-on entry point: it
// discovers cameras from Home Assistant's sources and writes the
// Monocle Gateway configuration.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/automonocle/automonocle/internal/api"
	"github.com/automonocle/automonocle/internal/discovery"
	"github.com/automonocle/automonocle/internal/events"
	"github.com/automonocle/automonocle/internal/hass"
	"github.com/automonocle/automonocle/internal/history"
	"github.com/automonocle/automonocle/internal/monocle"
	"github.com/automonocle/automonocle/internal/options"
	"github.com/automonocle/automonocle/internal/watcher"
)

func main() {
	optionsPath := getEnv("OPTIONS_PATH", options.DefaultOptionsPath)
	opts, err := options.Load(optionsPath)
	if err != nil {
		slog.Error("Failed to load options", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if opts.LogLevel == "debug" || os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := opts.LoadDiscoveryFile(filepath.Join(filepath.Dir(optionsPath), "discovery.yaml")); err != nil {
		slog.Warn("Ignoring discovery config overrides", "error", err)
	}

	// Both tokens are hard preconditions; everything else degrades.
	if opts.MonocleToken == "" {
		slog.Error("Monocle token not configured")
		os.Exit(1)
	}
	supervisorToken := os.Getenv("SUPERVISOR_TOKEN")
	if supervisorToken == "" {
		slog.Error("SUPERVISOR_TOKEN not available")
		os.Exit(1)
	}

	slog.Info("Starting camera discovery add-on",
		"run_mode", opts.RunMode,
		"stream_quality", opts.StreamQuality,
		"auto_discover", opts.AutoDiscover,
	)

	if err := monocle.WriteToken(opts.MonocleToken, opts.TokenPath); err != nil {
		slog.Error("Failed to write gateway token", "error", err)
		os.Exit(1)
	}
	slog.Info("Wrote gateway token file", "path", opts.TokenPath)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !opts.AutoDiscover {
		slog.Info("Auto-discovery disabled")
		if err := monocle.WriteConfig(&monocle.Config{Cameras: []monocle.Camera{}}, opts.ConfigPath); err != nil {
			slog.Error("Failed to write gateway config", "error", err)
			os.Exit(1)
		}
		return
	}

	app := newApp(opts, supervisorToken)
	defer app.close()

	if opts.RunMode == options.RunModeWatch && opts.APIPort > 0 {
		var store api.RunStore
		if app.store != nil {
			store = app.store
		}
		app.server = api.NewServer(opts.APIPort, store)
		go app.server.Start(ctx)
	}

	app.runPass(ctx)

	if opts.RunMode == options.RunModeWatch {
		app.watch(ctx)
	}

	slog.Info("Camera discovery complete")
}

// historyRetentionDays bounds the run history kept on disk.
const historyRetentionDays = 30

// app ties the discovery service to its output sinks.
type app struct {
	opts      *options.Options
	service   *discovery.Service
	store     *history.Store
	publisher *events.Publisher
	server    *api.Server
}

func newApp(opts *options.Options, supervisorToken string) *app {
	baseURL := getEnv("HA_URL", hass.DefaultBaseURL)
	storagePath := getEnv("HA_STORAGE_PATH", hass.DefaultStoragePath)

	client := hass.NewClient(baseURL, supervisorToken)
	storage := hass.NewStorage(storagePath)
	registry := hass.NewWSClient(baseURL, supervisorToken)

	relay := discovery.NewRelayAdapter(opts.Discovery.Go2RTCEndpoints, supervisorToken, opts.Discovery.ProbeTimeout)
	unifi := discovery.NewUniFiAdapter(storage, client, registry, opts.Discovery.BootstrapTimeout)

	a := &app{
		opts:    opts,
		service: discovery.NewService(client, relay, unifi, opts),
	}

	if opts.HistoryPath != "" {
		store, err := history.Open(opts.HistoryPath)
		if err != nil {
			slog.Warn("Run history disabled", "error", err)
		} else {
			a.store = store
			if err := store.Prune(context.Background(), time.Now().AddDate(0, 0, -historyRetentionDays)); err != nil {
				slog.Warn("Failed to prune run history", "error", err)
			}
		}
	}

	if opts.NATSURL != "" {
		publisher, err := events.Connect(opts.NATSURL)
		if err != nil {
			slog.Warn("Event publishing disabled", "error", err)
		} else {
			a.publisher = publisher
		}
	}

	return a
}

// runPass executes one discovery pass and writes every sink.
func (a *app) runPass(ctx context.Context) {
	result := a.service.Run(ctx)

	config, skipped := monocle.Project(result.Records)
	if err := monocle.WriteConfig(config, a.opts.ConfigPath); err != nil {
		slog.Error("Failed to write gateway config", "error", err)
		os.Exit(1)
	}
	slog.Info("Wrote gateway config",
		"path", a.opts.ConfigPath,
		"cameras", len(config.Cameras),
		"skipped", len(skipped),
	)

	if a.store != nil {
		if err := a.store.RecordRun(ctx, result); err != nil {
			slog.Warn("Failed to record run history", "error", err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.PublishResult(result); err != nil {
			slog.Warn("Failed to publish discovery events", "error", err)
		}
	}
	if a.server != nil {
		a.server.SetResult(result)
	}
}

// watch re-runs the pass on registry changes until the process is
// signaled. Options are reloaded before each triggered pass so edits
// to options.json (quality, filters) take effect without a restart.
func (a *app) watch(ctx context.Context) {
	optionsPath := getEnv("OPTIONS_PATH", options.DefaultOptionsPath)
	storagePath := getEnv("HA_STORAGE_PATH", hass.DefaultStoragePath)

	w := watcher.New([]string{storagePath, filepath.Dir(optionsPath)})
	err := w.Run(ctx, func(ctx context.Context) {
		if err := a.opts.Reload(optionsPath); err != nil {
			slog.Warn("Keeping previous options", "error", err)
		}
		if !a.opts.AutoDiscover {
			slog.Info("Auto-discovery disabled")
			if err := monocle.WriteConfig(&monocle.Config{Cameras: []monocle.Camera{}}, a.opts.ConfigPath); err != nil {
				slog.Error("Failed to write gateway config", "error", err)
			}
			return
		}
		a.runPass(ctx)
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("Watcher stopped", "error", err)
	}
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

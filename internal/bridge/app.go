// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package bridge wires the bridge's components together into a single
// process container: Initialize builds every component, Start puts them
// to work, Run blocks on a shutdown signal, and Shutdown tears them down
// in a fixed order (HTTP server, then subscriptions, then diff
// coordinator, aggregator and editor RPC adapter, then discovery).
package bridge

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/climbus/ide-bridge/internal/bridgehttp"
	"github.com/climbus/ide-bridge/internal/config"
	"github.com/climbus/ide-bridge/internal/diffcoord"
	"github.com/climbus/ide-bridge/internal/discovery"
	"github.com/climbus/ide-bridge/internal/ideadapter"
	"github.com/climbus/ide-bridge/internal/ideview"
	"github.com/climbus/ide-bridge/internal/lifecycle"
	"github.com/climbus/ide-bridge/internal/sessionhub"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Options are the process-level inputs, sourced from flags/env by
// cmd/ide-bridge/main.go.
type Options struct {
	SocketPath    string // IDE_BRIDGE_SOCKET, required
	EditorPID     int    // IDE_BRIDGE_EDITOR_PID, optional
	WorkspacePath string // IDE_BRIDGE_WORKSPACE_PATH, optional (defaults to cwd)
	Debug         bool   // IDE_BRIDGE_DEBUG
	ConfigPath    string // IDE_BRIDGE_CONFIG
}

// App is the bridge's process container.
type App struct {
	mu sync.Mutex

	opts Options
	cfg  *config.Config

	lifecycleBus *lifecycle.Bus
	aggregator   *ideview.Aggregator
	editor       *ideadapter.Adapter
	coordinator  *diffcoord.Coordinator
	hub          *sessionhub.Hub
	httpServer   *bridgehttp.Server
	publisher    *discovery.Publisher
	reaper       *discovery.Reaper

	disposers []func()

	done chan struct{}
}

// New constructs an App from Options without starting anything.
func New(opts Options) *App {
	return &App{opts: opts, done: make(chan struct{})}
}

// Initialize loads configuration, dials the editor RPC socket, and wires
// the editor adapter, context aggregator, diff coordinator, and session
// hub, plus the lifecycle bus. It does not bind the HTTP port or publish
// discovery files yet — that is Start's job, once the listener's concrete
// port is known.
func (app *App) Initialize(ctx context.Context) error {
	loader := config.NewLoader()
	configPath := app.opts.ConfigPath
	if configPath == "" {
		configPath = loader.FindConfig()
	}
	cfg, err := loader.LoadWithDefaults(ctx, configPath)
	if err != nil {
		return fmt.Errorf("bridge: load config: %w", err)
	}
	app.cfg = cfg

	app.lifecycleBus = lifecycle.NewBus(200)

	debounce := config.ParseDuration(cfg.Debounce, config.DefaultDebounce)
	app.aggregator = ideview.NewAggregator(debounce)
	app.aggregator.SetTrusted(true)

	editor, err := ideadapter.Dial(ctx, app.opts.SocketPath)
	if err != nil {
		return fmt.Errorf("bridge: dial editor rpc socket: %w", err)
	}
	app.editor = editor

	app.wireIngress()

	app.coordinator = diffcoord.New(editor)

	keepaliveInterval := config.ParseDuration(cfg.KeepaliveInterval, config.DefaultKeepaliveInterval)
	keepaliveMaxMissed := cfg.KeepaliveMaxMissed
	app.hub = sessionhub.New(keepaliveInterval, keepaliveMaxMissed, app.aggregator.State)

	app.disposers = append(app.disposers, app.aggregator.OnDidChange(func() {
		if err := app.hub.BroadcastContext(context.Background()); err != nil {
			log.Printf("bridge: broadcast context: %v", err)
		}
		app.lifecycleBus.Publish("aggregator", "context changed", nil)
	}))
	app.disposers = append(app.disposers, app.coordinator.OnOutcome(func(method string, params interface{}) {
		if err := app.hub.BroadcastDiff(context.Background(), method, params); err != nil {
			log.Printf("bridge: broadcast diff outcome: %v", err)
		}
		app.lifecycleBus.Publish("diffcoord", method, params)
	}))

	return nil
}

// wireIngress subscribes the aggregator and coordinator to the editor
// adapter's fixed event vocabulary.
func (app *App) wireIngress() {
	app.disposers = append(app.disposers,
		app.editor.OnBufferEnter(func(path string, _ int) { app.aggregator.BufferEnter(path) }),
		app.editor.OnCursorMoved(func(line, col int) { app.aggregator.CursorMoved(line, col) }),
		app.editor.OnVisualChanged(func(text string) { app.aggregator.VisualChanged(text) }),
		app.editor.OnBufferClosed(func(path string) { app.aggregator.BufferClosed(path) }),
	)
}

// Start binds the HTTP listener, publishes discovery files, and begins
// stale-descriptor reaping.
func (app *App) Start(ctx context.Context) error {
	token := generateToken()

	hooks := app.hub.Hooks()
	mcpServer := mcpserver.NewMCPServer("ide-bridge", "1.0.0", mcpserver.WithHooks(hooks))

	app.httpServer = bridgehttp.New(bridgehttp.Config{
		Token: token,
		Debug: app.cfg.Debug || app.opts.Debug,
	}, mcpServer, app.hub, app.lifecycleBus, app.coordinator)

	port, err := app.httpServer.Listen(mcpServer)
	if err != nil {
		return fmt.Errorf("bridge: listen: %w", err)
	}

	go func() {
		if err := app.httpServer.Serve(); err != nil {
			log.Printf("bridge: http server error: %v", err)
		}
	}()

	workspacePath := app.opts.WorkspacePath
	if workspacePath == "" {
		if wd, err := os.Getwd(); err == nil {
			workspacePath = wd
		}
	}

	desc := discovery.PortDescriptor{
		Port:          port,
		WorkspacePath: workspacePath,
		AuthToken:     token,
	}
	if app.cfg.Editor != "" && app.cfg.Editor != config.DefaultEditor {
		desc.IdeInfo = &discovery.IdeInfo{Name: app.cfg.Editor, DisplayName: app.cfg.Editor}
	}

	pub, err := discovery.Publish(os.Getpid(), port, app.cfg.Editor, workspacePath, desc)
	if err != nil {
		log.Printf("bridge: publish discovery files: %v", err)
	}
	app.publisher = pub

	reapInterval := config.ParseDuration(app.cfg.ReapInterval, config.DefaultReapInterval)
	app.reaper = discovery.NewReaper(reapInterval)

	app.lifecycleBus.Publish("bridge", "started", map[string]int{"port": port})
	log.Printf("bridge: ready on 127.0.0.1:%d (workspace=%s)", port, workspacePath)
	return nil
}

// Run initializes, starts, and blocks until a shutdown signal or ctx
// cancellation arrives, then shuts the app down.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("bridge: received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("bridge: shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown tears components down in a fixed order: HTTP server first
// (stop accepting new work), then every subscription disposer, then the
// diff coordinator, aggregator and editor RPC adapter, then the reaper
// and the discovery files. It does not close hub sessions one by one or
// stop their keep-alive timers, and it does not close the lifecycle bus.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("bridge: shutting down...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("bridge: shutdown http server: %v", err)
		}
	}

	for _, dispose := range app.disposers {
		dispose()
	}

	if app.coordinator != nil {
		app.coordinator.Close()
	}
	if app.aggregator != nil {
		app.aggregator.Close()
	}
	if app.editor != nil {
		if err := app.editor.Close(); err != nil {
			log.Printf("bridge: close editor adapter: %v", err)
		}
	}

	if app.reaper != nil {
		app.reaper.Close()
	}
	if app.publisher != nil {
		app.publisher.Unpublish()
	}

	log.Println("bridge: shutdown complete")
	return nil
}

// listenerAddr exposes the bound HTTP address for tests and diagnostics.
func (app *App) listenerAddr() string {
	if app.httpServer == nil {
		return ""
	}
	return app.httpServer.Addr()
}

// generateToken mints the process-lifetime bearer token. A UUID is used
// because mcp-go's own session identifiers are already UUIDs, and it is
// simpler than hand-rolling a random hex encoder.
func generateToken() string {
	return uuid.New().String()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lectern/internal/analyzer"
	"lectern/internal/api"
	"lectern/internal/config"
	"lectern/internal/hub"
	"lectern/internal/pipeline"
	"lectern/internal/session"
	"lectern/internal/store"
	"lectern/internal/websocket"
)

// Application holds all wired components so startup and shutdown can walk
// them in dependency order.
type Application struct {
	config      *config.Config
	store       *store.Store
	registry    *session.Registry
	hub         *hub.Hub
	analyzer    *analyzer.Dynamic
	coordinator *pipeline.Coordinator
	apiServer   *api.Server
	httpServer  *http.Server
}

// NewApplication wires components bottom up: store, registry, hub, analyzer,
// coordinator, then the HTTP surfaces.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	resultStore, err := store.Open(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}

	registry := session.NewRegistry()
	broadcaster := hub.NewHub()

	// The dynamic wrapper lets a config reload swap the analyzer without
	// restarting in-flight sessions.
	signalAnalyzer := analyzer.NewDynamic(analyzer.ForMode(cfg.Analyzer.Mode, cfg.Analyzer.Seed))

	coordinator := pipeline.NewCoordinator(registry, signalAnalyzer, broadcaster, resultStore)

	apiServer := api.NewServer(coordinator, resultStore, broadcaster)
	wsHandler := websocket.NewHandler(registry, broadcaster, cfg.WebSocket)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:      cfg,
		store:       resultStore,
		registry:    registry,
		hub:         broadcaster,
		analyzer:    signalAnalyzer,
		coordinator: coordinator,
		apiServer:   apiServer,
		httpServer:  httpServer,
	}, nil
}

// Start brings the HTTP server up and reports early listen failures.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting lectern on %s analyzer=%s", app.httpServer.Addr, app.config.Analyzer.Mode)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("lectern started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop tears components down in reverse order: HTTP first so no new work
// arrives, then the hub, then the store.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down lectern")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	app.hub.Shutdown()

	if err := app.store.Close(); err != nil {
		log.Printf("Result store shutdown error: %v", err)
	}

	log.Printf("lectern shutdown complete")
	return nil
}

// applyReload adopts the reloadable parts of a new configuration. Listener
// settings need a restart; the analyzer swaps live.
func (app *Application) applyReload(cfg *config.Config) {
	if cfg.Analyzer != app.config.Analyzer {
		app.analyzer.Set(analyzer.ForMode(cfg.Analyzer.Mode, cfg.Analyzer.Seed))
		log.Printf("Analyzer reconfigured mode=%s", cfg.Analyzer.Mode)
	}
	app.config.Analyzer = cfg.Analyzer
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	app, err := NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *configPath != "" {
		go func() {
			if err := config.Watch(ctx, *configPath, app.applyReload); err != nil {
				log.Printf("Config watch unavailable: %v", err)
			}
		}()
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	appErrCh := make(chan error, 1)
	go func() {
		if err := app.Start(ctx); err != nil {
			appErrCh <- err
		}
	}()

	select {
	case err := <-appErrCh:
		return fmt.Errorf("application error: %w", err)
	case sig := <-signalCh:
		log.Printf("Received signal %v, shutting down gracefully", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		return app.Stop(shutdownCtx)
	}
}

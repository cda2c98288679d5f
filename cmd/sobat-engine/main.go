// Package main wires the SobatNelayan live telemetry engine: the
// ingestion pipeline, the durable history store, the retention sweeper,
// and the websocket broadcast surface.
package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Bhimonw/SobatNelayan/internal/broadcast"
	"github.com/Bhimonw/SobatNelayan/internal/config"
	"github.com/Bhimonw/SobatNelayan/internal/engine"
	"github.com/Bhimonw/SobatNelayan/internal/history"
	"github.com/Bhimonw/SobatNelayan/internal/source"
)

const Version = "1.0.0"

func main() {
	log.Printf("Starting SobatNelayan telemetry engine v%s", Version)

	// Configuration errors are the only fatal startup condition.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogFile != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		})
	}
	log.Printf("Configuration loaded, ingest mode %q", cfg.IngestMode)

	// Durable history: a missing or unreachable database degrades to a
	// disabled store; live processing continues without it.
	var hist engine.HistoryStore
	var purger history.Purger
	if cfg.DatabaseDSN == "" {
		log.Println("No database DSN configured, history disabled")
		hist, purger = history.Disabled{}, history.Disabled{}
	} else if store, err := history.Open(cfg.DatabaseDSN); err != nil {
		log.Printf("Failed to open history database, continuing without persistence: %v", err)
		hist, purger = history.Disabled{}, history.Disabled{}
	} else {
		log.Println("History store opened")
		hist, purger = store, store
	}

	var src engine.Source
	if cfg.SourceURL != "" {
		client := source.NewClient(cfg.SourceURL, cfg.SourcePath)
		log.Printf("Telemetry source: %s", client.BaseURL())
		src = client
	} else {
		log.Println("No telemetry source configured")
	}

	hub := broadcast.NewHub()
	eng := engine.New(cfg, src, hist, broadcast.NewDispatcher(hub))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()

	sweeper := history.NewSweeper(purger, cfg.RetentionHorizon)
	go sweeper.Run(ctx)

	server := newOpsServer(cfg, eng, hub, src)
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, shutting down", sig)
	case err := <-serverErr:
		log.Printf("HTTP server failed: %v", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	hub.Stop()
	log.Println("Broadcast hub stopped")

	select {
	case <-engineDone:
		log.Println("Engine stopped")
	case <-time.After(10 * time.Second):
		log.Println("Engine shutdown timed out")
	}

	log.Println("Shutdown complete")
}

// newOpsServer builds the process HTTP surface: health, metrics, and
// the two websocket subscriber endpoints.
func newOpsServer(cfg *config.Config, eng *engine.Engine, hub *broadcast.Hub, src engine.Source) *http.Server {
	startedAt := time.Now()

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		sourceConfigured := src != nil
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":           "ok",
			"version":          Version,
			"uptimeSeconds":    int(time.Since(startedAt).Seconds()),
			"ingestMode":       cfg.IngestMode,
			"devices":          eng.Store().Len(),
			"sourceConfigured": sourceConfigured,
			"historyEnabled":   cfg.DatabaseDSN != "",
			"liveClients":      hub.GroupSize(broadcast.GroupLive),
			"publicClients":    hub.GroupSize(broadcast.GroupPublic),
		})
	}).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.Handle("/ws/live", broadcast.RequireToken(cfg.JWTSecret,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hub.ServeWS(broadcast.GroupLive, w, r)
		})))
	router.HandleFunc("/ws/public", func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(broadcast.GroupPublic, w, r)
	})

	return &http.Server{
		Addr:    cfg.Addr,
		Handler: handlers.LoggingHandler(os.Stdout, router),
	}
}

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

	"github.com/WillKirkmanM/staticcache/internal/config"
	"github.com/WillKirkmanM/staticcache/internal/logging"
	"github.com/WillKirkmanM/staticcache/internal/metrics"
	"github.com/WillKirkmanM/staticcache/internal/server"
	"github.com/WillKirkmanM/staticcache/internal/tracing"
)

// main initialises and starts the static-cache server: configuration,
// tracing, metrics and the epoll-driven server are wired up here, with
// graceful shutdown on SIGINT/SIGTERM.
func main() {
	var configPath = flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal(err)
	}
	cfg := config.GetInstance()

	shutdownTracing, err := tracing.InitTracing(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SamplingRatio:  cfg.Tracing.SamplingRatio,
		Enabled:        cfg.Tracing.Enabled,
	})
	if err != nil {
		log.Fatalf("Failed to initialise tracing: %v", err)
	}
	defer shutdownTracing()

	logger := logging.NewLogger(cfg.Tracing.ServiceName)
	m := metrics.NewMetrics()

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Printf("Serving metrics on %s", addr)
			if err := http.ListenAndServe(addr, m.Handler()); err != nil {
				log.Printf("metrics server stopped: %v", err)
			}
		}()
	}

	srv, err := server.NewServer(cfg, logger, m)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Starting static-cache server on port %d", cfg.Server.Port)
		if err := srv.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Server stopped: %v", err)
		}
	}()

	<-sigChan
	log.Println("Received termination signal, shutting down gracefully...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Static-cache server stopped")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-review/pkg/simplereview/api"
	"github.com/tendant/simple-review/pkg/simplereview/cache"
	"github.com/tendant/simple-review/pkg/simplereview/config"
	"github.com/tendant/simple-review/pkg/simplereview/worker"
)

func main() {
	configFile := flag.String("config", "", "optional YAML/TOML/.env config file")
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	opts := []config.Option{}
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}
	opts = append(opts, config.WithEnv())

	serverConfig, err := config.Load(opts...)
	if err != nil {
		slog.Error("Failed to load configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	engine, err := serverConfig.BuildEngine(ctx, logger)
	if err != nil {
		slog.Error("Failed to build engine", "err", err)
		os.Exit(1)
	}

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		cache.NewCollector(engine.Cache, "simplereview"),
		worker.NewCollector(engine.Queue, "simplereview"),
	)
	server.R.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	api.Register(server.R, api.RouterConfig{
		Service:     engine.Service,
		Auth:        engine.Auth,
		Signer:      engine.Signer,
		MediaPrefix: serverConfig.MediaURLPrefix,
	})
	server.R.NotFound(api.NotFound)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           server.R,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("simple-review server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"postgres", serverConfig.UsesPostgres(),
			"signed_media", engine.Signer.IsEnabled(),
			"auth", engine.Auth != nil,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}

	// Drains queued ledger writes and notifications before the store closes.
	if err := engine.Close(); err != nil {
		slog.Error("Engine shutdown failed", "err", err)
	}
	slog.Info("Server exiting")
}

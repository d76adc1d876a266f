package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"trader_go/internal/app"

	_ "net/http/pprof" // For pprof profiling

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Diagnostics server: pprof plus prometheus metrics, localhost only.
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		slog.Info("Diagnostics server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Diagnostics server failed", slog.Any("error", err))
		}
	}()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Engine.Start(); err != nil {
		slog.Error("Engine failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	if err := bootstrap.Engine.Stop(); err != nil {
		slog.Error("Engine stop failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/haldanelabs/dlcore/internal/actor"
	"github.com/haldanelabs/dlcore/internal/config"
	"github.com/haldanelabs/dlcore/internal/container"
	"github.com/haldanelabs/dlcore/internal/logger"
)

const serviceName = "dlcore"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Server.ServiceName, cfg.Server.Environment, cfg.Server.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("environment", cfg.Server.Environment))

	c, cleanup, err := container.InitializeCoreContainer(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize container", zap.Error(err))
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Actor.Run(ctx)
	go c.Syncer.Run(ctx)
	go c.RetryProcessor.Run(ctx)

	var metricsServer *http.Server
	if cfg.Observability.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Observability.MetricsPort),
			Handler: mux,
		}
		go func() {
			log.Info("starting metrics server", zap.Int("port", cfg.Observability.MetricsPort))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("shutting down service")

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTime)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown metrics server", zap.Error(err))
		}
		shutdownCancel()
	}

	reply := make(chan error, 1)
	if err := c.Actor.Send(context.Background(), actor.ShutdownTx{Deadline: cfg.Server.ShutdownTime, Reply: reply}); err == nil {
		if err := <-reply; err != nil {
			log.Warn("actor did not drain cleanly", zap.Error(err))
		}
	}

	cancel()
	log.Info("service shutdown complete")
}

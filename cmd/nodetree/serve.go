// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/nodetree/pkg/ux"
	"github.com/AleutianAI/nodetree/services/nodetree"
	"github.com/AleutianAI/nodetree/services/nodetree/config"
	"github.com/AleutianAI/nodetree/services/nodetree/graph"
	"github.com/AleutianAI/nodetree/services/nodetree/middleware"
	"github.com/AleutianAI/nodetree/services/nodetree/telemetry"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, false, true)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger.Slog()

	shutdownTelemetry, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
		}
	}()

	metrics, err := meterMetrics()
	if err != nil {
		return err
	}
	svc, err := a.service(metrics)
	if err != nil {
		return err
	}

	if a.cfg.NodeTypes.Watch && a.cfg.NodeTypes.Path != "" {
		watcher, err := graph.NewNodeTypeWatcher(a.cfg.NodeTypes.Path, a.store.NodeTypes(), logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	if logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	}
	srv := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      newRouter(a.cfg, svc, metrics),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting nodetree server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	svc.SetReady(true)
	printBanner(a.cfg, svc)

	select {
	case err := <-serveErr:
		svc.SetReady(false)
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down nodetree server")
	svc.SetReady(false)
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newRouter builds the HTTP handler: the API under /v1, and /metrics when
// the Prometheus exporter is enabled.
func newRouter(cfg config.NodetreeConfig, svc *nodetree.Service, metrics *telemetry.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(middleware.Metrics(metrics))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimit(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst))
	v1.Use(middleware.Actor())
	nodetree.RegisterRoutes(v1, nodetree.NewHandlers(svc))
	return router
}

func printBanner(cfg config.NodetreeConfig, svc *nodetree.Service) {
	p := ux.NewPrinter(os.Stdout, ux.DetectLevel(os.Stdout))
	p.Title("nodetree " + nodetree.ServiceVersion)

	storage := cfg.Storage.Path
	if cfg.Storage.InMemory {
		storage = "in memory"
	}
	pairs := [][2]string{{"listening", "http://" + cfg.Server.Addr + "/v1/nodetree"}}
	if telemetry.MetricsHandler() != nil {
		pairs = append(pairs, [2]string{"metrics", "http://" + cfg.Server.Addr + "/metrics"})
	}
	pairs = append(pairs,
		[2]string{"storage", storage},
		[2]string{"repositories", strings.Join(svc.Ready().Repositories, ", ")},
	)
	p.KeyValues(pairs)
}

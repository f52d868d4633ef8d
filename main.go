// User Record Microservice
// Copyright (c) 2024 User Record Microservice
// Licensed under the MIT License. See LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"user-record-service/internal/adapters/driven/persistence/gomemdb"
	"user-record-service/internal/adapters/driven/persistence/memory"
	"user-record-service/internal/adapters/driven/persistence/sqlite"
	"user-record-service/internal/adapters/driving/httpapi"
	"user-record-service/internal/config"
	"user-record-service/internal/core/ports/driven"
	"user-record-service/internal/core/services"
)

// newAttributeStore builds the configured store backend. The returned close
// function releases its resources.
func newAttributeStore(cfg *config.Config) (driven.AttributeStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.NewAttributeStore(), noop, nil
	case config.BackendMemDB:
		store, err := gomemdb.NewAttributeStore()
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.Store.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		store, err := sqlite.NewAttributeStore(db)
		if err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
		return store, sqlDB.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildRouter wires store, service and HTTP handlers together
func buildRouter(cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry) (*mux.Router, func() error, error) {
	store, closeStore, err := newAttributeStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create attribute store: %w", err)
	}

	userService := services.NewUserServiceImpl(store, logger)
	handler := httpapi.NewHandler(userService, userService, cfg.Store.Backend, logger)
	return httpapi.NewRouter(handler, reg, reg), closeStore, nil
}

// run serves HTTP until ctx is cancelled, then shuts the server down
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	sugar := logger.Sugar()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, closeStore, err := buildRouter(cfg, logger, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			sugar.Warnw("failed to close attribute store", "err", err)
		}
	}()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sugar.Infow("starting user record service", "addr", server.Addr, "store", cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sugar.Infow("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// realMain runs the service until ctx is cancelled and returns the process
// exit code. Deferred cleanups run before main exits.
func realMain(ctx context.Context, configFile string) int {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		log.Printf("Failed to create logger: %v", err)
		return 1
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Sugar().Errorw("service stopped", "err", err)
		return 1
	}
	return 0
}

// main initializes and starts the user record microservice
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	code := realMain(ctx, os.Getenv("CONFIG_FILE"))
	stop()
	os.Exit(code)
}

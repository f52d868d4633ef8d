// User Record Microservice - Test Suite
// Copyright (c) 2024 User Record Microservice
// Licensed under the MIT License. See LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"user-record-service/internal/config"
)

var backends = []string{config.BackendMemory, config.BackendMemDB, config.BackendSQLite}

// setupTestConfig returns a configuration for the given store backend.
// SQLite databases are named after the test so they stay private to it.
func setupTestConfig(t *testing.T, backend string) *config.Config {
	cfg := config.Default()
	cfg.Port = "0"
	cfg.ShutdownTimeout = time.Second
	cfg.Store.Backend = backend
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	cfg.Store.SQLiteDSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	return cfg
}

// setupTestRouter wires a full router on top of the given backend
func setupTestRouter(t *testing.T, backend string) *mux.Router {
	cfg := setupTestConfig(t, backend)
	router, closeStore, err := buildRouter(cfg, zaptest.NewLogger(t), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("Failed to build router: %v", err)
	}
	t.Cleanup(func() {
		if err := closeStore(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return router
}

func TestNewAttributeStore(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			store, closeStore, err := newAttributeStore(setupTestConfig(t, backend))
			if err != nil {
				t.Fatalf("Failed to create %s store: %v", backend, err)
			}
			defer closeStore()

			attr, err := store.Put(context.Background(), "username", "alice", "")
			if err != nil {
				t.Fatalf("Failed to put attribute: %v", err)
			}
			if attr.GroupID == "" {
				t.Error("Expected a generated group id")
			}
		})
	}

	t.Run("unknown backend", func(t *testing.T) {
		cfg := setupTestConfig(t, "redis")
		if _, _, err := newAttributeStore(cfg); err == nil {
			t.Error("Expected an error for an unknown backend")
		}
	})
}

func TestRun_Shutdown(t *testing.T) {
	cfg := setupTestConfig(t, config.BackendMemory)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg, zaptest.NewLogger(t))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Server did not shut down")
	}
}

func TestRealMain_ExitCode(t *testing.T) {
	t.Run("missing config file", func(t *testing.T) {
		code := realMain(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
		if code != 1 {
			t.Errorf("Expected exit code 1, got %d", code)
		}
	})

	t.Run("clean shutdown", func(t *testing.T) {
		t.Setenv("PORT", "0")
		t.Setenv("STORE_BACKEND", config.BackendMemory)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if code := realMain(ctx, ""); code != 0 {
			t.Errorf("Expected exit code 0, got %d", code)
		}
	})

	t.Run("port in use", func(t *testing.T) {
		ln, err := net.Listen("tcp", ":0")
		if err != nil {
			t.Fatalf("Failed to listen: %v", err)
		}
		defer ln.Close()

		_, port, _ := net.SplitHostPort(ln.Addr().String())
		t.Setenv("PORT", port)
		t.Setenv("STORE_BACKEND", config.BackendMemory)
		if code := realMain(context.Background(), ""); code != 1 {
			t.Errorf("Expected exit code 1, got %d", code)
		}
	})
}

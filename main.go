// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/tallyhall/auth"
	"github.com/danielhkuo/tallyhall/cliparse"
	"github.com/danielhkuo/tallyhall/db"
	"github.com/danielhkuo/tallyhall/middleware"
	"github.com/danielhkuo/tallyhall/notify"
	"github.com/danielhkuo/tallyhall/router"
	"github.com/danielhkuo/tallyhall/seed"
	"github.com/danielhkuo/tallyhall/session"
	"github.com/danielhkuo/tallyhall/store"
	"github.com/danielhkuo/tallyhall/telemetry"
)

const (
	serviceName     = "tallyhall"
	seedActor       = "seed"
	hubBuffer       = 64
	shutdownTimeout = 10 * time.Second
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	issuer := auth.NewIssuer(cfg.TokenSecret, cfg.TokenTTL)

	// Token mode: print an operator token and exit
	if cfg.IssueOperatorToken != "" {
		token, err := issuer.IssueOperatorToken(cfg.IssueOperatorToken)
		if err != nil {
			slog.Error("failed to issue operator token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		slog.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// Connect to the database
	dbConn, err := sql.Open(cfg.DriverName(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()
	if cfg.DriverName() == "sqlite" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY
		dbConn.SetMaxOpenConns(1)
	}

	// Verify connection
	if err := dbConn.PingContext(ctx); err != nil {
		slog.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	// Create schema (tables)
	if err := db.CreateSchema(dbConn); err != nil {
		slog.Error("schema creation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database schema ready", "driver", cfg.DriverName())

	hub := notify.NewHub(hubBuffer)
	defer hub.Close()
	mgr := session.NewManager(store.NewSQLStore(dbConn), session.WithNotifier(hub))

	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			slog.Error("seed load failed", "error", err)
			os.Exit(1)
		}
		if err := seed.Apply(ctx, mgr, f, seedActor); err != nil {
			slog.Error("seed apply failed", "error", err)
			os.Exit(1)
		}
	}

	// Create server
	server := http.Server{
		Handler: middleware.CORS(router.NewRouter(mgr, issuer, hub)),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	go func() {
		// Wait for Ctrl-C signal
		<-ctx.Done()
		// Websocket streams end when the hub closes
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("graceful shutdown failed", "error", err)
			server.Close()
		}
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}

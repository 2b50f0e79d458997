package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dexarb/internal/api"
	"dexarb/internal/config"
	"dexarb/internal/db"
	"dexarb/internal/engine"
	"dexarb/internal/logging"
	"dexarb/internal/notifications"
	"dexarb/internal/repository"
	"dexarb/internal/scheduler"
)

const banner = `
╔══════════════════════════════════════╗
║      DexArb Signal Engine v0.3       ║
║                                      ║
╚══════════════════════════════════════╝
`

const apiPort = 3001

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	cfg.Print()

	// Logging
	logger, err := logging.New(cfg.LogFile, logging.Info)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	// Database
	fmt.Printf("\n[DB] Connecting to %s:%d/%s ...\n", cfg.DBHost, cfg.DBPort, cfg.DBName)
	pool, err := db.Connect(cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Connection failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		pool.Close()
		fmt.Println("[DB] Connection pool closed")
	}()

	if err := db.TestConnection(pool); err != nil {
		fmt.Fprintf(os.Stderr, "[DB] Test query failed: %v\n", err)
		os.Exit(1)
	}

	// Repos
	tradeRepo := repository.NewTradeRepo(pool)
	gapRepo := repository.NewGapRepo(pool)

	// Notifications
	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName)

	// Graceful shutdown context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Engine
	svc := engine.NewService()
	if err := svc.Start(ctx, cfg, tradeRepo, gapRepo, notify, logger); err != nil {
		fmt.Fprintf(os.Stderr, "[ENGINE] Start failed: %v\n", err)
		os.Exit(1)
	}

	// 2. API server
	srv := api.NewServer(pool, svc, apiPort, cfg.APIKey, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "[API] Server error: %v\n", err)
			os.Exit(1)
		}
	}()

	// 3. Scheduler (status reports + daily summaries)
	sched := scheduler.New(ctx, svc, tradeRepo, notify, logger)
	if err := sched.RegisterAll(); err != nil {
		fmt.Fprintf(os.Stderr, "[SCHED] Register failed: %v\n", err)
		os.Exit(1)
	}
	sched.Start()

	fmt.Println("\nAll services started successfully")

	// Wait for shutdown signal
	<-ctx.Done()
	fmt.Println("\nShutting down gracefully...")

	sched.Stop()
	svc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "[API] Shutdown error: %v\n", err)
	}
	fmt.Println("[API] Server closed")
	fmt.Println("Shutdown complete")
}

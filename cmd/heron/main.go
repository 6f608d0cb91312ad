// Heron - Claim fraud scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.insurance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opensource-insurance/heron/internal/api"
	"github.com/opensource-insurance/heron/internal/auth"
	"github.com/opensource-insurance/heron/internal/bus"
	"github.com/opensource-insurance/heron/internal/cache"
	"github.com/opensource-insurance/heron/internal/domain"
	"github.com/opensource-insurance/heron/internal/extraction"
	"github.com/opensource-insurance/heron/internal/model"
	"github.com/opensource-insurance/heron/internal/repository"
	"github.com/opensource-insurance/heron/internal/rules"
	"github.com/opensource-insurance/heron/internal/scoring"
	"github.com/opensource-insurance/heron/internal/velocity"
	"github.com/opensource-insurance/heron/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	cfg.Auth.JWTSecret = os.Getenv("HERON_JWT_SECRET")

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Auth Service
	authSvc := auth.NewService(cfg.Auth, repo)
	slog.Info("auth service initialized", "issuer", cfg.Auth.Issuer)

	// Initialize Scoring Engine and Model Gateway
	scorer := scoring.NewEngine(rand.NewSource(time.Now().UnixNano()))
	gateway := model.NewGateway(scorer, repo)
	if err := gateway.LoadActive(ctx); err != nil {
		slog.Error("failed to load model artifacts", "error", err)
		os.Exit(1)
	}
	slog.Info("model gateway initialized",
		"fraud_version", gateway.ActiveVersion(domain.ModelFraud),
		"reserve_version", gateway.ActiveVersion(domain.ModelReserve),
	)

	// Initialize Flag Rule Engine
	flags, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	if err := loadFlagRules(ctx, repo, flags); err != nil {
		slog.Error("failed to load flag rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", flags.RulesCount())

	// Initialize Filing Velocity Service
	filing := velocity.NewService(repo, cacheImpl)
	slog.Info("filing velocity service initialized")

	// Initialize Field Extractor
	extractor := extraction.New(rand.NewSource(time.Now().UnixNano()))

	// Initialize Alert Notifier
	notifier := worker.NewNotifier(busImpl, repo)
	if err := notifier.Start(); err != nil {
		slog.Error("failed to start alert notifier", "error", err)
		os.Exit(1)
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, authSvc, gateway, flags, filing, extractor, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop the notifier first so in-flight alerts drain
	if err := notifier.Stop(); err != nil {
		slog.Error("failed to stop alert notifier", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// loadFlagRules loads stored flag rules into the engine. An empty
// database is seeded with the builtin rules so fresh installs have a
// sensible review net from the first claim.
func loadFlagRules(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	stored, err := repo.ListFlagRules(ctx)
	if err != nil {
		slog.Warn("failed to list flag rules from database", "error", err)
		return nil // Start empty - rules can be added via API
	}

	if len(stored) == 0 {
		slog.Info("no flag rules in database - seeding builtin rules")
		for _, rule := range rules.BuiltinRules() {
			if err := repo.SaveFlagRule(ctx, rule); err != nil {
				return err
			}
			stored = append(stored, rule)
		}
	}

	slog.Info("loading flag rules from database", "count", len(stored))
	return engine.LoadRules(stored)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 HERON                    ║")
	fmt.Println("  ║       Claim Fraud Scoring Engine          ║")
	fmt.Println("  ║       Eyes on every claim.                ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /auth/register          - Create an account")
	fmt.Println("    POST /auth/login             - Obtain a bearer token")
	fmt.Println("    POST /claims                 - Ingest and score a claim")
	fmt.Println("    GET  /claims                 - List claims in scope")
	fmt.Println("    GET  /claims/{id}            - Get a claim")
	fmt.Println("    PATCH /claims/{id}           - Update claim status")
	fmt.Println("    POST /claims/{id}/rescore    - Re-run scoring")
	fmt.Println("    GET  /predictions/{claimID}  - Latest prediction")
	fmt.Println("    GET  /report                 - Scoped claim aggregates")
	fmt.Println("    POST /models/train           - Train a model (admin)")
	fmt.Println("    GET  /models                 - List model artifacts (admin)")
	fmt.Println("    GET  /rules                  - List flag rules (admin)")
	fmt.Println("    POST /rules                  - Create a flag rule (admin)")
	fmt.Println("    POST /rules/reload           - Hot-reload flag rules (admin)")
	fmt.Println("    GET  /health                 - Health check")
	fmt.Println()
}

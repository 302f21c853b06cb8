package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fiszcz/OLX-flats-notificator/app/api"
	"github.com/Fiszcz/OLX-flats-notificator/app/cache"
	"github.com/Fiszcz/OLX-flats-notificator/app/cfg"
	"github.com/Fiszcz/OLX-flats-notificator/app/database"
	"github.com/Fiszcz/OLX-flats-notificator/app/subscription"
	"github.com/Fiszcz/OLX-flats-notificator/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting flats notificator", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBDriver, appCfg.DBDSN)
	if err != nil {
		slog.Error("Failed to connect to database", "driver", appCfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "driver", appCfg.DBDriver, "schema_version", version, "dirty", dirty)

	subRepo := database.NewSubscriptionRepository(db)
	listingRepo := database.NewListingRepository(db)
	outboxRepo := database.NewOutboxRepository(db)
	seenRepo := database.NewSeenRepository(db)

	configCache := subscription.NewConfigCache(appCfg.SubscriptionsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load subscription configurations", "dir", appCfg.SubscriptionsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Subscriptions loaded", "total", configCache.GetConfigCount(), "enabled", len(configCache.GetEnabledConfigs()))

	d := deps{
		appCfg:      appCfg,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		seenRepo:    seenRepo,
		listingRepo: listingRepo,
		outboxRepo:  outboxRepo,
	}

	var cacheHealth api.HealthChecker
	if appCfg.RedisAddr != "" {
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		commuteCache, err := cache.NewCache(connectCtx, appCfg.RedisAddr)
		cancel()
		if err != nil {
			slog.Warn("Commute cache disabled", "addr", appCfg.RedisAddr, "error", err)
		} else {
			defer commuteCache.Close()
			d.commuteCache = commuteCache
			cacheHealth = commuteCache
		}
	}

	if !appCfg.CommuteEnabled() {
		slog.Warn("Commute checks disabled (MAPS_API_KEY not set)")
	}

	pipelines, err := buildRegistry(configCache.GetEnabledConfigs(), d)
	if err != nil {
		slog.Error("Failed to build pipelines", "error", err)
		os.Exit(1)
	}

	scheduler := tasks.NewScheduler(configCache, subRepo, pipelines.lookup, appCfg.SchedulerTick(), appCfg.WorkerCount)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(configCache, subRepo, listingRepo, outboxRepo, scheduler, cacheHealth)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "port", appCfg.Port, "api_enabled", appCfg.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

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

	"github.com/Kanet1105/linkdrive/app/api"
	"github.com/Kanet1105/linkdrive/app/cfg"
	"github.com/Kanet1105/linkdrive/app/config"
	"github.com/Kanet1105/linkdrive/app/database"
	"github.com/Kanet1105/linkdrive/app/digest"
	"github.com/Kanet1105/linkdrive/app/feed"
	"github.com/Kanet1105/linkdrive/app/mail"
	"github.com/Kanet1105/linkdrive/app/scheduler"
	"github.com/Kanet1105/linkdrive/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting linkdrive", "version", appCfg.Version)

	digestConfig, err := config.Load(appCfg.ConfigFile, appCfg.SMTPSecret)
	if err != nil {
		slog.Error("Failed to load configuration", "path", appCfg.ConfigFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded",
		"recipient", digestConfig.Digest.Recipient,
		"schedule", digestConfig.Schedule.String(),
		"keywords", digestConfig.Keywords.Len(),
		"sources", len(digestConfig.Sources))

	store, err := newDeliveryStore(appCfg, digestConfig)
	if err != nil {
		slog.Error("Failed to initialize delivery store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	httpClient := &http.Client{Timeout: 60 * time.Second}

	fetcher := feed.NewFetcher(httpClient, digestConfig.Sources, digestConfig.Settings, appCfg.UserAgent)
	builder := digest.NewBuilder(digestConfig.Digest.Recipient)
	mailer := mail.NewMailer(mail.Config{
		Host:    digestConfig.SMTP.Host,
		Port:    digestConfig.SMTP.Port,
		From:    digestConfig.SMTP.From,
		Account: digestConfig.SMTP.Account,
		Secret:  digestConfig.SMTP.Secret,
		Timeout: digestConfig.Settings.GetTimeout(),
	})

	digestScheduler := scheduler.NewScheduler(fetcher, mailer, store,
		builder, digestConfig.Schedule, digestConfig.Keywords, digestConfig.Digest.Recipient)
	digestScheduler.Start()
	defer digestScheduler.Stop()

	runner := tasks.NewRunner(time.Local)
	if err := runner.AddDaily("03:30", func() tasks.TaskInterface {
		return tasks.NewPruneDeliveriesTask(store, digestConfig.Settings.GetRetention())
	}); err != nil {
		slog.Error("Failed to schedule maintenance tasks", "error", err)
		os.Exit(1)
	}
	runner.Start()
	defer runner.Stop()

	apiHandler := api.NewHandler(store, digestScheduler, appCfg.Version)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler, task runner and store are stopped via defer
	slog.Info("Shutdown complete")
}

// newDeliveryStore selects the delivery record backend: Redis when an
// address is configured, an embedded SQLite database otherwise.
func newDeliveryStore(appCfg *cfg.Cfg, digestConfig *config.Config) (database.DeliveryStore, error) {
	if appCfg.RedisAddr != "" {
		store, err := database.NewRedisDeliveryStore(appCfg.RedisAddr, digestConfig.Settings.GetRetention())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		slog.Info("Using Redis delivery store", "addr", appCfg.RedisAddr)
		return store, nil
	}

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	return database.NewDeliveryRepository(db), nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nludevops/internal/config"
	"nludevops/internal/db"
	"nludevops/internal/httpapi"
	"nludevops/internal/luis"
	"nludevops/internal/mqtt"
	"nludevops/internal/runs"
)

func main() {
	settingsPath := flag.String("service-settings", os.Getenv("NLU_SERVICE_SETTINGS"), "path to a JSON or YAML settings file")
	flag.Parse()

	cfg, err := config.Load(config.New(), *settingsPath)
	if err != nil {
		slog.Error("load config failed", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := cfg.LUISSettings()
	mapper, err := luis.NewTypeMapper(settings.PrebuiltEntityTypes)
	if err != nil {
		logger.Error("init entity type mapping failed", "error", err)
		os.Exit(1)
	}

	deps := httpapi.Deps{
		Mapper:   mapper,
		Registry: runs.NewRegistry(cfg.RunsTTL()),
		Logger:   logger,
	}

	var store *db.Store
	if cfg.DBDSN != "" {
		store, err = db.New(ctx, cfg.DBDSN)
		if err != nil {
			logger.Error("connect db failed", "error", err)
			os.Exit(1)
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			logger.Error("migrate db failed", "error", err)
			os.Exit(1)
		}
		deps.Store = store
		deps.History = store
	}

	if err := cfg.RequireLUIS(); err != nil {
		logger.Warn("prediction endpoint disabled, only /v1/normalize is served", "reason", err)
	} else {
		client := luis.NewClient(settings, cfg.LUISTimeout())
		tester, err := luis.NewTestClient(settings, client, logger)
		if err != nil {
			logger.Error("init test client failed", "error", err)
			os.Exit(1)
		}
		deps.Tester = tester

		var runStore runs.RunStore
		if store != nil {
			runStore = store
		}
		var publisher runs.OutcomePublisher
		if cfg.MQTT.BrokerURL != "" {
			hub := mqtt.NewHub(mqtt.HubConfig{
				BrokerURL:   cfg.MQTT.BrokerURL,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				TestTimeout: cfg.LUISTimeout(),
			}, tester, logger)
			if err := hub.Start(ctx); err != nil {
				logger.Error("start mqtt hub failed", "error", err)
				os.Exit(1)
			}
			publisher = hub
			logger.Info("mqtt hub started", "broker", cfg.MQTT.BrokerURL, "topic_prefix", cfg.MQTT.TopicPrefix)
		}
		deps.Runner = runs.New(tester, deps.Registry, runStore, publisher, logger)
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("nlu server started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
}

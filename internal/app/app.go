// Package app wires configuration to the coordinator, its infrastructure
// adapters and the HTTP control surface, and owns process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"exportsweep/internal/config"
	"exportsweep/internal/coordinator"
	"exportsweep/internal/infrastructure/storage"
	"exportsweep/internal/infrastructure/telegram"
	"exportsweep/internal/infrastructure/watchdog"
	"exportsweep/internal/infrastructure/webhook"
	"exportsweep/internal/logging"
	"exportsweep/internal/ports"
	"exportsweep/internal/worklist"
)

// Application wires configs to the run coordinator and lifecycle
// orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	runner coordinator.Runner
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(os.Stdout, cfg.Logging.Level)
	}

	registry := worklist.NewRegistry()
	for _, profile := range cfg.Profiles {
		registry.Register(worklist.NewSelectorScanner(profile.Name, profile.ItemContainer, profile.ItemTitle))
	}

	runner := newSessionRunner(cfg, registry, baseLogger.With("component", "runner"))

	return &Application{cfg: cfg, logger: baseLogger, runner: runner}
}

// Run starts the coordinator, the stall watchdog and the HTTP control
// surface, then blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	coord, history, cleanup, err := a.buildCoordinator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := coord.StartWatchdog(ctx); err != nil {
		return fmt.Errorf("start watchdog: %w", err)
	}

	server := coordinator.NewServer(coord, history, a.logger.With("component", "http"))
	httpServer := &http.Server{
		Addr:              a.cfg.Coordinator.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("control surface listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		coord.Shutdown(context.Background())
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	coord.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// RunOnce executes a single foreground export run against one target and
// returns when it finishes. Used by the CLI's immediate mode.
func (a *Application) RunOnce(ctx context.Context, targetID string) error {
	coord, _, cleanup, err := a.buildCoordinator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	events, unsubscribe := coord.Subscribe()
	defer unsubscribe()

	runID, err := coord.Start(targetID, false)
	if err != nil {
		return err
	}
	a.logger.Info("run started", "target", targetID, "run_id", runID)

	for {
		select {
		case <-ctx.Done():
			_ = coord.Stop(targetID)
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Type == coordinator.EventComplete && ev.Complete != nil && ev.Complete.RunID == runID {
				if ev.Complete.Error != "" {
					return fmt.Errorf("run %s ended in %s: %s", runID, ev.Complete.State, ev.Complete.Error)
				}
				a.logger.Info("run finished", "run_id", runID, "state", ev.Complete.State,
					"processed", ev.Complete.Stats.FilesProcessed,
					"errored", ev.Complete.Stats.FilesErrored,
					"skipped", ev.Complete.Stats.FilesSkipped)
				return nil
			}
		}
	}
}

func (a *Application) buildCoordinator(ctx context.Context) (*coordinator.Coordinator, ports.RunRepository, func(), error) {
	cleanup := func() {}

	var notifiers []ports.Notifier
	if a.cfg.Notifications.Telegram.BotToken != "" && a.cfg.Notifications.Telegram.ChatID != "" {
		notifiers = append(notifiers, telegram.NewNotifier(
			a.cfg.Notifications.Telegram.BotToken, a.cfg.Notifications.Telegram.ChatID))
	}

	var events ports.EventSink
	if a.cfg.Notifications.Webhook.Endpoint != "" {
		events = webhook.NewSink(a.cfg.Notifications.Webhook)
	}

	var history ports.RunRepository
	if a.cfg.Database.DSN != "" {
		db, err := storage.Open(ctx, a.cfg.Database.DSN)
		if err != nil {
			return nil, nil, cleanup, fmt.Errorf("run history store: %w", err)
		}
		history = storage.NewPostgresRepository(db)
		cleanup = func() { _ = db.Close() }
	}

	coord := coordinator.New(coordinator.Options{
		Runner:      a.runner,
		Notifiers:   notifiers,
		Events:      events,
		History:     history,
		Watchdog:    watchdog.NewTicker(a.cfg.Coordinator.WatchdogInterval()),
		NotifyEvery: a.cfg.Coordinator.NotifyEvery,
		StallAfter:  a.cfg.Coordinator.StallAfter(),
		Logger:      a.logger.With("component", "coordinator"),
	})

	return coord, history, cleanup, nil
}

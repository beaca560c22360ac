package app

import (
	"context"
	"fmt"
	"log/slog"

	"exportsweep/internal/config"
	"exportsweep/internal/coordinator"
	"exportsweep/internal/domain"
	"exportsweep/internal/infrastructure/playwrightdom"
	"exportsweep/internal/workflow"
	"exportsweep/internal/worklist"
)

// sessionRunner executes one export run inside a fresh browser session.
// Every run gets its own browser: a crashed or wedged session from a
// previous run can never leak into the next one.
type sessionRunner struct {
	cfg      config.Config
	registry *worklist.Registry
	logger   *slog.Logger
}

var _ coordinator.Runner = (*sessionRunner)(nil)

func newSessionRunner(cfg config.Config, registry *worklist.Registry, logger *slog.Logger) *sessionRunner {
	return &sessionRunner{cfg: cfg, registry: registry, logger: logger}
}

// Run launches a browser, drives the workflow controller to completion and
// tears the browser down. Foreground runs always get a visible window;
// background runs follow the configured headless setting.
func (r *sessionRunner) Run(ctx context.Context, req coordinator.RunRequest) (domain.RunStats, domain.RunState, error) {
	profile := r.cfg.ActiveProfile()

	scanner, err := r.registry.Resolve(profile.Name)
	if err != nil {
		return domain.RunStats{}, domain.StateFatalError, err
	}

	headless := req.Background && r.cfg.Browser.Headless
	session, err := playwrightdom.NewSession(r.cfg.Browser, headless)
	if err != nil {
		return domain.RunStats{}, domain.StateFatalError, fmt.Errorf("browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.logger.Warn("cannot close browser session", "run_id", req.RunID, "error", err)
		}
	}()

	controller := workflow.New(workflow.Options{
		Page:       session.Dom(),
		Scanner:    scanner,
		Profile:    profile,
		Timings:    workflow.TimingsFromConfig(r.cfg.Timings),
		ShouldStop: req.ShouldStop,
		OnProgress: req.OnProgress,
		RunID:      req.RunID,
		Logger:     r.logger.With("component", "workflow", "target", req.TargetID),
	})

	return controller.Run(ctx)
}

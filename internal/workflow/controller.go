// Package workflow implements the per-item state machine and the outer run
// loop: scan the worklist, pick the next unprocessed item, export it, delete
// it, repeat until the list is empty or the run is stopped. The document is
// re-read fresh every iteration; nothing external to one iteration holds a
// live handle.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"exportsweep/internal/config"
	"exportsweep/internal/dom"
	"exportsweep/internal/domain"
	"exportsweep/internal/interact"
	"exportsweep/internal/locator"
	"exportsweep/internal/wait"
	"exportsweep/internal/worklist"
)

// Options wires one controller. All per-run state lives in the run context;
// the controller itself is safe to reuse for sequential runs.
type Options struct {
	Page    dom.Page
	Scanner worklist.Scanner
	Profile config.SelectorProfile
	Timings Timings

	// ShouldStop is the externally owned stop signal, polled once per
	// outer-loop iteration. The in-flight item always finishes first.
	ShouldStop func() bool

	// OnProgress receives an event after every per-item completion.
	OnProgress func(domain.ProgressEvent)

	RunID  string
	Logger *slog.Logger
}

// Controller walks the worklist sequentially. One logical worker per run:
// step N+1 never begins before step N's bounded wait resolves.
type Controller struct {
	page       dom.Page
	scanner    worklist.Scanner
	profile    config.SelectorProfile
	steps      *locator.Steps
	timings    Timings
	shouldStop func() bool
	onProgress func(domain.ProgressEvent)
	runID      string
	logger     *slog.Logger
}

// New constructs a controller.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timings := opts.Timings
	if timings.PollInterval <= 0 {
		timings = DefaultTimings()
	}
	return &Controller{
		page:       opts.Page,
		scanner:    opts.Scanner,
		profile:    opts.Profile,
		steps:      locator.NewSteps(opts.Page, opts.Profile, timings.PollInterval, logger.With("component", "locator")),
		timings:    timings,
		shouldStop: opts.ShouldStop,
		onProgress: opts.OnProgress,
		runID:      opts.RunID,
		logger:     logger,
	}
}

// runContext is the explicit per-run state: counters, the processed set,
// and the consecutive-error tally. Constructed fresh for every run.
type runContext struct {
	stats       domain.RunStats
	processed   domain.ProcessedSet
	consecutive int
	lastErr     error
	emptiesSeen int
}

// Run executes one complete pass until the worklist is exhausted, the stop
// signal is observed, or the consecutive-error ceiling is hit. The returned
// stats are a final snapshot; the error is non-nil only for fatal aborts.
func (c *Controller) Run(ctx context.Context) (domain.RunStats, domain.RunState, error) {
	rc := &runContext{
		stats:     domain.RunStats{StartTime: time.Now()},
		processed: domain.NewProcessedSet(),
	}

	c.logger.Info("run started", "run_id", c.runID)

	state := domain.StateRunning
	var runErr error

	for state == domain.StateRunning {
		if ctx.Err() != nil || (c.shouldStop != nil && c.shouldStop()) {
			c.logger.Info("stop signal observed", "run_id", c.runID)
			state = domain.StateStopped
			break
		}

		if rc.consecutive >= c.timings.MaxConsecutiveErrors {
			runErr = &domain.FatalError{Consecutive: rc.consecutive, Last: rc.lastErr}
			c.logger.Error("consecutive-error ceiling reached", "run_id", c.runID, "error", runErr)
			state = domain.StateFatalError
			break
		}

		items, err := c.scanWorklist(ctx)
		if err != nil {
			if ctx.Err() != nil {
				state = domain.StateStopped
				break
			}
			runErr = fmt.Errorf("scan worklist: %w", err)
			state = domain.StateFatalError
			break
		}

		next := c.pickNext(rc, items)
		if next == nil {
			c.logger.Info("no unprocessed items remain", "run_id", c.runID,
				"processed", rc.stats.FilesProcessed, "errored", rc.stats.FilesErrored)
			state = domain.StateCompleted
			break
		}

		itemErr := c.processItem(ctx, *next)
		if ctx.Err() != nil {
			state = domain.StateStopped
			break
		}

		// Failed items are still marked processed: forward progress over
		// completeness, no retry within the same run.
		rc.processed.Add(next.Title)
		if itemErr != nil {
			rc.stats.FilesErrored++
			rc.consecutive++
			rc.lastErr = itemErr
			c.logger.Warn("item failed", "run_id", c.runID, "title", next.Title, "error", itemErr)
			c.resetUIBestEffort(ctx)
			c.emit(rc, next.Title, true)
			continue
		}

		rc.stats.FilesProcessed++
		rc.consecutive = 0
		c.logger.Info("item exported and deleted", "run_id", c.runID, "title", next.Title)
		c.emit(rc, next.Title, false)
	}

	rc.stats.EndTime = time.Now()
	return rc.stats, state, runErr
}

// scanWorklist waits (bounded) for candidate containers and scans them. A
// scan wait that times out means the page is simply empty: graceful
// completion, not an error.
func (c *Controller) scanWorklist(ctx context.Context) ([]worklist.Item, error) {
	err := wait.ForCondition(ctx, "worklist containers", c.timings.ScanTimeout, c.timings.PollInterval,
		func(ctx context.Context) (bool, error) {
			els, err := c.page.Query(ctx, c.profile.ItemContainer)
			if err != nil {
				return false, err
			}
			return len(els) > 0, nil
		})
	if err != nil {
		var timeout *domain.TimeoutError
		if errors.As(err, &timeout) {
			return nil, nil
		}
		return nil, err
	}

	return c.scanner.Scan(ctx, c.page)
}

// pickNext returns the first item in document order that has not been
// handled this run. Empty-titled containers are indistinguishable and never
// selected; they surface once in the skipped counter.
func (c *Controller) pickNext(rc *runContext, items []worklist.Item) *worklist.Item {
	empties := 0
	var next *worklist.Item
	for i := range items {
		if items[i].Title == "" {
			empties++
			continue
		}
		if next == nil && !rc.processed.Has(items[i].Title) {
			next = &items[i]
		}
	}
	if empties > rc.emptiesSeen {
		rc.stats.FilesSkipped += empties - rc.emptiesSeen
		rc.emptiesSeen = empties
	}
	return next
}

// processItem drives the per-item sequence: select, export, await download,
// delete, await removal. Any error is handled once at this boundary by the
// caller.
func (c *Controller) processItem(ctx context.Context, item worklist.Item) error {
	c.logger.Debug("processing item", "run_id", c.runID, "title", item.Title)
	click := interact.ClickOptions{Settle: c.timings.SettleDelay, Highlight: true}

	// Select the item so its detail view loads.
	if err := interact.Click(ctx, item.Node, click); err != nil {
		return fmt.Errorf("select item: %w", err)
	}
	share, err := c.steps.ShareControl(ctx, c.timings.StepTimeout)
	if err != nil {
		return err
	}

	// Share affordance opens the popover holding the export options.
	if err := interact.Click(ctx, share, click); err != nil {
		return fmt.Errorf("open share popover: %w", err)
	}
	popover, err := wait.ForElement(ctx, c.page, c.profile.Popover, c.timings.PopoverTimeout, c.timings.PollInterval)
	if err != nil {
		return fmt.Errorf("share popover: %w", err)
	}
	option, err := c.steps.AudioExportOption(ctx, popover, c.timings.StepTimeout)
	if err != nil {
		return err
	}

	if err := interact.Click(ctx, option, click); err != nil {
		return fmt.Errorf("choose audio export: %w", err)
	}
	format, err := c.steps.FormatOption(ctx, c.timings.StepTimeout)
	if err != nil {
		return err
	}

	if err := interact.Click(ctx, format, click); err != nil {
		return fmt.Errorf("choose format: %w", err)
	}
	trigger, err := c.steps.ExportTrigger(ctx, c.timings.StepTimeout)
	if err != nil {
		return err
	}

	// Arm the passive observer before triggering, then await the terminal
	// download signal: an observed failure, or the ceiling with none.
	watch, err := c.page.WatchDownloads(ctx)
	if err != nil {
		return fmt.Errorf("arm download watch: %w", err)
	}
	if err := interact.Click(ctx, trigger, click); err != nil {
		watch.Close()
		return fmt.Errorf("trigger export: %w", err)
	}
	err = c.awaitDownload(ctx, watch)
	watch.Close()
	if err != nil {
		return err
	}

	if err := c.resetUI(ctx); err != nil {
		return fmt.Errorf("reset ui: %w", err)
	}

	// Delete via the item's context menu.
	menu, err := interact.OpenContextMenu(ctx, c.page, item.Node, interact.MenuOptions{
		MenuSelector:  c.profile.ContextMenu,
		Attempts:      c.timings.MenuAttempts,
		AppearTimeout: c.timings.MenuAppearTimeout,
		Backoff:       c.timings.MenuBackoff,
		Interval:      c.timings.PollInterval,
		Logger:        c.logger,
	})
	if err != nil {
		return err
	}
	deleteEntry, err := c.steps.DeleteMenuEntry(ctx, menu, c.timings.DeleteMenuWiden, c.timings.DeleteMenuCeiling)
	if err != nil {
		return err
	}

	if err := c.awaitRemoval(ctx, item, deleteEntry, click); err != nil {
		return err
	}

	if err := c.resetUI(ctx); err != nil {
		return fmt.Errorf("reset ui after delete: %w", err)
	}
	return nil
}

// awaitDownload polls the observer until the ceiling. No observed failure
// is treated as success; there is no positive completion signal available.
func (c *Controller) awaitDownload(ctx context.Context, watch dom.DownloadWatch) error {
	deadline := time.Now().Add(c.timings.DownloadCeiling)
	for {
		if watch.Failed() {
			return &domain.DownloadError{Reason: watch.Reason()}
		}
		if time.Now().After(deadline) {
			return nil
		}
		if err := wait.Delay(ctx, c.timings.PollInterval); err != nil {
			return err
		}
	}
}

// awaitRemoval clicks the delete entry, then waits for the item's container
// to detach or the container count to drop below its pre-delete snapshot.
// On timeout the container is force-removed from the in-memory view so the
// outer loop cannot re-select it; the export already succeeded, so this is
// a soft failure only.
func (c *Controller) awaitRemoval(ctx context.Context, item worklist.Item, deleteEntry dom.Element, click interact.ClickOptions) error {
	beforeEls, err := c.page.Query(ctx, c.profile.ItemContainer)
	if err != nil {
		return fmt.Errorf("snapshot container count: %w", err)
	}
	before := len(beforeEls)

	if err := interact.Click(ctx, deleteEntry, click); err != nil {
		return fmt.Errorf("click delete entry: %w", err)
	}

	err = wait.ForCondition(ctx, "item removal", c.timings.RemovalTimeout, c.timings.PollInterval,
		func(ctx context.Context) (bool, error) {
			attached, err := item.Node.Attached(ctx)
			if err != nil {
				return false, err
			}
			if !attached {
				return true, nil
			}
			els, err := c.page.Query(ctx, c.profile.ItemContainer)
			if err != nil {
				return false, err
			}
			return len(els) < before, nil
		})
	if err != nil {
		var timeout *domain.TimeoutError
		if !errors.As(err, &timeout) {
			return err
		}
		_ = item.Node.Remove(ctx)
		c.logger.Warn("removal not confirmed, force-removed container",
			"run_id", c.runID, "title", item.Title)
	}
	return nil
}

// resetUI dismisses stray popovers with a neutral click and nudges the
// scroll position so virtualized lists refresh.
func (c *Controller) resetUI(ctx context.Context) error {
	if err := interact.NeutralClick(ctx, c.page); err != nil {
		return err
	}
	if err := wait.Delay(ctx, c.timings.SettleDelay); err != nil {
		return err
	}
	if err := c.page.ScrollBy(ctx, 0, -120); err != nil {
		return err
	}
	return c.page.ScrollBy(ctx, 0, 120)
}

// resetUIBestEffort is the error-path variant: when the full reset itself
// fails, fall back to a plain neutral click and a brief pause.
func (c *Controller) resetUIBestEffort(ctx context.Context) {
	if err := c.resetUI(ctx); err != nil {
		c.logger.Debug("ui reset failed, retrying with plain neutral click", "error", err)
		_ = interact.NeutralClick(ctx, c.page)
		_ = wait.Delay(ctx, c.timings.SettleDelay)
	}
}

func (c *Controller) emit(rc *runContext, title string, errored bool) {
	if c.onProgress == nil {
		return
	}
	c.onProgress(domain.ProgressEvent{
		RunID:        c.runID,
		Stats:        rc.stats,
		CurrentTitle: title,
		ItemErrored:  errored,
	})
}

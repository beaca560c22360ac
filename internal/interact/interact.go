// Package interact simulates user gestures on located elements: clicks with
// a transient visual highlight and a synthetic-event fallback, and
// context-menu activation with a bounded retry budget.
package interact

import (
	"context"
	"log/slog"
	"time"

	"exportsweep/internal/dom"
	"exportsweep/internal/domain"
	"exportsweep/internal/wait"
)

// highlightStyle marks the element about to be clicked so a human watching
// a foreground run can follow along.
const highlightStyle = "outline: 3px solid #ff9800; outline-offset: 2px;"

// neutralX/neutralY is a corner unlikely to hit any control; clicking it
// dismisses stray popovers and context menus.
const (
	neutralX = 4
	neutralY = 4
)

// ClickOptions tunes a single click.
type ClickOptions struct {
	// Settle pauses after the click so the UI can react before the caller
	// proceeds. Zero means no pause.
	Settle time.Duration

	// Highlight applies the transient outline around the click.
	Highlight bool
}

// Click scrolls the target into view, highlights it, performs the native
// click action, and falls back to dispatching a synthetic click event when
// the native path throws. The pre-existing inline style is restored on
// every path.
func Click(ctx context.Context, el dom.Element, opts ClickOptions) error {
	if err := el.ScrollIntoView(ctx); err != nil {
		return err
	}

	var original string
	if opts.Highlight {
		if saved, err := el.InlineStyle(ctx); err == nil {
			original = saved
			_ = el.SetInlineStyle(ctx, highlightStyle)
		}
	}

	err := el.Click(ctx)
	if err != nil {
		err = el.DispatchClick(ctx)
	}

	if opts.Highlight {
		_ = el.SetInlineStyle(ctx, original)
	}
	if err != nil {
		return err
	}

	if opts.Settle > 0 {
		return wait.Delay(ctx, opts.Settle)
	}
	return nil
}

// NeutralClick clicks an empty area of the page to dismiss overlays.
func NeutralClick(ctx context.Context, page dom.Page) error {
	return page.ClickAt(ctx, neutralX, neutralY)
}

// MenuOptions tunes context-menu activation.
type MenuOptions struct {
	// MenuSelector locates the context-menu container once it opens.
	MenuSelector string

	// Attempts is the retry budget. Defaults to 3.
	Attempts int

	// AppearTimeout bounds the per-attempt wait for the menu container.
	AppearTimeout time.Duration

	// Backoff is the pause between attempts. Defaults to 1s.
	Backoff time.Duration

	// Interval is the poll cadence inside each attempt.
	Interval time.Duration

	Logger *slog.Logger
}

// OpenContextMenu dispatches a synthetic contextmenu event at the target
// and waits for the menu container to appear. When it does not, any stray
// overlay is dismissed with a neutral click and the gesture is retried.
// Returns the located menu container; finding the actionable entry inside
// it is the caller's job.
func OpenContextMenu(ctx context.Context, page dom.Page, target dom.Element, opts MenuOptions) (dom.Element, error) {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = 3
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := target.ScrollIntoView(ctx); err != nil {
			return nil, err
		}
		if err := target.DispatchContextMenu(ctx); err != nil {
			return nil, err
		}

		menu, err := wait.ForElement(ctx, page, opts.MenuSelector, opts.AppearTimeout, opts.Interval)
		if err == nil {
			return menu, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if opts.Logger != nil {
			opts.Logger.Debug("context menu did not open", "attempt", attempt, "selector", opts.MenuSelector)
		}
		_ = NeutralClick(ctx, page)
		if attempt < attempts {
			if err := wait.Delay(ctx, backoff); err != nil {
				return nil, err
			}
		}
	}

	return nil, &domain.ControlNotFoundError{Selector: opts.MenuSelector, Attempts: attempts}
}

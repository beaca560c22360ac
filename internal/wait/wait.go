// Package wait implements the bounded polling primitives every other layer
// is built on. A wait returns as soon as its condition holds, swallows
// individual tick errors, and fails with a domain.TimeoutError once the
// deadline passes.
package wait

import (
	"context"
	"time"

	"exportsweep/internal/dom"
	"exportsweep/internal/domain"
)

// DefaultInterval is the poll cadence shared by all waits unless overridden.
const DefaultInterval = 250 * time.Millisecond

// Condition is polled once per tick. Returning an error fails only that
// tick; polling continues until the deadline.
type Condition func(ctx context.Context) (bool, error)

// Delay sleeps for d, honoring context cancellation.
func Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ForCondition polls cond every interval until it holds or timeout elapses.
func ForCondition(ctx context.Context, desc string, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	start := time.Now()
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(start)+interval > timeout {
			return &domain.TimeoutError{Desc: desc, Elapsed: time.Since(start)}
		}
		if err := Delay(ctx, interval); err != nil {
			return err
		}
	}
}

// ForElement polls the page for a rendered element matching selector. An
// element present in the document but hidden or zero-sized does not count.
func ForElement(ctx context.Context, page dom.Page, selector string, timeout, interval time.Duration) (dom.Element, error) {
	var found dom.Element
	err := ForCondition(ctx, "element "+selector, timeout, interval, func(ctx context.Context) (bool, error) {
		el, err := FirstVisible(ctx, page, selector)
		if err != nil {
			return false, err
		}
		found = el
		return el != nil, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ForElementIn is ForElement scoped to a root element's subtree.
func ForElementIn(ctx context.Context, root dom.Element, selector string, timeout, interval time.Duration) (dom.Element, error) {
	var found dom.Element
	err := ForCondition(ctx, "scoped element "+selector, timeout, interval, func(ctx context.Context) (bool, error) {
		els, err := root.Query(ctx, selector)
		if err != nil {
			return false, err
		}
		el, err := firstVisibleOf(ctx, els)
		if err != nil {
			return false, err
		}
		found = el
		return el != nil, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ForXPath polls the page for a rendered element matching an XPath
// expression.
func ForXPath(ctx context.Context, page dom.Page, expr string, timeout, interval time.Duration) (dom.Element, error) {
	var found dom.Element
	err := ForCondition(ctx, "xpath "+expr, timeout, interval, func(ctx context.Context) (bool, error) {
		els, err := page.QueryXPath(ctx, expr)
		if err != nil {
			return false, err
		}
		el, err := firstVisibleOf(ctx, els)
		if err != nil {
			return false, err
		}
		found = el
		return el != nil, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FirstVisible returns the first rendered match for selector, or nil when
// nothing rendered matches right now.
func FirstVisible(ctx context.Context, page dom.Page, selector string) (dom.Element, error) {
	els, err := page.Query(ctx, selector)
	if err != nil {
		return nil, err
	}
	return firstVisibleOf(ctx, els)
}

func firstVisibleOf(ctx context.Context, els []dom.Element) (dom.Element, error) {
	for _, el := range els {
		visible, err := el.Visible(ctx)
		if err != nil {
			return nil, err
		}
		if visible {
			return el, nil
		}
	}
	return nil, nil
}

package playwrightdom

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"exportsweep/internal/dom"
)

// pageAdapter adapts a playwright page to the dom.Page port. playwright-go
// calls are synchronous and do not take contexts, so each method checks
// cancellation up front and otherwise lets the driver's own timeouts apply.
type pageAdapter struct {
	p        playwright.Page
	observer *downloadObserver
}

var _ dom.Page = (*pageAdapter)(nil)

func (a *pageAdapter) Query(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := a.p.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrapHandles(handles), nil
}

func (a *pageAdapter) QueryXPath(ctx context.Context, expr string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := a.p.QuerySelectorAll("xpath=" + expr)
	if err != nil {
		return nil, fmt.Errorf("query xpath %q: %w", expr, err)
	}
	return wrapHandles(handles), nil
}

func (a *pageAdapter) ClickAt(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.p.Mouse().Click(x, y); err != nil {
		return fmt.Errorf("click at (%v,%v): %w", x, y, err)
	}
	return nil
}

func (a *pageAdapter) ScrollBy(ctx context.Context, dx, dy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.p.Mouse().Wheel(dx, dy); err != nil {
		return fmt.Errorf("scroll by (%v,%v): %w", dx, dy, err)
	}
	return nil
}

func (a *pageAdapter) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := a.p.Content()
	if err != nil {
		return "", fmt.Errorf("page content: %w", err)
	}
	return content, nil
}

func (a *pageAdapter) WatchDownloads(ctx context.Context) (dom.DownloadWatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.observer.arm(), nil
}

func wrapHandles(handles []playwright.ElementHandle) []dom.Element {
	elements := make([]dom.Element, 0, len(handles))
	for _, h := range handles {
		elements = append(elements, &elementAdapter{h: h})
	}
	return elements
}

package playwrightdom

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"exportsweep/internal/dom"
)

type elementAdapter struct {
	h playwright.ElementHandle
}

var _ dom.Element = (*elementAdapter)(nil)

func (e *elementAdapter) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.h.TextContent()
	if err != nil {
		return "", fmt.Errorf("text content: %w", err)
	}
	return text, nil
}

func (e *elementAdapter) Visible(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	visible, err := e.h.IsVisible()
	if err != nil {
		return false, fmt.Errorf("visibility: %w", err)
	}
	return visible, nil
}

func (e *elementAdapter) Attached(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	result, err := e.h.Evaluate("el => el.isConnected")
	if err != nil {
		// An evaluate error on a stale handle means the node is gone.
		return false, nil
	}
	connected, _ := result.(bool)
	return connected, nil
}

func (e *elementAdapter) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.h.Click(); err != nil {
		return fmt.Errorf("click: %w", err)
	}
	return nil
}

func (e *elementAdapter) DispatchClick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.h.DispatchEvent("click"); err != nil {
		return fmt.Errorf("dispatch click: %w", err)
	}
	return nil
}

func (e *elementAdapter) DispatchContextMenu(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.h.DispatchEvent("contextmenu"); err != nil {
		return fmt.Errorf("dispatch contextmenu: %w", err)
	}
	return nil
}

func (e *elementAdapter) ScrollIntoView(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.h.ScrollIntoViewIfNeeded(); err != nil {
		return fmt.Errorf("scroll into view: %w", err)
	}
	return nil
}

func (e *elementAdapter) InlineStyle(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	style, err := e.h.GetAttribute("style")
	if err != nil {
		return "", fmt.Errorf("style attribute: %w", err)
	}
	return style, nil
}

func (e *elementAdapter) SetInlineStyle(ctx context.Context, style string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := e.h.Evaluate("(el, value) => el.setAttribute('style', value)", style); err != nil {
		return fmt.Errorf("set style attribute: %w", err)
	}
	return nil
}

func (e *elementAdapter) Query(ctx context.Context, selector string) ([]dom.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := e.h.QuerySelectorAll(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	return wrapHandles(handles), nil
}

func (e *elementAdapter) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := e.h.Evaluate("el => el.remove()"); err != nil {
		return fmt.Errorf("remove node: %w", err)
	}
	return nil
}

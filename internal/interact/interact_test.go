package interact

import (
	"context"
	"errors"
	"testing"
	"time"

	"exportsweep/internal/dom/domtest"
	"exportsweep/internal/domain"
)

func TestClickRestoresStyle(t *testing.T) {
	t.Parallel()

	doc := domtest.NewDocument()
	node := doc.Append(&domtest.Node{Selectors: []string{".btn"}})
	_ = node.SetInlineStyle(context.Background(), "color: red;")

	if err := Click(context.Background(), node, ClickOptions{Highlight: true}); err != nil {
		t.Fatalf("Click returned error: %v", err)
	}

	if node.Clicks() != 1 {
		t.Fatalf("expected 1 click, got %d", node.Clicks())
	}
	if node.Style() != "color: red;" {
		t.Fatalf("inline style not restored: %q", node.Style())
	}
}

func TestClickFallsBackToDispatch(t *testing.T) {
	t.Parallel()

	doc := domtest.NewDocument()
	node := doc.Append(&domtest.Node{Selectors: []string{".btn"}, ClickErr: errors.New("intercepted")})
	_ = node.SetInlineStyle(context.Background(), "margin: 1px;")

	if err := Click(context.Background(), node, ClickOptions{Highlight: true}); err != nil {
		t.Fatalf("expected dispatch fallback to succeed, got %v", err)
	}
	if node.Clicks() != 1 {
		t.Fatalf("expected 1 dispatched click, got %d", node.Clicks())
	}
	if node.Style() != "margin: 1px;" {
		t.Fatalf("inline style not restored on fallback path: %q", node.Style())
	}
}

func TestOpenContextMenuFirstAttempt(t *testing.T) {
	t.Parallel()

	doc := domtest.NewDocument()
	item := doc.Append(&domtest.Node{Selectors: []string{".row"}})
	item.OnContextMenu = func(*domtest.Node) {
		doc.Append(&domtest.Node{Selectors: []string{".context-menu"}, TextContent: "menu"})
	}

	menu, err := OpenContextMenu(context.Background(), doc, item, MenuOptions{
		MenuSelector:  ".context-menu",
		AppearTimeout: 100 * time.Millisecond,
		Backoff:       time.Millisecond,
		Interval:      time.Millisecond,
	})
	if err != nil {
		t.Fatalf("OpenContextMenu returned error: %v", err)
	}
	text, _ := menu.Text(context.Background())
	if text != "menu" {
		t.Fatalf("unexpected menu element: %q", text)
	}
}

func TestOpenContextMenuRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	doc := domtest.NewDocument()
	item := doc.Append(&domtest.Node{Selectors: []string{".row"}})
	item.OnContextMenu = func(n *domtest.Node) {
		if n.MenuEvents() >= 2 {
			doc.Append(&domtest.Node{Selectors: []string{".context-menu"}})
		}
	}

	_, err := OpenContextMenu(context.Background(), doc, item, MenuOptions{
		MenuSelector:  ".context-menu",
		Attempts:      3,
		AppearTimeout: 10 * time.Millisecond,
		Backoff:       time.Millisecond,
		Interval:      time.Millisecond,
	})
	if err != nil {
		t.Fatalf("expected second attempt to succeed, got %v", err)
	}
	if item.MenuEvents() != 2 {
		t.Fatalf("expected 2 contextmenu dispatches, got %d", item.MenuEvents())
	}
	if doc.NeutralClicks() == 0 {
		t.Fatal("expected a dismissing neutral click between attempts")
	}
}

func TestOpenContextMenuExhaustsBudget(t *testing.T) {
	t.Parallel()

	doc := domtest.NewDocument()
	item := doc.Append(&domtest.Node{Selectors: []string{".row"}})

	_, err := OpenContextMenu(context.Background(), doc, item, MenuOptions{
		MenuSelector:  ".context-menu",
		Attempts:      3,
		AppearTimeout: 5 * time.Millisecond,
		Backoff:       time.Millisecond,
		Interval:      time.Millisecond,
	})

	var notFound *domain.ControlNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ControlNotFoundError, got %v", err)
	}
	if notFound.Attempts != 3 || notFound.Selector != ".context-menu" {
		t.Fatalf("unexpected error detail: %+v", notFound)
	}
	if item.MenuEvents() != 3 {
		t.Fatalf("expected 3 dispatches, got %d", item.MenuEvents())
	}
}

package worklist

import (
	"context"
	"testing"

	"exportsweep/internal/dom/domtest"
)

func TestSelectorScannerDocumentOrder(t *testing.T) {
	t.Parallel()

	doc := domtest.NewDocument()
	for _, title := range []string{"A", "B", "C"} {
		row := doc.Append(&domtest.Node{Selectors: []string{".row"}})
		doc.Append(&domtest.Node{Selectors: []string{".title"}, TextContent: "  " + title + "  ", Parent: row})
	}

	sc := NewSelectorScanner("test", ".row", ".title")
	items, err := sc.Scan(context.Background(), doc)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []string{"A", "B", "C"} {
		if items[i].Title != want {
			t.Fatalf("item %d: expected title %q, got %q", i, want, items[i].Title)
		}
	}
}

func TestSelectorScannerTitleFallback(t *testing.T) {
	t.Parallel()

	doc := domtest.NewDocument()
	doc.Append(&domtest.Node{Selectors: []string{".row"}, TextContent: "Container Text"})

	sc := NewSelectorScanner("test", ".row", ".title")
	items, err := sc.Scan(context.Background(), doc)
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Container Text" {
		t.Fatalf("expected container-text fallback, got %+v", items)
	}
}

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(NewSelectorScanner("library", ".row", ".title"))

	if _, err := reg.Resolve("library"); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if _, err := reg.Resolve("unknown"); err == nil {
		t.Fatal("expected error for unregistered scanner")
	}
}

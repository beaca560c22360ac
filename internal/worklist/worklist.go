// Package worklist discovers exportable items by scanning the document for
// container nodes matching the active selector profile.
package worklist

import (
	"context"
	"fmt"
	"strings"

	"exportsweep/internal/dom"
)

// Item is one exportable unit. Title is the identity key within a run;
// Node is a weak live handle revalidated every loop iteration, since the
// application may reorder or remove nodes out of band.
type Item struct {
	Title string
	Node  dom.Element
}

// Scanner captures one strategy for discovering worklist items in a target
// application's markup.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, page dom.Page) ([]Item, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("worklist scanner %s is not registered", name)
}

// SelectorScanner discovers items via the profile's container and title
// selectors. Document order is preserved.
type SelectorScanner struct {
	name      string
	container string
	title     string
}

var _ Scanner = (*SelectorScanner)(nil)

// NewSelectorScanner wires a scanner for one selector profile.
func NewSelectorScanner(name, container, title string) *SelectorScanner {
	return &SelectorScanner{name: name, container: container, title: title}
}

// Name identifies the strategy inside the registry.
func (s *SelectorScanner) Name() string {
	return s.name
}

// Scan returns every worklist container currently in the document, in
// source order. Items whose title cannot be extracted carry an empty Title;
// the controller decides what to do with those.
func (s *SelectorScanner) Scan(ctx context.Context, page dom.Page) ([]Item, error) {
	containers, err := page.Query(ctx, s.container)
	if err != nil {
		return nil, fmt.Errorf("scan containers: %w", err)
	}

	items := make([]Item, 0, len(containers))
	for _, c := range containers {
		items = append(items, Item{Title: s.extractTitle(ctx, c), Node: c})
	}
	return items, nil
}

func (s *SelectorScanner) extractTitle(ctx context.Context, container dom.Element) string {
	if s.title != "" {
		if titled, err := container.Query(ctx, s.title); err == nil && len(titled) > 0 {
			if text, err := titled[0].Text(ctx); err == nil && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
		}
	}

	// No dedicated title node; fall back to the container's own text.
	if text, err := container.Text(ctx); err == nil {
		return strings.TrimSpace(text)
	}
	return ""
}

// Package locator finds the next actionable control for each workflow step.
// Every step is an ordered fallback chain: primary selector first, then a
// text-content scan across a wider tag set, composed by a first-success
// combinator. A strategy miss is not an error; exhausting the chain within
// its time budget is.
package locator

import (
	"context"
	"strings"

	"exportsweep/internal/dom"
)

// Strategy is one way to find a control. Returning (nil, nil) is a miss;
// the next strategy in the chain is tried.
type Strategy func(ctx context.Context) (dom.Element, error)

// FirstMatch runs strategies in order and returns the first hit, or
// (nil, nil) when every strategy misses. Ambiguity among multiple matches
// is not detected: first match wins.
func FirstMatch(ctx context.Context, strategies ...Strategy) (dom.Element, error) {
	for _, strategy := range strategies {
		el, err := strategy(ctx)
		if err != nil {
			return nil, err
		}
		if el != nil {
			return el, nil
		}
	}
	return nil, nil
}

// BySelector matches the first rendered element for a CSS selector.
func BySelector(page dom.Page, selector string) Strategy {
	return func(ctx context.Context) (dom.Element, error) {
		if selector == "" {
			return nil, nil
		}
		els, err := page.Query(ctx, selector)
		if err != nil {
			return nil, err
		}
		return firstVisible(ctx, els)
	}
}

// ByXPath matches the first rendered element for an XPath expression.
func ByXPath(page dom.Page, expr string) Strategy {
	return func(ctx context.Context) (dom.Element, error) {
		if expr == "" {
			return nil, nil
		}
		els, err := page.QueryXPath(ctx, expr)
		if err != nil {
			return nil, err
		}
		return firstVisible(ctx, els)
	}
}

// BySelectorIn scopes a CSS selector to a root element's subtree.
func BySelectorIn(root dom.Element, selector string) Strategy {
	return func(ctx context.Context) (dom.Element, error) {
		if selector == "" {
			return nil, nil
		}
		els, err := root.Query(ctx, selector)
		if err != nil {
			return nil, err
		}
		return firstVisible(ctx, els)
	}
}

// ByText scans the wide tag set for the first rendered element whose text
// contains the target, case-insensitively.
func ByText(page dom.Page, tags, text string) Strategy {
	return func(ctx context.Context) (dom.Element, error) {
		if text == "" {
			return nil, nil
		}
		els, err := page.Query(ctx, tags)
		if err != nil {
			return nil, err
		}
		return firstWithText(ctx, els, text)
	}
}

// ByTextIn is ByText scoped to a root element's subtree.
func ByTextIn(root dom.Element, tags, text string) Strategy {
	return func(ctx context.Context) (dom.Element, error) {
		if text == "" {
			return nil, nil
		}
		els, err := root.Query(ctx, tags)
		if err != nil {
			return nil, err
		}
		return firstWithText(ctx, els, text)
	}
}

func firstVisible(ctx context.Context, els []dom.Element) (dom.Element, error) {
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

func firstWithText(ctx context.Context, els []dom.Element, target string) (dom.Element, error) {
	want := strings.ToLower(strings.TrimSpace(target))
	for _, el := range els {
		visible, err := el.Visible(ctx)
		if err != nil || !visible {
			continue
		}
		text, err := el.Text(ctx)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(text), want) {
			return el, nil
		}
	}
	return nil, nil
}

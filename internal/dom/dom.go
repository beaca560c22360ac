// Package dom defines the ports the automation primitives are written
// against. The live implementation drives a real browser; tests substitute
// a scripted fake. Handles are weak: the target application re-renders at
// will, so callers re-query instead of caching across loop iterations.
package dom

import "context"

// Element is a live handle to one rendered node.
type Element interface {
	// Text returns the node's visible text content.
	Text(ctx context.Context) (string, error)

	// Visible reports whether the node is rendered: attached, laid out
	// with a non-zero box, and not hidden via display/visibility.
	Visible(ctx context.Context) (bool, error)

	// Attached reports whether the node is still connected to the document.
	Attached(ctx context.Context) (bool, error)

	// Click performs the native click action.
	Click(ctx context.Context) error

	// DispatchClick synthesizes and dispatches a click event. Fallback for
	// nodes whose native click path throws.
	DispatchClick(ctx context.Context) error

	// DispatchContextMenu dispatches a synthetic contextmenu event.
	DispatchContextMenu(ctx context.Context) error

	// ScrollIntoView brings the node into the viewport.
	ScrollIntoView(ctx context.Context) error

	// InlineStyle returns the node's inline style attribute.
	InlineStyle(ctx context.Context) (string, error)

	// SetInlineStyle replaces the node's inline style attribute.
	SetInlineStyle(ctx context.Context, style string) error

	// Query finds descendants matching a CSS selector, in document order.
	Query(ctx context.Context, selector string) ([]Element, error)

	// Remove detaches the node from the document.
	Remove(ctx context.Context) error
}

// Page is the document of one automation target.
type Page interface {
	// Query finds elements matching a CSS selector, in document order.
	Query(ctx context.Context, selector string) ([]Element, error)

	// QueryXPath finds elements matching an XPath expression.
	QueryXPath(ctx context.Context, expr string) ([]Element, error)

	// ClickAt clicks page coordinates. Used to dismiss stray overlays by
	// clicking a neutral area.
	ClickAt(ctx context.Context, x, y float64) error

	// ScrollBy scrolls the page by the given deltas. Used to nudge
	// virtualized lists into refreshing.
	ScrollBy(ctx context.Context, dx, dy float64) error

	// Content returns the current HTML snapshot.
	Content(ctx context.Context) (string, error)

	// WatchDownloads arms the passive download-failure observer. The caller
	// must Close the returned watch.
	WatchDownloads(ctx context.Context) (DownloadWatch, error)
}

// DownloadWatch observes download failures after an export is triggered.
// Absence of an observed failure is the only success signal available.
type DownloadWatch interface {
	// Failed reports whether a download failure was observed so far.
	Failed() bool

	// Reason describes the observed failure, if any.
	Reason() string

	// Close detaches the observer.
	Close()
}

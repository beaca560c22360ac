// Package domtest provides a scripted in-memory dom.Page for tests.
// Nodes declare the selectors they match instead of implementing a real
// CSS engine; hooks let scenarios mutate the document in reaction to
// clicks, the way the target application would.
package domtest

import (
	"context"
	"slices"
	"sync"

	"exportsweep/internal/dom"
)

// Document is a fake dom.Page.
type Document struct {
	mu    sync.Mutex
	nodes []*Node

	neutralClicks int
	scrolls       int
	html          string
	downloadFail  string

	// QueryErr, when set, is returned by every Query call. Lets tests
	// exercise outer-loop failure paths.
	QueryErr error
}

var _ dom.Page = (*Document)(nil)

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// SetHTML sets the snapshot returned by Content.
func (d *Document) SetHTML(html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.html = html
}

// Append adds a node at the end of document order and returns it.
func (d *Document) Append(n *Node) *Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	n.doc = d
	d.nodes = append(d.nodes, n)
	return n
}

// FailDownloads makes every armed download watch report a failure.
func (d *Document) FailDownloads(reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.downloadFail = reason
}

// NeutralClicks returns how many times a neutral area was clicked.
func (d *Document) NeutralClicks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.neutralClicks
}

// Scrolls returns how many scroll nudges the page received.
func (d *Document) Scrolls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scrolls
}

// Query returns attached nodes declaring the selector, in document order.
func (d *Document) Query(_ context.Context, selector string) ([]dom.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.QueryErr != nil {
		return nil, d.QueryErr
	}
	var out []dom.Element
	for _, n := range d.nodes {
		if !n.detached && slices.Contains(n.Selectors, selector) {
			out = append(out, n)
		}
	}
	return out, nil
}

// QueryXPath matches against the same declared selector list.
func (d *Document) QueryXPath(ctx context.Context, expr string) ([]dom.Element, error) {
	return d.Query(ctx, expr)
}

// ClickAt records a neutral-area click.
func (d *Document) ClickAt(_ context.Context, _, _ float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.neutralClicks++
	return nil
}

// ScrollBy records a scroll nudge.
func (d *Document) ScrollBy(_ context.Context, _, _ float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scrolls++
	return nil
}

// Content returns the configured HTML snapshot.
func (d *Document) Content(_ context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.html, nil
}

// WatchDownloads arms a fake watch reflecting FailDownloads.
func (d *Document) WatchDownloads(_ context.Context) (dom.DownloadWatch, error) {
	return &watch{doc: d}, nil
}

type watch struct {
	doc *Document
}

func (w *watch) Failed() bool {
	w.doc.mu.Lock()
	defer w.doc.mu.Unlock()
	return w.doc.downloadFail != ""
}

func (w *watch) Reason() string {
	w.doc.mu.Lock()
	defer w.doc.mu.Unlock()
	return w.doc.downloadFail
}

func (w *watch) Close() {}

// Node is a fake dom.Element.
type Node struct {
	doc *Document

	// Selectors lists every selector/XPath this node matches.
	Selectors []string

	// TextContent is returned by Text.
	TextContent string

	// Hidden makes the node attached but not rendered.
	Hidden bool

	// ClickErr, when set, fails the native click path; DispatchClick still
	// succeeds, exercising the fallback.
	ClickErr error

	// OnClick runs after any successful click (native or dispatched).
	OnClick func(n *Node)

	// OnContextMenu runs after a contextmenu dispatch.
	OnContextMenu func(n *Node)

	// Parent scopes the node for Element.Query.
	Parent *Node

	style       string
	detached    bool
	clicks      int
	menuEvents  int
	removeCalls int
	scrolled    int
}

var _ dom.Element = (*Node)(nil)

// Clicks returns how many clicks the node received.
func (n *Node) Clicks() int {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.clicks
}

// MenuEvents returns how many contextmenu dispatches the node received.
func (n *Node) MenuEvents() int {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.menuEvents
}

// Removed reports whether Remove was called.
func (n *Node) Removed() bool {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.removeCalls > 0
}

// Detach disconnects the node from the document, as the application does
// when it deletes an item.
func (n *Node) Detach() {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.detached = true
}

// Style returns the current inline style.
func (n *Node) Style() string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.style
}

func (n *Node) Text(_ context.Context) (string, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.TextContent, nil
}

func (n *Node) Visible(_ context.Context) (bool, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return !n.detached && !n.Hidden, nil
}

func (n *Node) Attached(_ context.Context) (bool, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return !n.detached, nil
}

func (n *Node) Click(_ context.Context) error {
	n.doc.mu.Lock()
	if n.ClickErr != nil {
		n.doc.mu.Unlock()
		return n.ClickErr
	}
	n.clicks++
	hook := n.OnClick
	n.doc.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (n *Node) DispatchClick(_ context.Context) error {
	n.doc.mu.Lock()
	n.clicks++
	hook := n.OnClick
	n.doc.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (n *Node) DispatchContextMenu(_ context.Context) error {
	n.doc.mu.Lock()
	n.menuEvents++
	hook := n.OnContextMenu
	n.doc.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (n *Node) ScrollIntoView(_ context.Context) error {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.scrolled++
	return nil
}

func (n *Node) InlineStyle(_ context.Context) (string, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.style, nil
}

func (n *Node) SetInlineStyle(_ context.Context, style string) error {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.style = style
	return nil
}

func (n *Node) Query(_ context.Context, selector string) ([]dom.Element, error) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	var out []dom.Element
	for _, c := range n.doc.nodes {
		if c.detached || !slices.Contains(c.Selectors, selector) {
			continue
		}
		if c.descendantOf(n) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (n *Node) Remove(_ context.Context) error {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.removeCalls++
	n.detached = true
	return nil
}

func (n *Node) descendantOf(root *Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"exportsweep/internal/config"
	"exportsweep/internal/dom/domtest"
	"exportsweep/internal/domain"
	"exportsweep/internal/worklist"
)

const scanTags = "a, button, span, div, li"

func testProfile() config.SelectorProfile {
	return config.SelectorProfile{
		Name:              "test",
		ItemContainer:     "div.row",
		ItemTitle:         ".title",
		ShareControl:      ".share",
		ShareControlText:  "Share",
		Popover:           ".popover",
		AudioExport:       ".export-audio",
		AudioExportText:   "Export audio",
		FormatOption:      ".format-mp3",
		FormatOptionText:  "MP3",
		ExportTrigger:     ".export-confirm",
		ExportTriggerText: "Export",
		ContextMenu:       ".context-menu",
		DeleteSelectors:   []string{".delete-entry"},
		DeleteText:        "Delete",
		TextScanTags:      scanTags,
	}
}

func testTimings() Timings {
	return Timings{
		PollInterval:         time.Millisecond,
		SettleDelay:          time.Millisecond,
		StepTimeout:          60 * time.Millisecond,
		PopoverTimeout:       60 * time.Millisecond,
		ScanTimeout:          30 * time.Millisecond,
		DownloadCeiling:      5 * time.Millisecond,
		MenuAttempts:         2,
		MenuAppearTimeout:    20 * time.Millisecond,
		MenuBackoff:          time.Millisecond,
		DeleteMenuWiden:      5 * time.Millisecond,
		DeleteMenuCeiling:    60 * time.Millisecond,
		RemovalTimeout:       30 * time.Millisecond,
		MaxConsecutiveErrors: 3,
	}
}

// fixture scripts a fake library application: selecting a row reveals the
// share control, the share popover reveals the export options, and the
// context menu carries the delete entry. Controls from a previously
// selected row disappear when a new row is selected, like a real detail
// view would.
type fixture struct {
	doc       *domtest.Document
	ephemeral []*domtest.Node
}

type rowOpts struct {
	// broken rows never reveal their share control.
	broken bool
	// deleteNoop leaves the container attached after the delete click.
	deleteNoop bool
	// onExport runs when the export trigger is clicked.
	onExport func()
}

func newFixture() *fixture {
	return &fixture{doc: domtest.NewDocument()}
}

func (f *fixture) clear() {
	for _, n := range f.ephemeral {
		n.Detach()
	}
	f.ephemeral = nil
}

func (f *fixture) add(n *domtest.Node) *domtest.Node {
	f.doc.Append(n)
	f.ephemeral = append(f.ephemeral, n)
	return n
}

func (f *fixture) addRow(title string, opts rowOpts) *domtest.Node {
	row := f.doc.Append(&domtest.Node{Selectors: []string{"div.row"}})
	f.doc.Append(&domtest.Node{Selectors: []string{".title"}, TextContent: title, Parent: row})

	row.OnClick = func(*domtest.Node) {
		f.clear()
		if opts.broken {
			return
		}
		share := f.add(&domtest.Node{Selectors: []string{".share"}})
		share.OnClick = func(*domtest.Node) {
			popover := f.add(&domtest.Node{Selectors: []string{".popover"}})
			option := f.add(&domtest.Node{Selectors: []string{".export-audio"}, Parent: popover})
			option.OnClick = func(*domtest.Node) {
				format := f.add(&domtest.Node{Selectors: []string{".format-mp3"}, TextContent: "MP3"})
				format.OnClick = func(*domtest.Node) {
					trigger := f.add(&domtest.Node{Selectors: []string{".export-confirm"}, TextContent: "Export"})
					trigger.OnClick = func(*domtest.Node) {
						if opts.onExport != nil {
							opts.onExport()
						}
					}
				}
			}
		}
	}

	row.OnContextMenu = func(*domtest.Node) {
		menu := f.add(&domtest.Node{Selectors: []string{".context-menu"}})
		entry := f.add(&domtest.Node{Selectors: []string{".delete-entry"}, TextContent: "Delete", Parent: menu})
		entry.OnClick = func(*domtest.Node) {
			if !opts.deleteNoop {
				row.Detach()
			}
		}
	}

	return row
}

func (f *fixture) controller(shouldStop func() bool, events *[]domain.ProgressEvent) *Controller {
	return New(Options{
		Page:    f.doc,
		Scanner: worklist.NewSelectorScanner("test", "div.row", ".title"),
		Profile: testProfile(),
		Timings: testTimings(),
		RunID:   "test-run",
		ShouldStop: func() bool {
			if shouldStop == nil {
				return false
			}
			return shouldStop()
		},
		OnProgress: func(ev domain.ProgressEvent) {
			if events != nil {
				*events = append(*events, ev)
			}
		},
	})
}

func TestRunCompletesEmptyWorklist(t *testing.T) {
	t.Parallel()

	f := newFixture()
	stats, state, err := f.controller(nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state != domain.StateCompleted {
		t.Fatalf("expected Completed, got %s", state)
	}
	if stats.FilesProcessed != 0 || stats.FilesErrored != 0 {
		t.Fatalf("expected zero counters, got %+v", stats)
	}
	if stats.EndTime.IsZero() {
		t.Fatal("expected final snapshot to carry an end time")
	}
}

func TestRunProcessesAllItems(t *testing.T) {
	t.Parallel()

	f := newFixture()
	rows := map[string]*domtest.Node{}
	for _, title := range []string{"A", "B", "C"} {
		rows[title] = f.addRow(title, rowOpts{})
	}

	var events []domain.ProgressEvent
	stats, state, err := f.controller(nil, &events).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state != domain.StateCompleted {
		t.Fatalf("expected Completed, got %s", state)
	}
	if stats.FilesProcessed != 3 || stats.FilesErrored != 0 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	for title, row := range rows {
		if attached, _ := row.Attached(context.Background()); attached {
			t.Fatalf("row %s should be deleted", title)
		}
	}
	if len(events) != 3 {
		t.Fatalf("expected one progress event per item, got %d", len(events))
	}
}

func TestIdempotentSkipForDuplicateTitles(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addRow("A", rowOpts{})
	twin := f.addRow("A", rowOpts{})

	stats, state, err := f.controller(nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state != domain.StateCompleted {
		t.Fatalf("expected Completed, got %s", state)
	}
	if stats.FilesProcessed != 1 {
		t.Fatalf("a title already processed must never be selected again, got %+v", stats)
	}
	if twin.Clicks() != 0 {
		t.Fatalf("duplicate-titled twin must be skipped, got %d clicks", twin.Clicks())
	}
}

func TestConsecutiveErrorCeilingAbortsRun(t *testing.T) {
	t.Parallel()

	f := newFixture()
	for _, title := range []string{"A", "B", "C"} {
		f.addRow(title, rowOpts{broken: true})
	}
	untouched := f.addRow("D", rowOpts{broken: true})

	stats, state, err := f.controller(nil, nil).Run(context.Background())
	if state != domain.StateFatalError {
		t.Fatalf("expected FatalError, got %s", state)
	}
	var fatal *domain.FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError type, got %v", err)
	}
	if fatal.Consecutive != 3 {
		t.Fatalf("expected ceiling of 3, got %d", fatal.Consecutive)
	}
	if stats.FilesErrored != 3 || stats.FilesProcessed != 0 {
		t.Fatalf("unexpected counters: %+v", stats)
	}
	if untouched.Clicks() != 0 {
		t.Fatal("items beyond the ceiling must not be started")
	}

	var stepErr *domain.StepLocatorError
	if !errors.As(err, &stepErr) {
		t.Fatalf("fatal error should wrap the last item failure, got %v", err)
	}
}

func TestFailedItemIsSkippedAndRunCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addRow("A", rowOpts{})
	broken := f.addRow("B", rowOpts{broken: true})
	f.addRow("C", rowOpts{})

	var events []domain.ProgressEvent
	stats, state, err := f.controller(nil, &events).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state != domain.StateCompleted {
		t.Fatalf("expected Completed, got %s", state)
	}
	if stats.FilesProcessed != 2 || stats.FilesErrored != 1 {
		t.Fatalf("expected 2 processed and 1 errored, got %+v", stats)
	}
	if attached, _ := broken.Attached(context.Background()); !attached {
		t.Fatal("failed item must not be deleted")
	}

	// Processed + errored must equal the distinct titles ever handled.
	titles := map[string]bool{}
	for _, ev := range events {
		titles[ev.CurrentTitle] = true
	}
	if len(titles) != stats.FilesProcessed+stats.FilesErrored {
		t.Fatalf("expected %d distinct titles, got %d", stats.FilesProcessed+stats.FilesErrored, len(titles))
	}

	var sawErrored bool
	for _, ev := range events {
		if ev.CurrentTitle == "B" && ev.ItemErrored {
			sawErrored = true
		}
	}
	if !sawErrored {
		t.Fatal("expected B's progress event to be flagged as an error")
	}
}

func TestProgressEventsMonotonic(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addRow("A", rowOpts{})
	f.addRow("B", rowOpts{broken: true})
	f.addRow("C", rowOpts{})

	var events []domain.ProgressEvent
	if _, _, err := f.controller(nil, &events).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	last := -1
	for i, ev := range events {
		sum := ev.Stats.FilesProcessed + ev.Stats.FilesErrored
		if sum < last {
			t.Fatalf("event %d regressed: %d < %d", i, sum, last)
		}
		last = sum
	}
}

func TestStopSignalFinishesInFlightItem(t *testing.T) {
	t.Parallel()

	f := newFixture()
	var stop atomic.Bool

	f.addRow("A", rowOpts{})
	rowB := f.addRow("B", rowOpts{onExport: func() { stop.Store(true) }})
	rowC := f.addRow("C", rowOpts{})

	var events []domain.ProgressEvent
	stats, state, err := f.controller(stop.Load, &events).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state != domain.StateStopped {
		t.Fatalf("expected Stopped, got %s", state)
	}
	if stats.FilesProcessed != 2 {
		t.Fatalf("expected A and B to finish, got %+v", stats)
	}
	if attached, _ := rowB.Attached(context.Background()); attached {
		t.Fatal("in-flight item must run to completion before stopping")
	}
	if rowC.Clicks() != 0 {
		t.Fatal("no item after the in-flight one may be started")
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 progress events, got %d", len(events))
	}
}

func TestRemovalTimeoutForceRemovesContainer(t *testing.T) {
	t.Parallel()

	f := newFixture()
	row := f.addRow("X", rowOpts{deleteNoop: true})

	stats, state, err := f.controller(nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state != domain.StateCompleted {
		t.Fatalf("expected Completed, got %s", state)
	}
	if !row.Removed() {
		t.Fatal("expected the container to be force-removed")
	}
	if stats.FilesProcessed != 1 || stats.FilesErrored != 0 {
		t.Fatalf("force-removal is a soft failure, got %+v", stats)
	}
}

func TestDownloadFailureFailsItem(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.addRow("A", rowOpts{})
	f.doc.FailDownloads("net::ERR_FAILED")

	var events []domain.ProgressEvent
	stats, state, err := f.controller(nil, &events).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state != domain.StateCompleted {
		t.Fatalf("expected Completed, got %s", state)
	}
	if stats.FilesErrored != 1 || stats.FilesProcessed != 0 {
		t.Fatalf("expected the download failure to fail the item, got %+v", stats)
	}
	if len(events) != 1 || !events[0].ItemErrored {
		t.Fatalf("expected one errored progress event, got %+v", events)
	}
}

func TestEmptyTitlesCountedSkippedOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	// A container with no title text is indistinguishable and never selected.
	f.doc.Append(&domtest.Node{Selectors: []string{"div.row"}})
	f.addRow("A", rowOpts{})

	stats, state, err := f.controller(nil, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if state != domain.StateCompleted {
		t.Fatalf("expected Completed, got %s", state)
	}
	if stats.FilesProcessed != 1 || stats.FilesSkipped != 1 {
		t.Fatalf("expected 1 processed and 1 skipped, got %+v", stats)
	}
}

package playwrightdom

import (
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"exportsweep/internal/dom"
)

// downloadObserver owns the page's download-failure listeners. They are
// registered once per session; WatchDownloads arms a fresh watch that
// receives failures until it is closed, so per-item re-arming does not
// accumulate listeners on the page.
type downloadObserver struct {
	mu      sync.Mutex
	current *downloadWatch
}

func newDownloadObserver(page playwright.Page) *downloadObserver {
	o := &downloadObserver{}

	page.OnDownload(func(d playwright.Download) {
		// Failure blocks until the download settles, so it runs off the
		// event goroutine.
		go func() {
			if err := d.Failure(); err != nil {
				o.record("download failed: " + err.Error())
			}
		}()
	})

	page.OnRequestFailed(func(req playwright.Request) {
		err := req.Failure()
		if err == nil {
			return
		}
		if !artifactRequest(req.ResourceType(), req.URL()) {
			return
		}
		o.record("request failed: " + req.URL() + ": " + err.Error())
	})

	page.OnConsole(func(msg playwright.ConsoleMessage) {
		if !downloadConsoleError(msg.Text()) {
			return
		}
		o.record("console error: " + msg.Text())
	})

	return o
}

// artifactRequest reports whether a failed request plausibly carried the
// export artifact. Page chatter failing while a watch is armed (analytics,
// images, stray XHRs) must not condemn the item.
func artifactRequest(resourceType, rawURL string) bool {
	if resourceType == "document" || resourceType == "media" {
		return true
	}
	u := strings.ToLower(rawURL)
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.Contains(u, "download") ||
		strings.Contains(u, "export") ||
		strings.HasSuffix(u, ".mp3")
}

// downloadConsoleError matches console text mentioning both a download and
// an error, whatever the message level.
func downloadConsoleError(text string) bool {
	t := strings.ToLower(text)
	return strings.Contains(t, "download") && strings.Contains(t, "error")
}

func (o *downloadObserver) record(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		o.current.mark(reason)
	}
}

// arm opens a new observation window. Any previously armed watch stops
// receiving failures but keeps what it already saw.
func (o *downloadObserver) arm() *downloadWatch {
	o.mu.Lock()
	defer o.mu.Unlock()
	w := &downloadWatch{observer: o}
	o.current = w
	return w
}

func (o *downloadObserver) disarm(w *downloadWatch) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == w {
		o.current = nil
	}
}

// downloadWatch is one armed observation window. Absence of an observed
// failure within the caller's window is the only available success signal.
type downloadWatch struct {
	observer *downloadObserver

	mu     sync.Mutex
	failed bool
	reason string
}

var _ dom.DownloadWatch = (*downloadWatch)(nil)

func (w *downloadWatch) mark(reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed {
		return
	}
	w.failed = true
	w.reason = reason
}

func (w *downloadWatch) Failed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}

func (w *downloadWatch) Reason() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reason
}

// Close stops recording into this watch.
func (w *downloadWatch) Close() {
	w.observer.disarm(w)
}

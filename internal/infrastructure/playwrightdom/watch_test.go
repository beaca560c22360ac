package playwrightdom

import "testing"

func TestArtifactRequestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		resourceType string
		url          string
		want         bool
	}{
		{"document navigation", "document", "https://app.example.com/files/42", true},
		{"media resource", "media", "https://cdn.example.com/stream/42", true},
		{"export endpoint", "xhr", "https://app.example.com/api/export/42", true},
		{"download endpoint", "fetch", "https://app.example.com/download?id=42", true},
		{"mp3 artifact with query", "other", "https://cdn.example.com/42.mp3?token=abc", true},
		{"analytics beacon", "xhr", "https://analytics.example.com/collect", false},
		{"stylesheet", "stylesheet", "https://app.example.com/app.css", false},
		{"image", "image", "https://app.example.com/logo.png", false},
		{"unrelated api call", "fetch", "https://app.example.com/api/presence", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := artifactRequest(tt.resourceType, tt.url); got != tt.want {
				t.Fatalf("artifactRequest(%q, %q) = %v, want %v", tt.resourceType, tt.url, got, tt.want)
			}
		})
	}
}

func TestDownloadConsoleErrorRequiresBothWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{"Download error: artifact could not be generated", true},
		{"ERROR while preparing download", true},
		{"download started", false},
		{"export failed", false},
		{"error loading avatar image", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := downloadConsoleError(tt.text); got != tt.want {
			t.Fatalf("downloadConsoleError(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestObserverRecordsOnlyIntoArmedWatch(t *testing.T) {
	t.Parallel()

	o := &downloadObserver{}

	// Nothing armed yet: failures are dropped, not queued.
	o.record("early failure")

	w1 := o.arm()
	if w1.Failed() {
		t.Fatal("fresh watch must start clean")
	}
	o.record("first failure")
	if !w1.Failed() || w1.Reason() != "first failure" {
		t.Fatalf("armed watch missed the failure: failed=%v reason=%q", w1.Failed(), w1.Reason())
	}

	// Re-arming opens a clean window; the old watch keeps what it saw.
	w2 := o.arm()
	if w2.Failed() {
		t.Fatal("re-armed watch must not inherit earlier failures")
	}
	o.record("second failure")
	if w1.Reason() != "first failure" {
		t.Fatalf("stale watch mutated after re-arm: %q", w1.Reason())
	}
	if !w2.Failed() || w2.Reason() != "second failure" {
		t.Fatalf("current watch missed the failure: %q", w2.Reason())
	}

	// Closing a stale watch must not disarm the current one.
	w1.Close()
	o.record("third failure")
	if w2.Reason() != "second failure" {
		t.Fatalf("watch changed its first recorded reason: %q", w2.Reason())
	}

	// Closing the current watch stops recording entirely.
	w2.Close()
	o.record("late failure")
	w3 := o.arm()
	if w3.Failed() {
		t.Fatal("watch armed after close must start clean")
	}
}

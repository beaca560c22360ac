package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "error")

	log.Info("below threshold")
	if buf.Len() != 0 {
		t.Fatalf("info record passed an error-level logger: %q", buf.String())
	}

	log.Error("run aborted", "run_id", "r-1")
	out := buf.String()
	if !strings.Contains(out, "run aborted") || !strings.Contains(out, "run_id=r-1") {
		t.Fatalf("unexpected error record: %q", out)
	}
}

func TestUnknownLevelDefaultsToDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "chatty")

	log.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("debug record filtered out: %q", buf.String())
	}
}

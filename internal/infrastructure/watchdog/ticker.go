package watchdog

import (
	"context"
	"time"

	"exportsweep/internal/ports"
)

// Ticker is a lightweight interval driver for the coordinator's liveness
// watchdog.
type Ticker struct {
	interval time.Duration
	stop     chan struct{}
}

var _ ports.Ticker = (*Ticker)(nil)

// NewTicker builds a ticker with the given cadence.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Ticker{interval: interval}
}

// Start begins ticking; the job runs once per interval until Stop or
// context cancellation.
func (t *Ticker) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	if t.stop != nil {
		return nil
	}

	t.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				job(now)
			case <-ctx.Done():
				return
			case <-t.stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the ticker goroutine.
func (t *Ticker) Stop(ctx context.Context) error {
	if t.stop == nil {
		return nil
	}
	close(t.stop)
	t.stop = nil
	return nil
}

package ports

import (
	"context"
	"time"

	"exportsweep/internal/domain"
)

// Notifier pushes human-readable status lines to Telegram or other channels.
type Notifier interface {
	PublishStatus(ctx context.Context, status string) error
}

// EventSink pushes structured run events to machine consumers (webhooks).
type EventSink interface {
	SendEvent(ctx context.Context, payload []byte) error
}

// RunRepository persists finished-run summaries for history/audit. Nothing
// in the automation path depends on it; a nil repository disables history.
type RunRepository interface {
	SaveRun(ctx context.Context, record domain.RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// Ticker drives recurring supervision jobs (the liveness watchdog).
type Ticker interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

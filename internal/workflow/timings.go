package workflow

import (
	"time"

	"exportsweep/internal/config"
)

// Timings carries every bounded-wait knob the controller uses. Each step is
// gated by a real readiness check; the only fixed sleeps are the small
// settle delays around clicks.
type Timings struct {
	PollInterval time.Duration
	SettleDelay  time.Duration

	StepTimeout    time.Duration
	PopoverTimeout time.Duration
	ScanTimeout    time.Duration

	DownloadCeiling time.Duration

	MenuAttempts      int
	MenuAppearTimeout time.Duration
	MenuBackoff       time.Duration

	DeleteMenuWiden   time.Duration
	DeleteMenuCeiling time.Duration

	RemovalTimeout time.Duration

	MaxConsecutiveErrors int
}

// DefaultTimings mirrors the production defaults.
func DefaultTimings() Timings {
	return Timings{
		PollInterval:         250 * time.Millisecond,
		SettleDelay:          400 * time.Millisecond,
		StepTimeout:          10 * time.Second,
		PopoverTimeout:       5 * time.Second,
		ScanTimeout:          10 * time.Second,
		DownloadCeiling:      10 * time.Second,
		MenuAttempts:         3,
		MenuAppearTimeout:    3 * time.Second,
		MenuBackoff:          time.Second,
		DeleteMenuWiden:      5 * time.Second,
		DeleteMenuCeiling:    15 * time.Second,
		RemovalTimeout:       8 * time.Second,
		MaxConsecutiveErrors: 3,
	}
}

// TimingsFromConfig converts the millisecond-based config block, falling
// back to defaults for unset fields.
func TimingsFromConfig(cfg config.TimingsConfig) Timings {
	t := DefaultTimings()
	set := func(dst *time.Duration, ms int) {
		if ms > 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}
	set(&t.PollInterval, cfg.PollIntervalMs)
	set(&t.SettleDelay, cfg.SettleDelayMs)
	set(&t.StepTimeout, cfg.StepTimeoutMs)
	set(&t.PopoverTimeout, cfg.PopoverTimeoutMs)
	set(&t.ScanTimeout, cfg.ScanTimeoutMs)
	set(&t.DownloadCeiling, cfg.DownloadCeilingMs)
	set(&t.MenuAppearTimeout, cfg.MenuAppearTimeoutMs)
	set(&t.MenuBackoff, cfg.MenuBackoffMs)
	set(&t.DeleteMenuWiden, cfg.DeleteMenuWidenMs)
	set(&t.DeleteMenuCeiling, cfg.DeleteMenuCeilingMs)
	set(&t.RemovalTimeout, cfg.RemovalTimeoutMs)
	if cfg.MenuAttempts > 0 {
		t.MenuAttempts = cfg.MenuAttempts
	}
	if cfg.MaxConsecutiveErrors > 0 {
		t.MaxConsecutiveErrors = cfg.MaxConsecutiveErrors
	}
	return t
}

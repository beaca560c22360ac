package locator

import (
	"context"
	"log/slog"
	"time"

	"exportsweep/internal/config"
	"exportsweep/internal/dom"
	"exportsweep/internal/domain"
	"exportsweep/internal/wait"
)

// Step names reported by StepLocatorError.
const (
	StepShareControl    = "share control"
	StepAudioExport     = "audio-export menu option"
	StepFormatOption    = "format option"
	StepExportTrigger   = "export action"
	StepDeleteMenuEntry = "delete menu entry"
)

// Steps binds the per-step locators to one page and selector profile.
type Steps struct {
	page     dom.Page
	profile  config.SelectorProfile
	interval time.Duration
	logger   *slog.Logger
}

// NewSteps wires a locator set. interval defaults to the shared 250ms.
func NewSteps(page dom.Page, profile config.SelectorProfile, interval time.Duration, logger *slog.Logger) *Steps {
	if interval <= 0 {
		interval = wait.DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Steps{page: page, profile: profile, interval: interval, logger: logger}
}

// ShareControl locates the share affordance of the currently selected item.
func (s *Steps) ShareControl(ctx context.Context, timeout time.Duration) (dom.Element, error) {
	return s.find(ctx, StepShareControl, timeout/2, timeout,
		[]Strategy{BySelector(s.page, s.profile.ShareControl)},
		[]Strategy{ByText(s.page, s.profile.TextScanTags, s.profile.ShareControlText)},
	)
}

// AudioExportOption locates the "export audio" entry, preferring a search
// scoped to the opened popover and widening page-wide only when the scoped
// search fails.
func (s *Steps) AudioExportOption(ctx context.Context, popover dom.Element, timeout time.Duration) (dom.Element, error) {
	return s.find(ctx, StepAudioExport, timeout/2, timeout,
		[]Strategy{
			BySelectorIn(popover, s.profile.AudioExport),
			ByTextIn(popover, s.profile.TextScanTags, s.profile.AudioExportText),
		},
		[]Strategy{
			BySelector(s.page, s.profile.AudioExport),
			ByText(s.page, s.profile.TextScanTags, s.profile.AudioExportText),
		},
	)
}

// FormatOption locates the export-format choice (e.g. MP3).
func (s *Steps) FormatOption(ctx context.Context, timeout time.Duration) (dom.Element, error) {
	return s.find(ctx, StepFormatOption, timeout/2, timeout,
		[]Strategy{BySelector(s.page, s.profile.FormatOption)},
		[]Strategy{ByText(s.page, s.profile.TextScanTags, s.profile.FormatOptionText)},
	)
}

// ExportTrigger locates the final control that starts the export.
func (s *Steps) ExportTrigger(ctx context.Context, timeout time.Duration) (dom.Element, error) {
	return s.find(ctx, StepExportTrigger, timeout/2, timeout,
		[]Strategy{BySelector(s.page, s.profile.ExportTrigger)},
		[]Strategy{ByText(s.page, s.profile.TextScanTags, s.profile.ExportTriggerText)},
	)
}

// DeleteMenuEntry locates the "Delete" entry inside an opened context menu.
// The menu may still be rendering, so this polls the known menu-item
// selectors first and widens to a text scan after the narrow window, up to
// the ceiling.
func (s *Steps) DeleteMenuEntry(ctx context.Context, menu dom.Element, narrow, ceiling time.Duration) (dom.Element, error) {
	primary := make([]Strategy, 0, len(s.profile.DeleteSelectors))
	for _, sel := range s.profile.DeleteSelectors {
		primary = append(primary, BySelectorIn(menu, sel))
	}
	widened := []Strategy{
		ByTextIn(menu, s.profile.TextScanTags, s.profile.DeleteText),
		ByText(s.page, s.profile.TextScanTags, s.profile.DeleteText),
	}
	return s.find(ctx, StepDeleteMenuEntry, narrow, ceiling, primary, widened)
}

// find polls the primary strategies until the narrow window closes, then
// keeps polling with the widened chain appended until the ceiling. First
// success wins; exhaustion yields a StepLocatorError naming the step.
func (s *Steps) find(ctx context.Context, step string, narrow, ceiling time.Duration, primary, widened []Strategy) (dom.Element, error) {
	start := time.Now()
	var found dom.Element

	err := wait.ForCondition(ctx, step, ceiling, s.interval, func(ctx context.Context) (bool, error) {
		chain := primary
		if time.Since(start) >= narrow {
			chain = append(append([]Strategy{}, primary...), widened...)
		}
		el, err := FirstMatch(ctx, chain...)
		if err != nil {
			return false, err
		}
		found = el
		return el != nil, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Debug("locator exhausted fallback chain", "step", step, "elapsed", time.Since(start))
		return nil, &domain.StepLocatorError{Step: step}
	}
	return found, nil
}

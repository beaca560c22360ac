// Package playwrightdom implements the dom ports on a real Chromium
// instance driven through playwright-go.
package playwrightdom

import (
	"fmt"

	"github.com/playwright-community/playwright-go"

	"exportsweep/internal/config"
	"exportsweep/internal/dom"
	"exportsweep/pkg/logger"
)

// Session owns one browser instance with a single page navigated to the
// target application.
type Session struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	dom     *pageAdapter
}

// NewSession installs the driver if needed, launches Chromium and opens
// the target application. Background runs use a headless browser.
func NewSession(cfg config.BrowserConfig, headless bool) (*Session, error) {
	driverOut := logger.Writer("playwright", nil)
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  driverOut,
		Stderr:  driverOut,
	}

	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new browser context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		_ = context.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("new page: %w", err)
	}

	if cfg.BaseURL != "" {
		gotoOpts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad}
		if cfg.NavTimeoutMs > 0 {
			gotoOpts.Timeout = playwright.Float(float64(cfg.NavTimeoutMs))
		}
		if _, err := page.Goto(cfg.BaseURL, gotoOpts); err != nil {
			_ = context.Close()
			_ = browser.Close()
			_ = pw.Stop()
			return nil, fmt.Errorf("open %s: %w", cfg.BaseURL, err)
		}
	}

	return &Session{
		pw:      pw,
		browser: browser,
		context: context,
		page:    page,
		dom:     &pageAdapter{p: page, observer: newDownloadObserver(page)},
	}, nil
}

// Dom returns the page handle the automation primitives work with.
func (s *Session) Dom() dom.Page {
	return s.dom
}

// Close tears the browser down.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	if s.context != nil {
		_ = s.context.Close()
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.pw != nil {
		return s.pw.Stop()
	}
	return nil
}

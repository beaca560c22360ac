package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "EXPORTSWEEP_CONFIG"
	listenAddrEnv     = "EXPORTSWEEP_LISTEN"
	baseURLEnv        = "EXPORTSWEEP_BASE_URL"
	headlessEnv       = "EXPORTSWEEP_HEADLESS"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	webhookEndpoint   = "WEBHOOK_ENDPOINT"
	webhookTokenEnv   = "WEBHOOK_AUTH_TOKEN"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Browser       BrowserConfig      `yaml:"browser"`
	Coordinator   CoordinatorConfig  `yaml:"coordinator"`
	Timings       TimingsConfig      `yaml:"timings"`
	Notifications NotificationConfig `yaml:"notifications"`
	Database      DatabaseConfig     `yaml:"database"`
	Profile       string             `yaml:"profile"`
	Profiles      []SelectorProfile  `yaml:"profiles"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// BrowserConfig describes how automation sessions are launched.
type BrowserConfig struct {
	// BaseURL is the target application's library page.
	BaseURL string `yaml:"baseUrl"`

	// Headless launches background runs without a visible window.
	// Foreground runs always get a window.
	Headless bool `yaml:"headless"`

	// NavTimeoutMs bounds the initial navigation.
	NavTimeoutMs int `yaml:"navTimeoutMs"`
}

// CoordinatorConfig tunes the control surface and run supervision.
type CoordinatorConfig struct {
	ListenAddr         string `yaml:"listenAddr"`
	NotifyEvery        int    `yaml:"notifyEvery"`
	StallAfterMs       int    `yaml:"stallAfterMs"`
	WatchdogIntervalMs int    `yaml:"watchdogIntervalMs"`
}

// StallAfter resolves the stall threshold.
func (c CoordinatorConfig) StallAfter() time.Duration {
	return time.Duration(c.StallAfterMs) * time.Millisecond
}

// WatchdogInterval resolves the watchdog tick cadence.
func (c CoordinatorConfig) WatchdogInterval() time.Duration {
	return time.Duration(c.WatchdogIntervalMs) * time.Millisecond
}

// TimingsConfig carries every bounded-wait knob, in milliseconds.
type TimingsConfig struct {
	PollIntervalMs       int `yaml:"pollIntervalMs"`
	SettleDelayMs        int `yaml:"settleDelayMs"`
	StepTimeoutMs        int `yaml:"stepTimeoutMs"`
	PopoverTimeoutMs     int `yaml:"popoverTimeoutMs"`
	ScanTimeoutMs        int `yaml:"scanTimeoutMs"`
	DownloadCeilingMs    int `yaml:"downloadCeilingMs"`
	MenuAttempts         int `yaml:"menuAttempts"`
	MenuAppearTimeoutMs  int `yaml:"menuAppearTimeoutMs"`
	MenuBackoffMs        int `yaml:"menuBackoffMs"`
	DeleteMenuWidenMs    int `yaml:"deleteMenuWidenMs"`
	DeleteMenuCeilingMs  int `yaml:"deleteMenuCeilingMs"`
	RemovalTimeoutMs     int `yaml:"removalTimeoutMs"`
	MaxConsecutiveErrors int `yaml:"maxConsecutiveErrors"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// WebhookConfig defines the JSON status sink.
type WebhookConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AuthToken string `yaml:"authToken"`
}

// DatabaseConfig describes the optional run-history store. An empty DSN
// disables persistence entirely.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SelectorProfile is the brittle selector contract with one target
// application's current markup. Each step pairs a primary selector with a
// text fallback searched across TextScanTags.
type SelectorProfile struct {
	Name string `yaml:"name"`

	ItemContainer string `yaml:"itemContainer"`
	ItemTitle     string `yaml:"itemTitle"`

	ShareControl     string `yaml:"shareControl"`
	ShareControlText string `yaml:"shareControlText"`

	Popover string `yaml:"popover"`

	AudioExport     string `yaml:"audioExport"`
	AudioExportText string `yaml:"audioExportText"`

	FormatOption     string `yaml:"formatOption"`
	FormatOptionText string `yaml:"formatOptionText"`

	ExportTrigger     string `yaml:"exportTrigger"`
	ExportTriggerText string `yaml:"exportTriggerText"`

	ContextMenu     string   `yaml:"contextMenu"`
	DeleteSelectors []string `yaml:"deleteSelectors"`
	DeleteText      string   `yaml:"deleteText"`

	// TextScanTags is the wide tag set the text fallback searches.
	TextScanTags string `yaml:"textScanTags"`
}

// ActiveProfile resolves the configured profile by name, falling back to
// the first one.
func (c Config) ActiveProfile() SelectorProfile {
	for _, p := range c.Profiles {
		if p.Name == c.Profile {
			return p
		}
	}
	if len(c.Profiles) > 0 {
		return c.Profiles[0]
	}
	return defaultConfig().Profiles[0]
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()

	if len(cfg.Profiles) == 0 {
		cfg.Profiles = defaultConfig().Profiles
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(listenAddrEnv); v != "" {
		c.Coordinator.ListenAddr = v
	}
	if v := os.Getenv(baseURLEnv); v != "" {
		c.Browser.BaseURL = v
	}
	if v := os.Getenv(headlessEnv); v != "" {
		c.Browser.Headless = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv(webhookEndpoint); v != "" {
		c.Notifications.Webhook.Endpoint = v
	}
	if v := os.Getenv(webhookTokenEnv); v != "" {
		c.Notifications.Webhook.AuthToken = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Browser.BaseURL != "" {
		base.Browser.BaseURL = override.Browser.BaseURL
	}
	if override.Browser.NavTimeoutMs > 0 {
		base.Browser.NavTimeoutMs = override.Browser.NavTimeoutMs
	}
	base.Browser.Headless = base.Browser.Headless || override.Browser.Headless

	if override.Coordinator.ListenAddr != "" {
		base.Coordinator.ListenAddr = override.Coordinator.ListenAddr
	}
	if override.Coordinator.NotifyEvery > 0 {
		base.Coordinator.NotifyEvery = override.Coordinator.NotifyEvery
	}
	if override.Coordinator.StallAfterMs > 0 {
		base.Coordinator.StallAfterMs = override.Coordinator.StallAfterMs
	}
	if override.Coordinator.WatchdogIntervalMs > 0 {
		base.Coordinator.WatchdogIntervalMs = override.Coordinator.WatchdogIntervalMs
	}

	base.Timings = mergeTimings(base.Timings, override.Timings)

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Webhook.Endpoint != "" {
		base.Notifications.Webhook.Endpoint = override.Notifications.Webhook.Endpoint
	}
	if override.Notifications.Webhook.AuthToken != "" {
		base.Notifications.Webhook.AuthToken = override.Notifications.Webhook.AuthToken
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Profile != "" {
		base.Profile = override.Profile
	}
	if len(override.Profiles) > 0 {
		base.Profiles = override.Profiles
	}

	return base
}

func mergeTimings(base, override TimingsConfig) TimingsConfig {
	if override.PollIntervalMs > 0 {
		base.PollIntervalMs = override.PollIntervalMs
	}
	if override.SettleDelayMs > 0 {
		base.SettleDelayMs = override.SettleDelayMs
	}
	if override.StepTimeoutMs > 0 {
		base.StepTimeoutMs = override.StepTimeoutMs
	}
	if override.PopoverTimeoutMs > 0 {
		base.PopoverTimeoutMs = override.PopoverTimeoutMs
	}
	if override.ScanTimeoutMs > 0 {
		base.ScanTimeoutMs = override.ScanTimeoutMs
	}
	if override.DownloadCeilingMs > 0 {
		base.DownloadCeilingMs = override.DownloadCeilingMs
	}
	if override.MenuAttempts > 0 {
		base.MenuAttempts = override.MenuAttempts
	}
	if override.MenuAppearTimeoutMs > 0 {
		base.MenuAppearTimeoutMs = override.MenuAppearTimeoutMs
	}
	if override.MenuBackoffMs > 0 {
		base.MenuBackoffMs = override.MenuBackoffMs
	}
	if override.DeleteMenuWidenMs > 0 {
		base.DeleteMenuWidenMs = override.DeleteMenuWidenMs
	}
	if override.DeleteMenuCeilingMs > 0 {
		base.DeleteMenuCeilingMs = override.DeleteMenuCeilingMs
	}
	if override.RemovalTimeoutMs > 0 {
		base.RemovalTimeoutMs = override.RemovalTimeoutMs
	}
	if override.MaxConsecutiveErrors > 0 {
		base.MaxConsecutiveErrors = override.MaxConsecutiveErrors
	}
	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Browser: BrowserConfig{
			BaseURL:      "https://app.example.com/library",
			Headless:     true,
			NavTimeoutMs: 30000,
		},
		Coordinator: CoordinatorConfig{
			ListenAddr:         ":8745",
			NotifyEvery:        10,
			StallAfterMs:       120000,
			WatchdogIntervalMs: 30000,
		},
		Timings: TimingsConfig{
			PollIntervalMs:       250,
			SettleDelayMs:        400,
			StepTimeoutMs:        10000,
			PopoverTimeoutMs:     5000,
			ScanTimeoutMs:        10000,
			DownloadCeilingMs:    10000,
			MenuAttempts:         3,
			MenuAppearTimeoutMs:  3000,
			MenuBackoffMs:        1000,
			DeleteMenuWidenMs:    5000,
			DeleteMenuCeilingMs:  15000,
			RemovalTimeoutMs:     8000,
			MaxConsecutiveErrors: 3,
		},
		Database: DatabaseConfig{DSN: ""},
		Profile:  "library",
		Profiles: []SelectorProfile{
			{
				Name:              "library",
				ItemContainer:     "div.file-list-item",
				ItemTitle:         ".file-item-title",
				ShareControl:      "button[aria-label='Share']",
				ShareControlText:  "Share",
				Popover:           "div[role='menu'].share-popover",
				AudioExport:       "div[role='menuitem'].export-audio",
				AudioExportText:   "Export audio",
				FormatOption:      "div[role='menuitem'].format-mp3",
				FormatOptionText:  "MP3",
				ExportTrigger:     "button.export-confirm",
				ExportTriggerText: "Export",
				ContextMenu:       "div[role='menu'].context-menu",
				DeleteSelectors: []string{
					"div[role='menuitem'].delete-entry",
					"li.menu-item-delete",
				},
				DeleteText:   "Delete",
				TextScanTags: "a, button, span, div, li, [role='menuitem']",
			},
		},
	}
}

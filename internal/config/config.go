// Package config handles typewatch configuration from YAML files.
// Configuration is static per run; nothing here is reconfigurable at
// runtime.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/typewatch/typewatch/internal/profile"
)

// Config is the top-level typewatch configuration.
type Config struct {
	Page     PageConfig        `yaml:"page"`
	Browser  BrowserConfig     `yaml:"browser"`
	Timing   TimingConfig      `yaml:"timing"`
	Picker   PickerConfig      `yaml:"picker"`
	Profiles []profile.Profile `yaml:"profiles"`
	Sinks    []SinkConfig      `yaml:"sinks"`

	// StatusAddr serves the read-only phase endpoint when non-empty
	// (e.g. "127.0.0.1:8139").
	StatusAddr string `yaml:"status_addr"`

	// JournalPath enables the SQLite phase-event journal when non-empty.
	JournalPath string `yaml:"journal_path"`
}

// PageConfig identifies the page to watch.
type PageConfig struct {
	URL string `yaml:"url"`
	ID  string `yaml:"id"`
	// Profile forces a named profile instead of resolving by host.
	Profile string `yaml:"profile"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome.
	Remote string `yaml:"remote"`
	// Stealth: headless | headful.
	Stealth string `yaml:"stealth"`
	// ResourceBlocking lists resource types to block (images, fonts, media).
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// TimingConfig holds the detection constants.
type TimingConfig struct {
	// TickInterval drives the sample loop. Default: 250ms.
	TickInterval time.Duration `yaml:"tick_interval"`
	// InactivityThreshold declares writing over after this much quiet.
	// Default: 3s.
	InactivityThreshold time.Duration `yaml:"inactivity_threshold"`
	// GrowthThreshold is the per-tick noise floor in characters. Default: 1.
	GrowthThreshold int `yaml:"growth_threshold"`
	// RefreshInterval re-runs node resolution. Default: 1500ms.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// WaitingTimeout bounds the waiting phase. 0 = unbounded (default).
	WaitingTimeout time.Duration `yaml:"waiting_timeout"`
}

// PickerConfig controls the manual picker.
type PickerConfig struct {
	// Hotkey toggles picking mode. Default: "alt+p".
	Hotkey string `yaml:"hotkey"`
	// PinManualPicks keeps a picked node against automatic refresh until
	// it leaves the document. Default: true.
	PinManualPicks *bool `yaml:"pin_manual_picks"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset field with the documented default.
func (c *Config) ApplyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Timing.TickInterval <= 0 {
		c.Timing.TickInterval = 250 * time.Millisecond
	}
	if c.Timing.InactivityThreshold <= 0 {
		c.Timing.InactivityThreshold = 3 * time.Second
	}
	if c.Timing.GrowthThreshold <= 0 {
		c.Timing.GrowthThreshold = 1
	}
	if c.Timing.RefreshInterval <= 0 {
		c.Timing.RefreshInterval = 1500 * time.Millisecond
	}
	if c.Picker.Hotkey == "" {
		c.Picker.Hotkey = "alt+p"
	}
	if c.Picker.PinManualPicks == nil {
		v := true
		c.Picker.PinManualPicks = &v
	}
}

package typewatch

import (
	"github.com/typewatch/typewatch/internal/config"
	"github.com/typewatch/typewatch/internal/profile"
)

// Config is the top-level typewatch configuration. Re-exported from internal.
type Config = config.Config

// PageConfig identifies the page to watch.
type PageConfig = config.PageConfig

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// TimingConfig holds the detection constants.
type TimingConfig = config.TimingConfig

// PickerConfig controls the manual picker.
type PickerConfig = config.PickerConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// Profile is a named set of heuristics for locating the relevant regions on
// a class of page.
type Profile = profile.Profile

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

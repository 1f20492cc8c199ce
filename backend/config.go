package backend

import (
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// Application configuration and per-run settings

// Config holds the persisted user preferences, stored as an INI file
// under the user config dir.
type Config struct {
	GameDir     string `ini:"game_dir"`
	HighQuality bool   `ini:"high_quality"`
	Normalize   bool   `ini:"normalize"`
	LogLevel    string `ini:"log_level"`
	ProxyURL    string `ini:"proxy_url"`
}

var defaultConfig = Config{
	GameDir:     "",
	HighQuality: false,
	Normalize:   true,
	LogLevel:    "info",
}

// GetDefaultConfig returns a copy of the built-in defaults.
func GetDefaultConfig() *Config {
	c := defaultConfig
	return &c
}

// LoadConfig loads configuration from the INI file, returning defaults
// when the file does not exist.
func LoadConfig() (*Config, error) {
	configPath := GetConfigPath()

	file, err := ini.Load(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return GetDefaultConfig(), nil
		}
		return nil, err
	}

	config := defaultConfig
	if err := file.Section("").MapTo(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig saves configuration to the INI file.
func SaveConfig(config *Config) error {
	configPath := GetConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	file := ini.Empty()
	if err := file.Section("").ReflectFrom(config); err != nil {
		return err
	}

	return file.SaveTo(configPath)
}

// RunConfig is the immutable per-run configuration threaded through the
// pipeline. It is constructed once when a run starts and never mutated.
type RunConfig struct {
	Slot       Slot
	DestFolder string
	Profile    QualityProfile
	Normalize  bool

	// SourceURL and LocalFiles are mutually exclusive inputs.
	SourceURL  string
	LocalFiles []string

	// CoverPath is an optional user-supplied cover image. When set it
	// always wins over thumbnail-derived covers.
	CoverPath string

	// AssumeYes skips the destructive-cleanup confirmation prompt.
	AssumeYes bool
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Settings are the non-secret CLI preferences.
type Settings struct {
	Output      string        `mapstructure:"output" validate:"oneof=text json jsonl"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Concurrency int           `mapstructure:"concurrency" validate:"min=1,max=32"`
	Profile     string        `mapstructure:"profile"`
}

// DefaultSettings are used for keys missing from both file and environment.
var DefaultSettings = Settings{
	Output:      "text",
	Timeout:     30 * time.Second,
	Concurrency: 4,
}

// SettingsPath returns $XDG_CONFIG_HOME/harvest-cli/config.yaml (or the
// platform equivalent).
func SettingsPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, serviceName, "config.yaml"), nil
}

// LoadSettings reads path (SettingsPath when empty) and overlays HARVEST_*
// environment variables. A missing file is not an error.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		p, err := SettingsPath()
		if err != nil {
			return Settings{}, err
		}
		path = p
	}

	v := viper.New()
	v.SetDefault("output", DefaultSettings.Output)
	v.SetDefault("timeout", DefaultSettings.Timeout)
	v.SetDefault("concurrency", DefaultSettings.Concurrency)
	v.SetDefault("profile", DefaultSettings.Profile)
	v.SetEnvPrefix("HARVEST")
	v.AutomaticEnv()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

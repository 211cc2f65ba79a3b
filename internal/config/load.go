package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/fernandocchaves/tabtalk/internal/store"
)

// ErrConfigNotFound is returned by Load when no config file exists yet.
var ErrConfigNotFound = errors.New("config not found")

// GetConfigPath returns ~/.config/tabtalk/config.toml, creating the
// directory if needed.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	dir := filepath.Join(configDir, "tabtalk")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, fills unset fields with defaults, and
// applies environment overrides.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: run tabtalk configure", ErrConfigNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	var config Config
	meta, err := toml.DecodeFile(configPath, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	config.applyDefaults(meta)
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadOrDefault behaves like Load but falls back to the default
// configuration when no file exists.
func LoadOrDefault() (*Config, error) {
	config, err := Load()
	if errors.Is(err, ErrConfigNotFound) {
		config = DefaultConfig()
		if err := config.applyEnv(); err != nil {
			return nil, err
		}
		return config, nil
	}
	return config, err
}

// Save writes the configuration to the config path in TOML form.
func Save(config *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DatabasePath resolves the SQLite database location, honoring the
// data_dir override.
func (c *Config) DatabasePath() (string, error) {
	if c.DataDir != "" {
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return "", fmt.Errorf("create data dir: %w", err)
		}
		return filepath.Join(c.DataDir, "tabtalk.db"), nil
	}
	return store.DefaultDBPath()
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/voxpipe/voxpipe/internal/logging"
)

var ErrConfigNotFound = errors.New("config not found")

func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	voxpipeDir := filepath.Join(configDir, "voxpipe")
	if err := os.MkdirAll(voxpipeDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(voxpipeDir, "config.toml"), nil
}

// Load reads the configuration from the default location. A missing file is
// not an error: defaults apply.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile reads the configuration from path, layered over defaults.
func LoadFile(path string) (*Config, error) {
	log := logging.Component("config")
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info().Str("path", path).Msg("no config file, using defaults")
		config.applyLLMDefaults()
		return config, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", path, err)
	}

	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}
	config.applyLLMDefaults()

	log.Info().Str("path", path).Msg("configuration loaded")
	return config, nil
}

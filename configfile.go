package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// hyperConFile is the name HyperCon exports under. It is picked up from the
// working directory when no config exists at the default path.
const hyperConFile = "hyperion.config.json"

// configDir overrides the default config directory for testing.
// When empty, the user's home directory is used.
var configDir string

// DefaultConfigPath returns ~/.ledsync/config.json.
func DefaultConfigPath() (string, error) {
	if configDir != "" {
		return filepath.Join(configDir, "config.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ledsync", "config.json"), nil
}

// ResolveConfigPath returns path if set, otherwise the default path, or
// hyperion.config.json in the working directory when only that exists.
func ResolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	def, err := DefaultConfigPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(def); errors.Is(err, fs.ErrNotExist) {
		if _, err := os.Stat(hyperConFile); err == nil {
			return hyperConFile, nil
		}
	}
	return def, nil
}

// LoadConfig reads and validates the config at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return ParseConfig(path, data)
}

// SaveConfig writes cfg to path, as YAML for .yaml/.yml and JSON otherwise.
// Creates the directory with 0700 if needed. An existing file is not
// overwritten.
func SaveConfig(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

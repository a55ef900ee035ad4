// Package config loads the assistant's YAML configuration.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds client settings.
type Config struct {
	BaseURL      string `yaml:"base_url"`
	APIToken     string `yaml:"api_token"`
	Model        string `yaml:"model"`
	NotebookPath string `yaml:"notebook_path"`
	DebounceMS   int    `yaml:"debounce_ms"`
	SearchLimit  int    `yaml:"search_limit"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:      "http://localhost:8000",
		Model:        "gpt-4o-mini",
		NotebookPath: defaultNotebookPath(),
		DebounceMS:   300,
		SearchLimit:  20,
	}
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "assistant.yaml"
	}
	return filepath.Join(home, ".research-assistant", "config.yaml")
}

func defaultNotebookPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "notebook.json"
	}
	return filepath.Join(home, ".research-assistant", "notebook.json")
}

// Load reads the config at path, falling back to defaults for a missing
// file and for any unset field.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.NotebookPath == "" {
		cfg.NotebookPath = defaultNotebookPath()
	}
	if cfg.DebounceMS <= 0 {
		cfg.DebounceMS = 300
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 20
	}
	return cfg, nil
}

// DebounceWindow returns the debounce window as a duration.
func (c Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

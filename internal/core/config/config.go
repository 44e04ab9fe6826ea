package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds user settings for viewing and exporting conversations.
type Config struct {
	// DefaultTurns is how many recent turns `view` shows without flags.
	DefaultTurns int
	// SuppressBoundaries merges compaction seams instead of marking them.
	SuppressBoundaries bool
	// MechanicalKinds are the entry kinds branch detection treats as
	// bookkeeping fan-out rather than conversational alternatives.
	MechanicalKinds []string
	// ExportTemplate overrides the built-in markdown export template.
	ExportTemplate string
}

type tomlConfig struct {
	View struct {
		DefaultTurns       int  `toml:"default_turns"`
		SuppressBoundaries bool `toml:"suppress_boundaries"`
	} `toml:"view"`
	Branch struct {
		MechanicalKinds []string `toml:"mechanical_kinds"`
	} `toml:"branch"`
}

// Load reads config from ~/.config/cchat/. A missing config file means
// defaults; a malformed one is ignored rather than fatal.
func Load() (*Config, error) {
	cfg := &Config{
		DefaultTurns: 5,
	}

	configDir := dir()
	if configDir == "" {
		return cfg, nil // Use defaults
	}

	tomlPath := filepath.Join(configDir, "config.toml")

	// Load TOML config if it exists
	if _, err := os.Stat(tomlPath); err == nil {
		var tc tomlConfig
		if _, err := toml.DecodeFile(tomlPath, &tc); err == nil {
			if tc.View.DefaultTurns > 0 {
				cfg.DefaultTurns = tc.View.DefaultTurns
			}
			cfg.SuppressBoundaries = tc.View.SuppressBoundaries
			cfg.MechanicalKinds = tc.Branch.MechanicalKinds
		}
	}

	// If custom export template exists, use it
	if data, err := os.ReadFile(filepath.Join(configDir, "export_template.md")); err == nil {
		cfg.ExportTemplate = string(data)
	}

	return cfg, nil
}

func dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cchat")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "cchat")
}

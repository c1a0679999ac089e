// Package config manages the persisted rota configuration: global defaults
// plus per-unit settings, stored as a single YAML document under the rota
// home directory.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Builtin defaults applied when neither the unit nor the global config sets
// a value.
const (
	DefaultCLI            = "claude"
	DefaultOverlap        = OverlapSkip
	DefaultSchedule       = "*/5 * * * *"
	DefaultTimeoutSeconds = 300
)

// OverlapPolicy governs what happens when a unit's schedule fires while a
// previous run of the same unit is still active.
type OverlapPolicy string

const (
	OverlapSkip     OverlapPolicy = "skip"
	OverlapQueue    OverlapPolicy = "queue"
	OverlapParallel OverlapPolicy = "parallel"
)

// ParseOverlap maps a config string to an OverlapPolicy. Unknown values fall
// back to skip, matching the trigger protocol's default branch.
func ParseOverlap(s string) OverlapPolicy {
	switch OverlapPolicy(strings.TrimSpace(s)) {
	case OverlapQueue:
		return OverlapQueue
	case OverlapParallel:
		return OverlapParallel
	default:
		return OverlapSkip
	}
}

// UnitConfig holds the per-unit settings. Empty optional fields inherit the
// global defaults.
type UnitConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
	CLI      string `yaml:"cli,omitempty"`     // empty = global default
	Model    string `yaml:"model,omitempty"`   // empty = global default
	Overlap  string `yaml:"overlap,omitempty"` // empty = global default
	Timeout  int    `yaml:"timeout,omitempty"` // confirmation timeout in seconds; 0 = default
}

// DefaultUnitConfig returns the settings a freshly discovered unit starts with.
func DefaultUnitConfig() UnitConfig {
	return UnitConfig{
		Enabled:  true,
		Schedule: DefaultSchedule,
	}
}

// UnmarshalYAML decodes a unit section on top of the defaults so that absent
// fields keep their default values (notably enabled: true).
func (u *UnitConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw UnitConfig
	r := raw(DefaultUnitConfig())
	if err := value.Decode(&r); err != nil {
		return err
	}
	*u = UnitConfig(r)
	if strings.TrimSpace(u.Schedule) == "" {
		u.Schedule = DefaultSchedule
	}
	return nil
}

// Defaults holds the global fallback settings.
type Defaults struct {
	CLI     string `yaml:"cli"`
	Model   string `yaml:"model,omitempty"`
	Overlap string `yaml:"overlap"`
	Timeout int    `yaml:"timeout,omitempty"`
}

// TelegramConfig configures the Telegram notification channel. When the
// token is empty the channel stays disabled and confirmations are only
// logged.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token,omitempty"`
	ChatID  int64  `yaml:"chat_id,omitempty"`
}

// Config is the full persisted configuration document.
type Config struct {
	Version  int                   `yaml:"version"`
	Defaults Defaults              `yaml:"defaults"`
	Telegram TelegramConfig        `yaml:"telegram,omitempty"`
	Units    map[string]UnitConfig `yaml:"units"`
}

// NewConfig returns a configuration populated with builtin defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Defaults: Defaults{
			CLI:     DefaultCLI,
			Overlap: string(DefaultOverlap),
			Timeout: DefaultTimeoutSeconds,
		},
		Units: map[string]UnitConfig{},
	}
}

// applyDefaults fills gaps left by an older or hand-edited config file.
func applyDefaults(c *Config) {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Defaults.CLI == "" {
		c.Defaults.CLI = DefaultCLI
	}
	if c.Defaults.Overlap == "" {
		c.Defaults.Overlap = string(DefaultOverlap)
	}
	if c.Defaults.Timeout == 0 {
		c.Defaults.Timeout = DefaultTimeoutSeconds
	}
	if c.Units == nil {
		c.Units = map[string]UnitConfig{}
	}
}

// DefaultHome returns the rota home directory (~/.rota), honoring the
// ROTA_HOME environment variable when set.
func DefaultHome() string {
	if home := os.Getenv("ROTA_HOME"); home != "" {
		return expandHome(home)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".rota"
	}
	return filepath.Join(userHome, ".rota")
}

// expandHome expands a leading ~ in a path.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

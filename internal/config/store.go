package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store persists the configuration document under the rota home directory.
// All mutations go through Update so that concurrent readers see a
// consistent snapshot and every change is written back to disk.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// NewStore creates a store for <home>/config.yaml and loads the current
// contents. A missing file yields the builtin defaults.
func NewStore(home string) (*Store, error) {
	if err := os.MkdirAll(home, 0755); err != nil {
		return nil, fmt.Errorf("failed to create home directory %s: %w", home, err)
	}

	s := &Store{path: filepath.Join(home, "config.yaml")}
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cfg = cfg
	return s, nil
}

// Snapshot returns a deep copy of the current configuration.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.clone()
}

// Defaults returns the current global defaults.
func (s *Store) Defaults() Defaults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Defaults
}

// Telegram returns the notification channel settings.
func (s *Store) Telegram() TelegramConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Telegram
}

// UnitConfig returns the settings for a unit id, falling back to the
// defaults for unknown units.
func (s *Store) UnitConfig(id string) UnitConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if uc, ok := s.cfg.Units[id]; ok {
		return uc
	}
	return DefaultUnitConfig()
}

// Update applies a mutation to the configuration and persists the result.
func (s *Store) Update(mutate func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.clone()
	mutate(next)
	applyDefaults(next)

	if err := s.save(next); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// UpdateUnit applies a mutation to one unit's settings and persists the
// result. Unknown ids are seeded with the default unit config first.
func (s *Store) UpdateUnit(id string, mutate func(*UnitConfig)) error {
	return s.Update(func(c *Config) {
		uc, ok := c.Units[id]
		if !ok {
			uc = DefaultUnitConfig()
		}
		mutate(&uc)
		c.Units[id] = uc
	})
}

// EnsureUnits seeds config entries for newly discovered unit ids, keeping
// existing settings untouched. Persists only when something was added.
func (s *Store) EnsureUnits(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	missing := false
	for _, id := range ids {
		if _, ok := s.cfg.Units[id]; !ok {
			missing = true
			break
		}
	}
	if !missing {
		return nil
	}

	next := s.cfg.clone()
	for _, id := range ids {
		if _, ok := next.Units[id]; !ok {
			next.Units[id] = DefaultUnitConfig()
		}
	}
	if err := s.save(next); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// load reads the config file, tolerating a missing file.
func (s *Store) load() (*Config, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// save writes the document atomically (temp file + rename).
func (s *Store) save(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// clone deep-copies a configuration document.
func (c *Config) clone() *Config {
	out := *c
	out.Units = make(map[string]UnitConfig, len(c.Units))
	for id, uc := range c.Units {
		out.Units[id] = uc
	}
	return &out
}

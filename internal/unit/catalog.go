package unit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/logger"
)

// Catalog owns the list of discovered units. The scheduler reads it on every
// tick and the runner once per run; both get immutable snapshots. Refresh
// publishes a new list atomically under the mutex.
type Catalog struct {
	mu     sync.RWMutex
	home   string
	store  *config.Store
	logger *logger.Logger
	units  []Unit
}

// NewCatalog creates a catalog rooted at the rota home directory.
func NewCatalog(home string, store *config.Store, log *logger.Logger) *Catalog {
	return &Catalog{
		home:   home,
		store:  store,
		logger: log,
	}
}

// Refresh rescans the home directory for unit folders. Folders without a
// SKILL.md are ignored; a folder whose document fails to parse is skipped
// with a warning so one broken unit cannot hide the rest.
func (c *Catalog) Refresh() error {
	if err := os.MkdirAll(c.home, 0755); err != nil {
		return fmt.Errorf("failed to create home directory %s: %w", c.home, err)
	}

	entries, err := os.ReadDir(c.home)
	if err != nil {
		return fmt.Errorf("failed to read home directory %s: %w", c.home, err)
	}

	var units []Unit
	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(c.home, entry.Name())
		if _, err := os.Stat(filepath.Join(path, SkillFileName)); err != nil {
			continue
		}

		u, err := c.loadUnit(entry.Name(), path)
		if err != nil {
			c.logger.Warn("skipping unit with invalid skill document",
				logger.Field{Key: "unit", Value: entry.Name()},
				logger.Field{Key: "error", Value: err})
			continue
		}

		units = append(units, u)
		ids = append(ids, u.ID)
	}

	sort.Slice(units, func(i, j int) bool {
		return strings.ToLower(units[i].DisplayName) < strings.ToLower(units[j].DisplayName)
	})

	// Seed config entries for newly discovered units.
	if err := c.store.EnsureUnits(ids); err != nil {
		return fmt.Errorf("failed to sync config with discovered units: %w", err)
	}

	c.mu.Lock()
	c.units = units
	c.mu.Unlock()

	c.logger.Debug("catalog refreshed", logger.Field{Key: "units", Value: len(units)})
	return nil
}

// loadUnit builds a descriptor from a unit folder.
func (c *Catalog) loadUnit(id, path string) (Unit, error) {
	content, err := os.ReadFile(filepath.Join(path, SkillFileName))
	if err != nil {
		return Unit{}, fmt.Errorf("failed to read skill document: %w", err)
	}

	fm, err := parseFrontmatter(string(content))
	if err != nil {
		return Unit{}, err
	}

	displayName := fm.Metadata.DisplayName
	if displayName == "" {
		displayName = id
	}
	icon := fm.Metadata.Icon
	if icon == "" {
		icon = "ant"
	}

	return Unit{
		ID:           id,
		DisplayName:  displayName,
		Icon:         icon,
		Description:  fm.Description,
		Path:         path,
		AllowedTools: fm.AllowedTools,
		Config:       c.store.UnitConfig(id),
	}, nil
}

// Units returns a snapshot of the current catalog.
func (c *Catalog) Units() []Unit {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Unit, len(c.units))
	copy(out, c.units)
	return out
}

// Get returns the unit with the given id.
func (c *Catalog) Get(id string) (Unit, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, u := range c.units {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

// UpdateConfig mutates one unit's settings, persists them through the config
// store, and updates the in-memory snapshot.
func (c *Catalog) UpdateConfig(id string, mutate func(*config.UnitConfig)) error {
	if err := c.store.UpdateUnit(id, mutate); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.units {
		if c.units[i].ID == id {
			c.units[i].Config = c.store.UnitConfig(id)
			break
		}
	}
	return nil
}

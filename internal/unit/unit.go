// Package unit discovers and describes the scheduled agent units under the
// rota home directory. A unit is a folder containing a SKILL.md instruction
// document (with YAML frontmatter) and an optional scripts/ subdirectory of
// context-gathering helpers.
package unit

import (
	"path/filepath"

	"github.com/rota-dev/rota/internal/config"
)

// SkillFileName is the instruction document every unit folder must contain.
const SkillFileName = "SKILL.md"

// Unit is an immutable descriptor of one scheduled agent task. The catalog
// hands a fresh snapshot to the scheduler and the runner per use.
type Unit struct {
	ID           string // folder name, stable identity
	DisplayName  string // metadata.display-name, falls back to ID
	Icon         string // metadata.icon, falls back to "ant"
	Description  string
	Path         string // absolute unit folder path
	AllowedTools []string
	Config       config.UnitConfig
}

// SkillPath returns the path of the unit's instruction document.
func (u Unit) SkillPath() string {
	return filepath.Join(u.Path, SkillFileName)
}

// ScriptsPath returns the path of the unit's context scripts directory.
func (u Unit) ScriptsPath() string {
	return filepath.Join(u.Path, "scripts")
}

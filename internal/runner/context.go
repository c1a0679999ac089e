package runner

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rota-dev/rota/internal/logger"
	"github.com/rota-dev/rota/internal/unit"
)

// gatherContext runs every executable in the unit's scripts directory,
// sorted by name, with the unit root as working directory, and concatenates
// their output. A failing script contributes an inline error section;
// gathering never aborts the run.
func (r *Runner) gatherContext(u unit.Unit) string {
	scriptsDir := u.ScriptsPath()
	entries, err := os.ReadDir(scriptsDir)
	if err != nil {
		// No scripts directory means no context.
		return ""
	}

	var parts []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Mode()&0111 == 0 {
			continue
		}

		stdout, _, exitCode, err := r.executor.Execute(filepath.Join(scriptsDir, name), nil, u.Path)
		switch {
		case err != nil:
			parts = append(parts, "# Error running "+name+": "+err.Error())
			r.logger.Warn("context script failed",
				logger.Field{Key: "unit", Value: u.ID},
				logger.Field{Key: "script", Value: name},
				logger.Field{Key: "error", Value: err})
		case exitCode != 0:
			parts = append(parts, "# Error running "+name+": exit code "+strconv.Itoa(exitCode))
		case stdout != "":
			parts = append(parts, "# Context from "+name+"\n"+stdout)
		}
	}

	return strings.Join(parts, "\n\n")
}

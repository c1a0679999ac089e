package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rota-dev/rota/internal/unit"
)

// LogSink persists one record per run, addressable by unit id and start time.
type LogSink interface {
	Write(u unit.Unit, res Result, started time.Time) error
}

// FileLogSink writes run logs under <home>/logs/<unit-id>/<timestamp>.log.
type FileLogSink struct {
	home string
}

// NewFileLogSink creates a sink rooted at the given home directory.
func NewFileLogSink(home string) *FileLogSink {
	return &FileLogSink{home: home}
}

func (s *FileLogSink) Write(u unit.Unit, res Result, started time.Time) error {
	dir := filepath.Join(s.home, "logs", u.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	timestamp := started.Format("2006-01-02T15:04:05")

	var b strings.Builder
	fmt.Fprintf(&b, "# Run: %s\n", u.DisplayName)
	fmt.Fprintf(&b, "# Timestamp: %s\n", timestamp)
	fmt.Fprintf(&b, "# Duration: %.2fs\n", res.Duration.Seconds())
	b.WriteString("\n## Output\n\n")
	b.WriteString(res.Output)
	if res.Error != "" {
		b.WriteString("\n\n## Errors\n\n")
		b.WriteString(res.Error)
	}
	b.WriteString("\n")

	path := filepath.Join(dir, timestamp+".log")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing run log: %w", err)
	}
	return nil
}

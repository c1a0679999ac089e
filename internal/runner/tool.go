package runner

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/unit"
)

// Executor runs a subprocess and returns its drained streams and exit code.
// err is non-nil only for spawn failures; a non-zero exit is reported via
// exitCode with err == nil.
type Executor interface {
	Execute(name string, args []string, dir string) (stdout, stderr string, exitCode int, err error)
}

type execExecutor struct{}

func (execExecutor) Execute(name string, args []string, dir string) (string, string, int, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir

	// os/exec drains both pipes concurrently into the buffers, so large
	// output on either stream cannot deadlock the child.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
		}
		return stdout.String(), stderr.String(), -1, err
	}
	return stdout.String(), stderr.String(), 0, nil
}

// locateTool finds the agent tool executable. User-local installs are
// preferred over system ones because they are typically newer; PATH is the
// last resort.
func locateTool(cli string) (string, error) {
	var candidates []string
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".local", "bin", cli))
	}
	candidates = append(candidates,
		filepath.Join("/usr/local/bin", cli),
		filepath.Join("/opt/homebrew/bin", cli),
		filepath.Join("/usr/bin", cli),
	)

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}

	if path, err := exec.LookPath(cli); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("tool %q not found", cli)
}

// newSessionArgs builds the tool invocation for a fresh session.
// --session-id must precede -p.
func newSessionArgs(sessionID string, u unit.Unit, d config.Defaults, systemPrompt, prompt string) []string {
	args := []string{"--session-id", sessionID, "-p"}
	args = append(args, commonArgs(u, d, systemPrompt)...)
	return append(args, "--", prompt)
}

// resumeSessionArgs builds the invocation that continues the same session
// after a confirmation. The tool retains neither the system prompt nor the
// tool allowlist across a resume, so both are passed again.
func resumeSessionArgs(sessionID string, u unit.Unit, d config.Defaults, systemPrompt string) []string {
	args := []string{"-r", sessionID, "-p"}
	args = append(args, commonArgs(u, d, systemPrompt)...)
	return append(args, "--", resumePrompt)
}

func commonArgs(u unit.Unit, d config.Defaults, systemPrompt string) []string {
	var args []string
	if model := config.ResolveModel(u.Config, d); model != "" {
		args = append(args, "--model", model)
	}
	if len(u.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(u.AllowedTools, ","))
	}
	args = append(args,
		"--system-prompt", systemPrompt,
		"--output-format", "json",
		"--json-schema", outputSchema,
	)
	return args
}

func readSkill(u unit.Unit) (string, error) {
	data, err := os.ReadFile(u.SkillPath())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

package runner

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/confirm"
	"github.com/rota-dev/rota/internal/logger"
	"github.com/rota-dev/rota/internal/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	name string
	args []string
	dir  string
}

type execResponse struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

// fakeExecutor replays scripted responses and records every invocation,
// context scripts included.
type fakeExecutor struct {
	mu        sync.Mutex
	calls     []execCall
	responses []execResponse
}

func (e *fakeExecutor) Execute(name string, args []string, dir string) (string, string, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, execCall{name: name, args: args, dir: dir})
	if len(e.responses) == 0 {
		return "", "", -1, errors.New("no scripted response left")
	}
	r := e.responses[0]
	e.responses = e.responses[1:]
	return r.stdout, r.stderr, r.exitCode, r.err
}

// stubConfirmer answers every confirmation request the same way.
type stubConfirmer struct {
	answer     bool
	gotMessage string
	gotTimeout time.Duration
}

func (c *stubConfirmer) RequestConfirmation(unitID, unitName, message string, timeout time.Duration) bool {
	c.gotMessage = message
	c.gotTimeout = timeout
	return c.answer
}

// silentPresenter never responds, so requests run into their timeout.
type silentPresenter struct{}

func (silentPresenter) Present(confirm.Request) {}

// confirmingPresenter approves every request as soon as it is presented.
type confirmingPresenter struct {
	broker *confirm.Broker
}

func (p *confirmingPresenter) Present(req confirm.Request) {
	p.broker.HandleResponse(req.ID, true, "user confirmed")
}

func newRunnerTestUnit(t *testing.T, skill string) unit.Unit {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, unit.SkillFileName), []byte(skill), 0644))
	return unit.Unit{
		ID:          "test-unit",
		DisplayName: "Test Unit",
		Path:        dir,
		Config:      config.DefaultUnitConfig(),
	}
}

func newTestRunner(exec Executor, broker Confirmer) *Runner {
	return &Runner{
		broker: broker,
		defaults: func() config.Defaults {
			return config.Defaults{CLI: "claude", Overlap: "skip", Timeout: 300}
		},
		executor: exec,
		locate:   func(cli string) (string, error) { return "/fake/bin/" + cli, nil },
		logger:   logger.Discard(),
	}
}

func TestRunCompleted(t *testing.T) {
	exec := &fakeExecutor{responses: []execResponse{
		{stdout: `{"type":"result","structured_output":{"status":"completed","result":"done"}}`},
	}}
	r := newTestRunner(exec, &stubConfirmer{})
	u := newRunnerTestUnit(t, "Summarize yesterday.")

	res := r.Run(u)

	assert.True(t, res.Success)
	assert.Equal(t, "done", res.Output)
	assert.Empty(t, res.Error)
	assert.Greater(t, res.Duration, time.Duration(0))

	require.Len(t, exec.calls, 1)
	call := exec.calls[0]
	assert.Equal(t, "/fake/bin/claude", call.name)
	assert.Equal(t, u.Path, call.dir)
	assert.Equal(t, "--session-id", call.args[0])
	assert.Equal(t, "-p", call.args[2])
	assert.Contains(t, call.args, "--output-format")
	assert.Contains(t, call.args, "--json-schema")
	assert.Equal(t, "Run your scheduled task now.", call.args[len(call.args)-1])

	// The system prompt is the skill plus the output contract.
	for i, a := range call.args {
		if a == "--system-prompt" {
			assert.True(t, strings.HasPrefix(call.args[i+1], "Summarize yesterday."))
			assert.Contains(t, call.args[i+1], "## Output Format")
		}
	}
}

func TestRunCompletedWithoutResultText(t *testing.T) {
	exec := &fakeExecutor{responses: []execResponse{
		{stdout: `{"type":"result","structured_output":{"status":"completed"}}`},
	}}
	r := newTestRunner(exec, &stubConfirmer{})

	res := r.Run(newRunnerTestUnit(t, "skill"))

	assert.True(t, res.Success)
	assert.Equal(t, "Task completed.", res.Output)
}

func TestRunErrorStatus(t *testing.T) {
	stdout := `{"type":"result","structured_output":{"status":"error","error":"disk full"}}`
	exec := &fakeExecutor{responses: []execResponse{{stdout: stdout}}}
	r := newTestRunner(exec, &stubConfirmer{})

	res := r.Run(newRunnerTestUnit(t, "skill"))

	assert.False(t, res.Success)
	assert.Equal(t, "disk full", res.Error)
	assert.Equal(t, stdout, res.Output)
}

func TestRunUnparseableOutput(t *testing.T) {
	exec := &fakeExecutor{responses: []execResponse{
		{stdout: "I did the thing!\n"},
	}}
	r := newTestRunner(exec, &stubConfirmer{})

	res := r.Run(newRunnerTestUnit(t, "skill"))

	assert.False(t, res.Success)
	assert.Equal(t, "failed to parse structured output", res.Error)
	assert.Equal(t, "I did the thing!\n", res.Output)
}

func TestRunMissingStructuredStatus(t *testing.T) {
	exec := &fakeExecutor{responses: []execResponse{
		{stdout: `{"type":"result"}`},
	}}
	r := newTestRunner(exec, &stubConfirmer{})

	res := r.Run(newRunnerTestUnit(t, "skill"))

	assert.False(t, res.Success)
	assert.Equal(t, "failed to parse structured output", res.Error)
}

func TestRunToolNotFound(t *testing.T) {
	exec := &fakeExecutor{}
	r := newTestRunner(exec, &stubConfirmer{})
	r.locate = func(cli string) (string, error) {
		return "", errors.New(`tool "claude" not found`)
	}

	res := r.Run(newRunnerTestUnit(t, "skill"))

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not found")
	assert.Empty(t, exec.calls, "no subprocess should be spawned")
}

func TestRunMissingSkillFile(t *testing.T) {
	exec := &fakeExecutor{}
	r := newTestRunner(exec, &stubConfirmer{})
	u := unit.Unit{ID: "ghost", DisplayName: "Ghost", Path: t.TempDir(), Config: config.DefaultUnitConfig()}

	res := r.Run(u)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, unit.SkillFileName)
	assert.Empty(t, exec.calls)
}

func TestRunNonZeroExit(t *testing.T) {
	exec := &fakeExecutor{responses: []execResponse{
		{stdout: "partial", stderr: "boom\n", exitCode: 1},
	}}
	r := newTestRunner(exec, &stubConfirmer{})

	res := r.Run(newRunnerTestUnit(t, "skill"))

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "exited with code 1")
	assert.Contains(t, res.Error, "boom")
	assert.Equal(t, "partial", res.Output)
}

func TestRunConfirmedResumesSession(t *testing.T) {
	exec := &fakeExecutor{responses: []execResponse{
		{stdout: `{"type":"result","structured_output":{"status":"needs_confirmation","confirmMessage":"Delete old backups?"}}`},
		{stdout: `{"type":"result","structured_output":{"status":"completed","result":"removed 3 archives"}}`},
	}}
	presenter := &confirmingPresenter{}
	broker := confirm.New(presenter, logger.Discard())
	presenter.broker = broker

	r := newTestRunner(exec, broker)
	res := r.Run(newRunnerTestUnit(t, "skill"))

	assert.True(t, res.Success)
	assert.Contains(t, res.Output, "Delete old backups?")
	assert.Contains(t, res.Output, "--- After Confirmation ---")
	assert.Contains(t, res.Output, "removed 3 archives")

	require.Len(t, exec.calls, 2)
	first, second := exec.calls[0], exec.calls[1]
	assert.Equal(t, "-r", second.args[0])
	// Resume continues the session started by the first invocation.
	assert.Equal(t, first.args[1], second.args[1])
	assert.Equal(t, "-p", second.args[2])
	assert.Equal(t, resumePrompt, second.args[len(second.args)-1])
	// The system prompt is passed again; resume does not retain it.
	assert.Contains(t, second.args, "--system-prompt")
}

func TestRunConfirmationTimeout(t *testing.T) {
	exec := &fakeExecutor{responses: []execResponse{
		{stdout: `{"type":"result","structured_output":{"status":"needs_confirmation","confirmMessage":"Wipe the cache?"}}`},
	}}
	broker := confirm.New(silentPresenter{}, logger.Discard())
	r := newTestRunner(exec, broker)

	u := newRunnerTestUnit(t, "skill")
	u.Config.Timeout = 2 // seconds

	start := time.Now()
	res := r.Run(u)

	assert.False(t, res.Success)
	assert.Equal(t, "User rejected confirmation", res.Error)
	assert.Equal(t, "Wipe the cache?", res.Output)
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
	// No resume invocation after a timeout.
	assert.Len(t, exec.calls, 1)
}

func TestRunRejectionSkipsResume(t *testing.T) {
	exec := &fakeExecutor{responses: []execResponse{
		{stdout: `{"type":"result","structured_output":{"status":"needs_confirmation","confirmMessage":"Push to prod?"}}`},
	}}
	confirmer := &stubConfirmer{answer: false}
	r := newTestRunner(exec, confirmer)

	res := r.Run(newRunnerTestUnit(t, "skill"))

	assert.False(t, res.Success)
	assert.Equal(t, "User rejected confirmation", res.Error)
	assert.Equal(t, "Push to prod?", res.Output)
	assert.Equal(t, "Push to prod?", confirmer.gotMessage)
	assert.Equal(t, 300*time.Second, confirmer.gotTimeout)
	assert.Len(t, exec.calls, 1)
}

func TestGatherContextFromScripts(t *testing.T) {
	u := newRunnerTestUnit(t, "skill")
	scripts := filepath.Join(u.Path, "scripts")
	require.NoError(t, os.MkdirAll(scripts, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "10-status.sh"), []byte("#!/bin/sh\n"), 0755))
	// Not executable, must be skipped.
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "notes.txt"), []byte("n/a"), 0644))

	exec := &fakeExecutor{responses: []execResponse{
		{stdout: "3 new messages\n"},
		{stdout: `{"type":"result","structured_output":{"status":"completed","result":"ok"}}`},
	}}
	r := newTestRunner(exec, &stubConfirmer{})

	res := r.Run(u)
	assert.True(t, res.Success)

	require.Len(t, exec.calls, 2, "one script plus the tool")
	script, tool := exec.calls[0], exec.calls[1]
	assert.Equal(t, filepath.Join(scripts, "10-status.sh"), script.name)
	assert.Equal(t, u.Path, script.dir, "scripts run from the unit root")

	prompt := tool.args[len(tool.args)-1]
	assert.Contains(t, prompt, "Run your scheduled task with this context:")
	assert.Contains(t, prompt, "# Context from 10-status.sh\n3 new messages")
}

func TestGatherContextScriptFailureIsInline(t *testing.T) {
	u := newRunnerTestUnit(t, "skill")
	scripts := filepath.Join(u.Path, "scripts")
	require.NoError(t, os.MkdirAll(scripts, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "broken.sh"), []byte("#!/bin/sh\n"), 0755))

	exec := &fakeExecutor{responses: []execResponse{
		{err: errors.New("permission denied")},
		{stdout: `{"type":"result","structured_output":{"status":"completed","result":"ok"}}`},
	}}
	r := newTestRunner(exec, &stubConfirmer{})

	res := r.Run(u)

	assert.True(t, res.Success, "script failures must not abort the run")
	prompt := exec.calls[1].args[len(exec.calls[1].args)-1]
	assert.Contains(t, prompt, "# Error running broken.sh: permission denied")
}

func TestFileLogSinkWritesRecord(t *testing.T) {
	home := t.TempDir()
	sink := NewFileLogSink(home)
	u := unit.Unit{ID: "reporter", DisplayName: "Reporter"}
	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

	res := Result{Success: false, Output: "partial work", Error: "disk full", Duration: 2500 * time.Millisecond}
	require.NoError(t, sink.Write(u, res, started))

	path := filepath.Join(home, "logs", "reporter", "2026-03-14T09:26:53.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "# Run: Reporter")
	assert.Contains(t, content, "# Timestamp: 2026-03-14T09:26:53")
	assert.Contains(t, content, "# Duration: 2.50s")
	assert.Contains(t, content, "## Output\n\npartial work")
	assert.Contains(t, content, "## Errors\n\ndisk full")
}

func TestFileLogSinkOmitsErrorSectionOnSuccess(t *testing.T) {
	home := t.TempDir()
	sink := NewFileLogSink(home)
	u := unit.Unit{ID: "reporter", DisplayName: "Reporter"}
	started := time.Now()

	require.NoError(t, sink.Write(u, Result{Success: true, Output: "done"}, started))

	entries, err := os.ReadDir(filepath.Join(home, "logs", "reporter"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(home, "logs", "reporter", entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "## Errors")
}

// Package runner executes one unit run end to end: context gathering, the
// agent tool subprocess, the structured-output protocol, and at most one
// confirmation round-trip.
package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/logger"
	"github.com/rota-dev/rota/internal/unit"
)

// Result is the outcome of a single run, confirmation round-trip included.
type Result struct {
	Success  bool
	Output   string
	Error    string
	Duration time.Duration
}

// Confirmer parks a run until a human answers or the timeout fires.
type Confirmer interface {
	RequestConfirmation(unitID, unitName, message string, timeout time.Duration) bool
}

// Runner drives unit runs. Safe for concurrent use; each Run call is
// independent.
type Runner struct {
	broker   Confirmer
	sink     LogSink
	defaults func() config.Defaults
	executor Executor
	locate   func(cli string) (string, error)
	logger   *logger.Logger
}

// New creates a runner that executes real subprocesses. The defaults func is
// read per run so config edits apply without a restart.
func New(broker Confirmer, sink LogSink, defaults func() config.Defaults, log *logger.Logger) *Runner {
	return &Runner{
		broker:   broker,
		sink:     sink,
		defaults: defaults,
		executor: execExecutor{},
		locate:   locateTool,
		logger:   log,
	}
}

// Run executes the unit once and returns the result. Every failure mode is
// folded into the Result; Run never panics outward and the caller can rely
// on it returning.
func (r *Runner) Run(u unit.Unit) Result {
	start := time.Now()
	sessionID := uuid.NewString()
	d := r.defaults()

	r.logger.Info("run started",
		logger.Field{Key: "unit", Value: u.ID},
		logger.Field{Key: "session_id", Value: sessionID})

	res := r.execute(u, d, sessionID)
	res.Duration = time.Since(start)

	if r.sink != nil {
		if err := r.sink.Write(u, res, start); err != nil {
			r.logger.Warn("failed to write run log",
				logger.Field{Key: "unit", Value: u.ID},
				logger.Field{Key: "error", Value: err})
		}
	}

	r.logger.Info("run finished",
		logger.Field{Key: "unit", Value: u.ID},
		logger.Field{Key: "success", Value: res.Success},
		logger.Field{Key: "duration", Value: res.Duration})
	return res
}

func (r *Runner) execute(u unit.Unit, d config.Defaults, sessionID string) Result {
	context := r.gatherContext(u)

	skill, err := readSkill(u)
	if err != nil {
		return failure("", fmt.Sprintf("failed to read %s: %v", unit.SkillFileName, err))
	}
	systemPrompt := skill + outputContract

	cli := config.ResolveCLI(u.Config, d)
	toolPath, err := r.locate(cli)
	if err != nil {
		return failure("", err.Error())
	}

	args := newSessionArgs(sessionID, u, d, systemPrompt, userPrompt(context))
	stdout, stderr, exitCode, err := r.executor.Execute(toolPath, args, u.Path)
	if err != nil {
		return failure(stdout, fmt.Sprintf("failed to run %s: %v", cli, err))
	}
	if exitCode != 0 {
		return failure(stdout, subprocessError(cli, exitCode, stderr))
	}

	out, perr := parseStructuredOutput(stdout)
	if perr != nil {
		return failure(stdout, parseFailureError)
	}

	switch out.Status {
	case statusCompleted:
		return Result{Success: true, Output: resultText(out)}

	case statusError:
		return failure(stdout, errorText(out))

	case statusNeedsConfirmation:
		return r.confirmAndResume(u, d, sessionID, toolPath, cli, systemPrompt, out.ConfirmMessage)

	default:
		return failure(stdout, parseFailureError)
	}
}

// confirmAndResume runs the confirmation round-trip: park on the broker,
// then either resume the same tool session or fail with the rejection.
func (r *Runner) confirmAndResume(u unit.Unit, d config.Defaults, sessionID, toolPath, cli, systemPrompt, message string) Result {
	timeout := config.ResolveTimeout(u.Config, d)

	r.logger.Info("run awaiting confirmation",
		logger.Field{Key: "unit", Value: u.ID},
		logger.Field{Key: "message", Value: message})

	confirmed := r.broker.RequestConfirmation(u.ID, u.DisplayName, message, timeout)
	if !confirmed {
		return failure(message, "User rejected confirmation")
	}

	args := resumeSessionArgs(sessionID, u, d, systemPrompt)
	stdout, stderr, exitCode, err := r.executor.Execute(toolPath, args, u.Path)
	if err != nil {
		return failure(stdout, fmt.Sprintf("failed to resume %s: %v", cli, err))
	}
	if exitCode != 0 {
		return failure(stdout, subprocessError(cli, exitCode, stderr))
	}

	out, perr := parseStructuredOutput(stdout)
	if perr != nil {
		return failure(stdout, parseFailureError)
	}

	combined := message + afterConfirmationSeparator + resultText(out)
	switch out.Status {
	case statusCompleted:
		return Result{Success: true, Output: combined}
	case statusError:
		return failure(combined, errorText(out))
	default:
		// A single round-trip per run; a second request is a protocol breach.
		return failure(stdout, "confirmation requested again after resume")
	}
}

// userPrompt builds the initial prompt, folding in gathered script context.
func userPrompt(context string) string {
	if context == "" {
		return "Run your scheduled task now."
	}
	return "Run your scheduled task with this context:\n\n" + context
}

func resultText(out structuredOutput) string {
	if out.Result != "" {
		return out.Result
	}
	return "Task completed."
}

func errorText(out structuredOutput) string {
	if out.Error != "" {
		return out.Error
	}
	return "Task reported an error."
}

func subprocessError(cli string, exitCode int, stderr string) string {
	msg := fmt.Sprintf("%s exited with code %d", cli, exitCode)
	if s := strings.TrimSpace(stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func failure(output, errText string) Result {
	return Result{Success: false, Output: output, Error: errText}
}

package runner

import (
	"encoding/json"
	"fmt"
)

// Structured-output statuses the tool may report.
const (
	statusCompleted         = "completed"
	statusError             = "error"
	statusNeedsConfirmation = "needs_confirmation"
)

const (
	parseFailureError          = "failed to parse structured output"
	afterConfirmationSeparator = "\n\n--- After Confirmation ---\n\n"
	resumePrompt               = "The user has CONFIRMED. Proceed with the action now."
)

// outputSchema is handed to the tool so its final message is machine-readable.
const outputSchema = `{"type":"object","properties":{"status":{"type":"string","enum":["needs_confirmation","completed","error"]},"confirmMessage":{"type":"string"},"result":{"type":"string"},"error":{"type":"string"}},"required":["status"]}`

// outputContract is appended to every unit's skill text. The tool does not
// keep the system prompt across a session resume, so the same augmented text
// is passed again on resume.
const outputContract = `

## Output Format

Respond with exactly one JSON object matching the provided schema. Set "status" to:
- "needs_confirmation" if you need user approval before a critical action. Include "confirmMessage" describing what you want to do, then stop and wait. The user will see your message and can Confirm or Reject; if confirmed, you will receive a follow-up message to proceed.
- "completed" when the task is done. Include "result" with a short summary.
- "error" if the task failed. Include "error" describing what went wrong.`

// envelope is the tool's own JSON wrapper around the structured status.
type envelope struct {
	Type             string           `json:"type"`
	StructuredOutput structuredOutput `json:"structured_output"`
}

type structuredOutput struct {
	Status         string `json:"status"`
	ConfirmMessage string `json:"confirmMessage,omitempty"`
	Result         string `json:"result,omitempty"`
	Error          string `json:"error,omitempty"`
}

// parseStructuredOutput extracts the status object from the tool's stdout.
func parseStructuredOutput(stdout string) (structuredOutput, error) {
	var env envelope
	if err := json.Unmarshal([]byte(stdout), &env); err != nil {
		return structuredOutput{}, fmt.Errorf("decoding tool output: %w", err)
	}
	if env.StructuredOutput.Status == "" {
		return structuredOutput{}, fmt.Errorf("tool output has no structured status")
	}
	return env.StructuredOutput, nil
}

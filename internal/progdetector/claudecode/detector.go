// Package claudecode registers the progdetector.Detector for the
// claude_code session type.
package claudecode

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/clawgate/clawgate/internal/progdetector"
)

const (
	// programID is the registry key, matching clawtypes.SessionTypeClaudeCode.
	programID = "claude_code"
	// executableName is the binary this session type actually runs.
	executableName  = "claude"
	enterTimeoutMs  = 15000
	submitTimeoutMs = 1000
	submitDelay     = 50 * time.Millisecond
	submitInput     = "\r"
)

type Detector struct{}

func New() Detector {
	return Detector{}
}

func (Detector) ProgramID() string {
	return programID
}

func (Detector) IsAvailable(context.Context) (bool, error) {
	if _, err := exec.LookPath(executableName); err != nil {
		return false, nil
	}
	return true, nil
}

func (Detector) MatchCurrentCommand(currentCommand string) bool {
	return progdetector.MatchProgramInCommand(currentCommand, executableName)
}

func (d Detector) HasExitedMode(_ context.Context, state progdetector.RuntimeState) (bool, error) {
	return !d.MatchCurrentCommand(state.CurrentCommand), nil
}

func (Detector) BuildInputPromptSteps(prompt string) ([]progdetector.PromptStep, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errors.New("prompt is required")
	}
	return []progdetector.PromptStep{
		{Input: prompt, TimeoutMs: enterTimeoutMs},
		{Input: submitInput, Delay: submitDelay, TimeoutMs: submitTimeoutMs},
	}, nil
}

func init() {
	progdetector.ProgramDetectorRegistry.MustRegister(New())
}

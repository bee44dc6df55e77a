package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	apperrors "github.com/oncodose/treatment-api/pkg/errors"
)

// ControllerEngine runs the external controller process once per request,
// passing the request as JSON on stdin and reading the result as JSON from
// stdout. The process inherits the run context, so cancellation or timeout
// kills it.
type ControllerEngine struct {
	command string
	args    []string
}

func NewControllerEngine(command string, args []string) *ControllerEngine {
	return &ControllerEngine{command: command, args: args}
}

func (e *ControllerEngine) Run(ctx context.Context, req *Request) (*Output, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("marshal engine request: %w", err))
	}

	cmd := exec.CommandContext(ctx, e.command, e.args...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Simulation(fmt.Errorf("engine run aborted: %w", ctx.Err()))
		}
		return nil, apperrors.Simulation(fmt.Errorf("engine process failed: %w: %s", err, stderr.String()))
	}

	var out Output
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, apperrors.Simulation(fmt.Errorf("decode engine output: %w", err))
	}
	if len(out.Time) == 0 {
		return nil, apperrors.Simulation(fmt.Errorf("engine returned empty time axis"))
	}
	return &out, nil
}

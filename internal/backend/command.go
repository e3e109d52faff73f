package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var _ Backend = (*CommandBackend)(nil)

// DefaultLLMBinary is the command-line model runner the llm backend spawns.
const DefaultLLMBinary = "llm"

// Runner executes an external command and captures its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// CommandBackend invokes models through the llm CLI.
type CommandBackend struct {
	binary string
	runner Runner
}

// NewCommandBackend returns a backend spawning binary through runner. Empty
// values select DefaultLLMBinary and ExecRunner.
func NewCommandBackend(binary string, runner Runner) *CommandBackend {
	if binary == "" {
		binary = DefaultLLMBinary
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &CommandBackend{binary: binary, runner: runner}
}

// Args builds the llm argument vector for req. The prompt follows "--" so a
// leading dash is never read as a flag.
func (b *CommandBackend) Args(req Request) []string {
	args := []string{"-m", req.Model}
	if req.System != "" {
		args = append(args, "-s", req.System)
	}
	if req.Temperature != nil {
		args = append(args, "-o", "temperature", strconv.FormatFloat(*req.Temperature, 'g', -1, 64))
	}
	return append(args, "--", req.Prompt)
}

// Generate implements Backend.
func (b *CommandBackend) Generate(ctx context.Context, req Request) (string, error) {
	stdout, stderr, err := b.runner.Run(ctx, b.binary, b.Args(req)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w", b.binary, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s: exit status %d: %s", b.binary, exitErr.ExitCode(), strings.TrimSpace(stderr))
		}
		if msg := strings.TrimSpace(stderr); msg != "" {
			return "", fmt.Errorf("%s: %w: %s", b.binary, err, msg)
		}
		return "", fmt.Errorf("%s: %w", b.binary, err)
	}
	return stdout, nil
}

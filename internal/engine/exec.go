package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// tokenEnvVar is how the credential reaches the transcriber process. It
// goes through the environment rather than argv so it never shows up in
// process listings.
const tokenEnvVar = "HUGGINGFACE_TOKEN"

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, env []string, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, env []string, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// Exec invokes an external transcriber command once per file. The command
// is called as `name [extra args...] <input> <output>` with the
// credential exported in its environment.
type Exec struct {
	command string
	args    []string
	runner  commandRunner
	stat    func(string) (os.FileInfo, error)
}

// NewExec creates an exec-backed engine for the given command line.
func NewExec(command string, args ...string) *Exec {
	return &Exec{
		command: command,
		args:    args,
		runner:  &execRunner{},
		stat:    os.Stat,
	}
}

// Run implements Engine.
func (e *Exec) Run(ctx context.Context, inputPath, outputPath, token string, onStage StageFunc) error {
	if strings.TrimSpace(e.command) == "" {
		return errors.New("transcriber command is not configured")
	}
	if onStage != nil {
		onStage("transcribing")
	}

	args := append(append([]string{}, e.args...), inputPath, outputPath)
	env := []string{tokenEnvVar + "=" + token}
	result, err := e.runner.Run(ctx, env, e.command, args...)
	if err != nil {
		return fmt.Errorf("transcriber exited with code %d: %s", result.ExitCode, tail(result.Stderr, 500))
	}

	if onStage != nil {
		onStage("writing transcript")
	}
	if _, err := e.stat(outputPath); err != nil {
		return fmt.Errorf("transcriber produced no output: %w", err)
	}
	return nil
}

// tail returns at most n trailing bytes of s, trimmed of whitespace.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

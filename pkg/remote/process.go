package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// ProcessConfig describes an engine child process speaking the stream
// transport on its stdin and stdout.
type ProcessConfig struct {
	// Path is the engine binary. Required.
	Path string

	// Args are passed to the binary, typically "serve", "--stdio".
	Args []string

	// Env is appended to the current environment.
	Env []string

	// Stderr receives the child's stderr. Nil discards it.
	Stderr io.Writer
}

// StartProcess launches the engine and returns a client bound to it. Closing
// the client closes the child's stdin and waits for it to exit.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*StreamClient, error) {
	if cfg.Path == "" {
		return nil, errors.New("engine path is required")
	}

	cmd := exec.CommandContext(ctx, cfg.Path, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Stderr = cfg.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open engine stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	return NewStreamClient(stdout, stdin, &process{cmd: cmd, stdin: stdin})
}

type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func (p *process) Close() error {
	var errs []error
	if err := p.stdin.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close stdin: %w", err))
	}
	if err := p.cmd.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("engine exited: %w", err))
	}
	return errors.Join(errs...)
}

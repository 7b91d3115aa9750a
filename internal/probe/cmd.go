package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

type commandProber struct {
	command []string
}

// Command returns a Prober that runs argv and is ready when it exits zero.
func Command(argv ...string) (Prober, error) {
	if len(argv) == 0 {
		return nil, errors.New("probe: command requires at least one argument")
	}
	return &commandProber{command: append([]string(nil), argv...)}, nil
}

func (p *commandProber) Probe(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, p.command[0], p.command[1:]...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Run(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("exit %d", exitErr.ExitCode())
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"
)

// runner abstracts how a terraform invocation is executed: as a host
// process or inside a container.
type runner interface {
	// Run executes the command, streaming combined stdout/stderr chunks
	// to onOutput as they arrive. onOutput may be nil.
	Run(ctx context.Context, args []string, onOutput func([]byte)) error
	// Capture executes the command and returns its stdout.
	Capture(ctx context.Context, args []string) ([]byte, error)
}

type execRunner struct {
	dir    string
	binary string
}

func (r *execRunner) Run(ctx context.Context, args []string, onOutput func([]byte)) error {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = r.dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", r.binary, err)
	}

	g := new(errgroup.Group)
	g.Go(func() error { return pump(stdout, onOutput) })
	g.Go(func() error { return pump(stderr, onOutput) })
	pumpErr := g.Wait()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s %s: %w", r.binary, args[0], err)
	}
	return pumpErr
}

func (r *execRunner) Capture(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = r.dir

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return out, fmt.Errorf("%s %s: %w: %s", r.binary, args[0], err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return out, fmt.Errorf("%s %s: %w", r.binary, args[0], err)
	}
	return out, nil
}

// pump forwards reads from r to onOutput until EOF. Chunks are copied so
// the callback may retain them.
func pump(r io.Reader, onOutput func([]byte)) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 && onOutput != nil {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onOutput(chunk)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

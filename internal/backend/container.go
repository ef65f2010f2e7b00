package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/tfpilot-io/tfpilot/internal/logging"
)

const containerWorkdir = "/workspace"

// containerRunner executes terraform inside a one-shot container, with the
// stack working directory bind-mounted at /workspace.
type containerRunner struct {
	dir      string
	image    string
	platform *ocispec.Platform
	cli      *client.Client
}

func newContainerRunner(dir, image, platform string) *containerRunner {
	r := &containerRunner{dir: dir, image: image}
	if os, arch, ok := strings.Cut(platform, "/"); ok {
		r.platform = &ocispec.Platform{OS: os, Architecture: arch}
	}
	return r
}

func (r *containerRunner) ensureClient() error {
	if r.cli != nil {
		return nil
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("failed to create Docker client: %w", err)
	}
	r.cli = cli
	return nil
}

func (r *containerRunner) Run(ctx context.Context, args []string, onOutput func([]byte)) error {
	w := &chunkWriter{fn: onOutput}
	return r.exec(ctx, args, w, w)
}

func (r *containerRunner) Capture(ctx context.Context, args []string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	if err := r.exec(ctx, args, &stdout, &stderr); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.Bytes(), err
	}
	return stdout.Bytes(), nil
}

func (r *containerRunner) exec(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if err := r.ensureClient(); err != nil {
		return err
	}

	if rc, err := r.cli.ImagePull(ctx, r.image, image.PullOptions{}); err != nil {
		// A locally built image may not be pullable; creation will fail
		// below if it is truly absent.
		logging.Warn("image pull failed", "image", r.image, "error", err)
	} else {
		_, _ = io.Copy(io.Discard, rc)
		rc.Close()
	}

	created, err := r.cli.ContainerCreate(ctx, &container.Config{
		Image:      r.image,
		Cmd:        args,
		WorkingDir: containerWorkdir,
	}, &container.HostConfig{
		Binds: []string{r.dir + ":" + containerWorkdir},
	}, nil, r.platform, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		_ = r.cli.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
	}()

	if err := r.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	logs, err := r.cli.ContainerLogs(ctx, created.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to attach container logs: %w", err)
	}
	defer logs.Close()

	copyDone := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(stdout, stderr, logs)
		copyDone <- copyErr
	}()

	waitCh, errCh := r.cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("container wait failed: %w", err)
	case status := <-waitCh:
		<-copyDone
		if status.StatusCode != 0 {
			return fmt.Errorf("terraform %s exited with status %d", args[0], status.StatusCode)
		}
	}
	return nil
}

// chunkWriter adapts a chunk callback to io.Writer. A nil callback
// discards writes.
type chunkWriter struct {
	fn func([]byte)
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.fn != nil {
		chunk := make([]byte, len(p))
		copy(chunk, p)
		w.fn(chunk)
	}
	return len(p), nil
}

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tfpilot-io/tfpilot/internal/ir"
	"github.com/tfpilot-io/tfpilot/internal/logging"
)

// planFileName is where a local plan artifact is written within the
// working directory.
const planFileName = "tfpilot.tfplan"

// Local executes the lifecycle against a terraform binary in a working
// directory. The runner decides whether the binary runs on the host or
// inside a container.
type Local struct {
	workdir string
	run     runner
}

// NewLocal returns a Local executor driving the given binary. An empty
// binary defaults to "terraform" on PATH.
func NewLocal(workdir, binary string) *Local {
	if binary == "" {
		binary = "terraform"
	}
	return &Local{
		workdir: workdir,
		run:     &execRunner{dir: workdir, binary: binary},
	}
}

// NewLocalContainer returns a Local executor that runs terraform inside a
// container from the given image, with the working directory bind-mounted.
// Platform is "os/arch" or empty for the daemon default.
func NewLocalContainer(workdir, image, platform string) *Local {
	return &Local{
		workdir: workdir,
		run:     newContainerRunner(workdir, image, platform),
	}
}

func (l *Local) Init(ctx context.Context) error {
	out, err := l.run.Capture(ctx, []string{"init", "-input=false", "-no-color"})
	if err != nil {
		return fmt.Errorf("terraform init failed: %w", err)
	}
	logging.Debug("terraform initialized", "dir", l.workdir, "output_bytes", len(out))
	return nil
}

func (l *Local) Plan(ctx context.Context, destroy bool) (*ir.Plan, error) {
	args := []string{"plan", "-input=false", "-no-color", "-out=" + planFileName}
	if destroy {
		args = append(args, "-destroy")
	}
	if _, err := l.run.Capture(ctx, args); err != nil {
		return nil, fmt.Errorf("terraform plan failed: %w", err)
	}

	shown, err := l.run.Capture(ctx, []string{"show", "-json", planFileName})
	if err != nil {
		return nil, fmt.Errorf("terraform show failed: %w", err)
	}

	resources, err := decodePlanResources(shown)
	if err != nil {
		return nil, err
	}

	logging.Debug("plan computed", "dir", l.workdir, "changes", len(resources), "destroy", destroy)
	// The handle stays relative so apply resolves it inside the runner's
	// working directory, which for the container runner is the bind mount
	// and not the host path.
	return &ir.Plan{
		NeedsApply: len(resources) > 0,
		Resources:  resources,
		Handle:     planFileName,
	}, nil
}

func (l *Local) Deploy(ctx context.Context, handle string, onOutput func([]byte)) error {
	args := []string{"apply", "-auto-approve", "-input=false"}
	if handle != "" {
		args = append(args, handle)
	}
	if err := l.run.Run(ctx, args, onOutput); err != nil {
		return fmt.Errorf("terraform apply failed: %w", err)
	}
	return nil
}

func (l *Local) Destroy(ctx context.Context, onOutput func([]byte)) error {
	args := []string{"destroy", "-auto-approve", "-input=false"}
	if err := l.run.Run(ctx, args, onOutput); err != nil {
		return fmt.Errorf("terraform destroy failed: %w", err)
	}
	return nil
}

func (l *Local) Output(ctx context.Context) (map[string]ir.OutputValue, error) {
	raw, err := l.run.Capture(ctx, []string{"output", "-json", "-no-color"})
	if err != nil {
		return nil, fmt.Errorf("terraform output failed: %w", err)
	}

	outputs := map[string]ir.OutputValue{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		if err := json.Unmarshal(raw, &outputs); err != nil {
			return nil, fmt.Errorf("failed to decode outputs: %w", err)
		}
	}
	return outputs, nil
}

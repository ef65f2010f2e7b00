package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tfpilot-io/tfpilot/internal/ir"
	"github.com/tfpilot-io/tfpilot/internal/logging"
)

// StackFileName is the configuration document each stack directory under
// the synth output directory must contain.
const StackFileName = "stack.tf.json"

// Synthesizer produces the stack configuration documents a workflow
// deploys. The workflow uses only the first synthesized stack.
type Synthesizer interface {
	Synthesize(ctx context.Context) ([]ir.Stack, error)
}

// Command synthesizes by running an app command in a target directory and
// collecting the stack documents it writes under the output directory.
type Command struct {
	command string
	dir     string
	outdir  string
}

// NewCommand returns a command synthesizer. An empty command skips
// execution and only collects already-synthesized stacks.
func NewCommand(command, dir, outdir string) *Command {
	return &Command{command: command, dir: dir, outdir: outdir}
}

func (c *Command) Synthesize(ctx context.Context) ([]ir.Stack, error) {
	if c.command != "" {
		cmd := exec.CommandContext(ctx, "sh", "-c", c.command)
		cmd.Dir = c.dir
		cmd.Env = append(os.Environ(), "TFPILOT_OUTDIR="+c.outdir)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return nil, fmt.Errorf("synth command failed: %w: %s", err, strings.TrimSpace(string(out)))
		}
		logging.Debug("synth command finished", "command", c.command, "output_bytes", len(out))
	}

	return ReadStacks(c.outdir)
}

// ReadStacks collects stacks from the synth output directory: one
// subdirectory per stack, each holding a stack.tf.json document. Stacks
// are returned in name order.
func ReadStacks(outdir string) ([]ir.Stack, error) {
	entries, err := os.ReadDir(outdir)
	if err != nil {
		return nil, fmt.Errorf("failed to read synth output directory %s: %w", outdir, err)
	}

	var stacks []ir.Stack
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		doc, err := os.ReadFile(filepath.Join(outdir, entry.Name(), StackFileName))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read stack %s: %w", entry.Name(), err)
		}
		stacks = append(stacks, ir.Stack{Name: entry.Name(), JSON: string(doc)})
	}

	sort.Slice(stacks, func(i, j int) bool { return stacks[i].Name < stacks[j].Name })
	return stacks, nil
}

// StackDir returns the working directory of a synthesized stack.
func StackDir(outdir, name string) string {
	return filepath.Join(outdir, name)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tfpilot-io/tfpilot/internal/backend"
	"github.com/tfpilot-io/tfpilot/internal/deploy"
	"github.com/tfpilot-io/tfpilot/internal/ir"
	"github.com/tfpilot-io/tfpilot/internal/synth"
)

// newWorkflow assembles a deployment session from the shared flags.
func newWorkflow(confirm deploy.Confirmer) (*deploy.Workflow, *deploy.Machine, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	out := outDir
	if !filepath.IsAbs(out) {
		out = filepath.Join(wd, out)
	}

	var synthesizer synth.Synthesizer
	if pklModule != "" {
		synthesizer = synth.NewPkl(pklModule, out, pklProps)
	} else {
		synthesizer = synth.NewCommand(synthCommand, wd, out)
	}

	local := func(workdir string) backend.Executor {
		if containerImage != "" {
			return backend.NewLocalContainer(workdir, containerImage, containerPlatform)
		}
		return backend.NewLocal(workdir, terraformBin)
	}
	remote := func(cfg backend.RemoteConfig) backend.RemoteExecutor {
		return backend.NewRemote(cfg)
	}

	machine := deploy.NewMachine()
	return deploy.NewWorkflow(machine, synthesizer, out, local, remote, confirm), machine, nil
}

// confirmerFor picks the confirmation source: auto-approved for
// non-interactive use, otherwise an interactive y/n prompt.
func confirmerFor(autoApprove, destroy bool) deploy.Confirmer {
	if autoApprove {
		return deploy.AutoApprove{}
	}
	return interactiveConfirmer{destroy: destroy}
}

type interactiveConfirmer struct {
	destroy bool
}

func (c interactiveConfirmer) Confirm(_ context.Context, plan *ir.Plan) (bool, error) {
	verb := "perform these actions"
	if c.destroy {
		verb = "destroy all planned resources"
	}
	fmt.Printf("\nDo you want to %s? (y/n): ", verb)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes", nil
}

// watchProgress prints a line whenever a resource moves to a new apply
// state.
func watchProgress(machine *deploy.Machine) {
	var mu sync.Mutex
	last := make(map[string]ir.ApplyState)

	machine.Subscribe(func(st deploy.State) {
		mu.Lock()
		defer mu.Unlock()
		for _, res := range st.Resources {
			prev, seen := last[res.Address]
			if seen && prev == res.State {
				continue
			}
			last[res.Address] = res.State
			if res.State == ir.StateWaiting {
				continue
			}
			fmt.Printf("%s%s: %s%s\n", applyStateColor(res.State), res.Address, applyStateLabel(res.State), "\033[0m")
		}
	})
}

func applyStateLabel(state ir.ApplyState) string {
	switch state {
	case ir.StateCreating:
		return "Creating..."
	case ir.StateCreated:
		return "Creation complete"
	case ir.StateUpdating:
		return "Modifying..."
	case ir.StateUpdated:
		return "Modifications complete"
	case ir.StateDestroying:
		return "Destroying..."
	case ir.StateDestroyed:
		return "Destruction complete"
	default:
		return string(state)
	}
}

func applyStateColor(state ir.ApplyState) string {
	switch state {
	case ir.StateCreating, ir.StateCreated:
		return "\033[32m"
	case ir.StateUpdating, ir.StateUpdated:
		return "\033[33m"
	case ir.StateDestroying, ir.StateDestroyed:
		return "\033[31m"
	default:
		return "\033[0m"
	}
}

// renderPlanResources prints the change list of a plan.
func renderPlanResources(plan *ir.Plan) {
	var create, update, del int
	for _, res := range plan.Resources {
		symbol := "~"
		color := "\033[33m"
		switch res.Action {
		case ir.ActionCreate:
			symbol, color = "+", "\033[32m"
			create++
		case ir.ActionDelete:
			symbol, color = "-", "\033[31m"
			del++
		default:
			update++
		}
		fmt.Printf("%s  %s %s\033[0m\n", color, symbol, res.Address)
	}
	fmt.Printf("\nPlan: %d to add, %d to change, %d to destroy.\n", create, update, del)
}

// renderOutputs prints stack outputs in name order, masking sensitive
// values.
func renderOutputs(outputs map[string]ir.OutputValue) {
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := outputs[name]
		if value.Sensitive {
			fmt.Printf("  %s = <sensitive>\n", name)
			continue
		}
		fmt.Printf("  %s = %v\n", name, value.Value)
	}
}

// localPlanFile returns the plan artifact path when the handle references
// a file under the stack working directory, empty otherwise (cloud plans
// are run IDs).
func localPlanFile(plan *ir.Plan, workdir string) string {
	if plan == nil || plan.Handle == "" {
		return ""
	}
	path := plan.Handle
	if !filepath.IsAbs(path) {
		path = filepath.Join(workdir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// stackWorkdir resolves a synthesized stack's working directory against
// the configured output directory.
func stackWorkdir(stackName string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	out := outDir
	if !filepath.IsAbs(out) {
		out = filepath.Join(wd, out)
	}
	return synth.StackDir(out, stackName), nil
}

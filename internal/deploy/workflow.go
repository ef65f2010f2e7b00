package deploy

import (
	"context"
	"errors"
	"fmt"

	"github.com/tfpilot-io/tfpilot/internal/backend"
	"github.com/tfpilot-io/tfpilot/internal/ir"
	"github.com/tfpilot-io/tfpilot/internal/logging"
	"github.com/tfpilot-io/tfpilot/internal/synth"
)

// ErrAborted is returned when the confirmation signal resolves negative.
// No deploy or destroy action is dispatched after it.
var ErrAborted = errors.New("aborted by user")

// ErrNoStack is returned when synthesis produces no stacks.
var ErrNoStack = errors.New("synthesis produced no stacks")

// ErrNotSynthesized signals a stage invoked before synthesis completed.
var ErrNotSynthesized = errors.New("no stack has been synthesized")

// Confirmer resolves whether a planned change set may be applied.
type Confirmer interface {
	Confirm(ctx context.Context, plan *ir.Plan) (bool, error)
}

// AutoApprove confirms every plan without asking.
type AutoApprove struct{}

func (AutoApprove) Confirm(context.Context, *ir.Plan) (bool, error) { return true, nil }

// LocalFactory builds the local executor for a synthesized stack's working
// directory.
type LocalFactory func(workdir string) backend.Executor

// RemoteFactory builds the cloud executor for a stack's remote backend
// declaration.
type RemoteFactory func(cfg backend.RemoteConfig) backend.RemoteExecutor

// Workflow sequences the deployment stages for one session: synth → init →
// plan → (confirm) → apply/destroy → output. Each stage is gated on the
// machine having reached the prior milestone; any stage failure is
// recorded as an error action and halts forward progress.
type Workflow struct {
	machine *Machine
	synth   synth.Synthesizer
	outdir  string
	local   LocalFactory
	remote  RemoteFactory
	confirm Confirmer

	// exec is the backend selected after synthesis, cached for the rest
	// of the session.
	exec backend.Executor
}

func NewWorkflow(machine *Machine, synthesizer synth.Synthesizer, outdir string, local LocalFactory, remote RemoteFactory, confirm Confirmer) *Workflow {
	if confirm == nil {
		confirm = AutoApprove{}
	}
	return &Workflow{
		machine: machine,
		synth:   synthesizer,
		outdir:  outdir,
		local:   local,
		remote:  remote,
		confirm: confirm,
	}
}

// Machine exposes the session's state machine for observers.
func (w *Workflow) Machine() *Machine { return w.machine }

// Synth runs synthesis and records the first synthesized stack.
func (w *Workflow) Synth(ctx context.Context) error {
	w.machine.Dispatch(SynthAction{})

	stacks, err := w.synth.Synthesize(ctx)
	if err != nil {
		return w.fail("synthesis", err)
	}
	if len(stacks) == 0 {
		return w.fail("synthesis", ErrNoStack)
	}
	if len(stacks) > 1 {
		logging.Warn("multiple stacks synthesized, using the first", "stack", stacks[0].Name, "total", len(stacks))
	}

	w.machine.Dispatch(NewStackAction{Name: stacks[0].Name, JSON: stacks[0].JSON})
	return nil
}

// Init synthesizes, selects a backend, and initializes it.
func (w *Workflow) Init(ctx context.Context) error {
	if err := w.Synth(ctx); err != nil {
		return err
	}
	if w.machine.Snapshot().Status != StatusSynthesized {
		return nil
	}

	exec, err := w.executor(ctx)
	if err != nil {
		return w.fail("backend selection", err)
	}

	w.machine.Dispatch(InitAction{})
	if err := exec.Init(ctx); err != nil {
		return w.fail("init", err)
	}
	return nil
}

// Plan runs the full pipeline up to a completed plan.
func (w *Workflow) Plan(ctx context.Context) error {
	return w.plan(ctx, false)
}

func (w *Workflow) plan(ctx context.Context, destroy bool) error {
	if err := w.Init(ctx); err != nil {
		return err
	}

	exec, err := w.executor(ctx)
	if err != nil {
		return w.fail("plan", err)
	}

	w.machine.Dispatch(PlanAction{})
	plan, err := exec.Plan(ctx, destroy)
	if err != nil {
		return w.fail("plan", err)
	}

	w.machine.Dispatch(PlannedAction{Plan: plan})
	return nil
}

// Deploy runs the full deploy pipeline: plan, confirmation, apply, and
// output collection. An empty plan goes straight to done without touching
// the backend.
func (w *Workflow) Deploy(ctx context.Context) error {
	if err := w.plan(ctx, false); err != nil {
		return err
	}

	st := w.machine.Snapshot()
	if st.Status != StatusPlanned || st.Plan == nil {
		return nil
	}
	plan := st.Plan

	if !plan.NeedsApply {
		logging.Info("no changes, nothing to apply", "stack", st.StackName)
		w.machine.Dispatch(DoneAction{})
		return nil
	}

	approved, err := w.confirm.Confirm(ctx, plan)
	if err != nil {
		return w.fail("confirmation", err)
	}
	if !approved {
		return ErrAborted
	}

	w.machine.Dispatch(DeployAction{Resources: seedResources(plan)})
	if err := w.exec.Deploy(ctx, plan.Handle, w.streamProgress); err != nil {
		return w.fail("apply", err)
	}

	outputs, err := w.exec.Output(ctx)
	if err != nil {
		return w.fail("output", err)
	}
	w.machine.Dispatch(OutputAction{Outputs: outputs})
	w.machine.Dispatch(DoneAction{})
	return nil
}

// Destroy runs the full destroy pipeline.
func (w *Workflow) Destroy(ctx context.Context) error {
	if err := w.plan(ctx, true); err != nil {
		return err
	}

	st := w.machine.Snapshot()
	if st.Status != StatusPlanned || st.Plan == nil {
		return nil
	}
	plan := st.Plan

	if !plan.NeedsApply {
		logging.Info("no changes, nothing to destroy", "stack", st.StackName)
		w.machine.Dispatch(DoneAction{})
		return nil
	}

	approved, err := w.confirm.Confirm(ctx, plan)
	if err != nil {
		return w.fail("confirmation", err)
	}
	if !approved {
		return ErrAborted
	}

	w.machine.Dispatch(DestroyAction{Resources: seedResources(plan)})
	if err := w.exec.Destroy(ctx, w.streamProgress); err != nil {
		return w.fail("destroy", err)
	}

	w.machine.Dispatch(DoneAction{})
	return nil
}

// FetchOutputs initializes the backend and records the stack outputs
// without applying anything.
func (w *Workflow) FetchOutputs(ctx context.Context) error {
	if err := w.Init(ctx); err != nil {
		return err
	}

	exec, err := w.executor(ctx)
	if err != nil {
		return w.fail("output", err)
	}

	outputs, err := exec.Output(ctx)
	if err != nil {
		return w.fail("output", err)
	}
	w.machine.Dispatch(OutputAction{Outputs: outputs})
	return nil
}

// streamProgress is the backend output callback: each chunk is parsed into
// progress records and merged into the resource set.
func (w *Workflow) streamProgress(chunk []byte) {
	if records := ParseOutput(chunk); len(records) > 0 {
		w.machine.Dispatch(UpdateResourcesAction{Resources: records})
	}
}

// executor picks the backend for the synthesized stack: the cloud executor
// when the stack declares a remote backend whose workspace is reachable,
// the local executor otherwise. The choice is made once and cached.
func (w *Workflow) executor(ctx context.Context) (backend.Executor, error) {
	if w.exec != nil {
		return w.exec, nil
	}

	st := w.machine.Snapshot()
	if st.StackName == "" {
		return nil, ErrNotSynthesized
	}

	if cfg, ok := backend.RemoteConfigFromStack(st.StackJSON); ok && w.remote != nil {
		remote := w.remote(cfg)
		if remote.IsRemoteWorkspace(ctx) {
			logging.Info("using cloud backend", "organization", cfg.Organization, "workspace", cfg.Workspace)
			w.exec = remote
			return w.exec, nil
		}
		logging.Warn("remote backend declared but workspace is unreachable, using local backend",
			"organization", cfg.Organization, "workspace", cfg.Workspace)
	}

	w.exec = w.local(synth.StackDir(w.outdir, st.StackName))
	return w.exec, nil
}

// fail records a stage failure on the machine and stops the pipeline. The
// state stays valid and inspectable afterwards.
func (w *Workflow) fail(stage string, err error) error {
	w.machine.Dispatch(ErrorAction{Message: fmt.Sprintf("%s: %s", stage, err)})
	logging.Error("stage failed", "stage", stage, "error", err)
	return fmt.Errorf("%s failed: %w", stage, err)
}

// seedResources builds the initial waiting resource set from a plan so the
// UI has the complete list before the first progress line arrives.
func seedResources(plan *ir.Plan) []ir.ResourceProgress {
	resources := make([]ir.ResourceProgress, 0, len(plan.Resources))
	for _, res := range plan.Resources {
		resources = append(resources, ir.ResourceProgress{
			Address: res.Address,
			Action:  res.Action,
			State:   ir.StateWaiting,
		})
	}
	return resources
}

package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfpilot-io/tfpilot/internal/ir"
)

func TestTransition_Lifecycle(t *testing.T) {
	st := NewState()
	assert.Equal(t, StatusStarting, st.Status)

	st = Transition(st, SynthAction{})
	assert.Equal(t, StatusSynthesizing, st.Status)

	st = Transition(st, NewStackAction{Name: "prod", JSON: `{"resource":{}}`})
	assert.Equal(t, StatusSynthesized, st.Status)
	assert.Equal(t, "prod", st.StackName)
	assert.Equal(t, `{"resource":{}}`, st.StackJSON)

	st = Transition(st, InitAction{})
	assert.Equal(t, StatusInitializing, st.Status)

	st = Transition(st, PlanAction{})
	assert.Equal(t, StatusPlanning, st.Status)

	plan := &ir.Plan{NeedsApply: true, Handle: "tfpilot.tfplan"}
	st = Transition(st, PlannedAction{Plan: plan})
	assert.Equal(t, StatusPlanned, st.Status)
	assert.Same(t, plan, st.Plan)
	assert.Empty(t, st.URL)

	st = Transition(st, DeployAction{Resources: []ir.ResourceProgress{
		{Address: "aws_instance.foo", Action: ir.ActionCreate, State: ir.StateWaiting},
	}})
	assert.Equal(t, StatusDeploying, st.Status)
	require.Len(t, st.Resources, 1)

	st = Transition(st, OutputAction{Outputs: map[string]ir.OutputValue{
		"endpoint": {Value: "https://example.com"},
	}})
	assert.Equal(t, StatusDeploying, st.Status)
	assert.Equal(t, "https://example.com", st.Outputs["endpoint"].Value)

	st = Transition(st, DoneAction{})
	assert.Equal(t, StatusDone, st.Status)
}

func TestTransition_PlannedWithURL(t *testing.T) {
	st := Transition(NewState(), PlannedAction{Plan: &ir.Plan{
		NeedsApply: true,
		Handle:     "run-abc123",
		URL:        "https://app.terraform.io/app/acme/workspaces/prod/runs/run-abc123",
	}})

	assert.Equal(t, StatusPlanned, st.Status)
	assert.Equal(t, "https://app.terraform.io/app/acme/workspaces/prod/runs/run-abc123", st.URL)
}

func TestTransition_DestroyReplacesResources(t *testing.T) {
	st := Transition(NewState(), DeployAction{Resources: []ir.ResourceProgress{
		{Address: "a", State: ir.StateCreated},
	}})

	st = Transition(st, DestroyAction{Resources: []ir.ResourceProgress{
		{Address: "b", Action: ir.ActionDelete, State: ir.StateWaiting},
	}})

	assert.Equal(t, StatusDestroying, st.Status)
	assert.Equal(t, []ir.ResourceProgress{
		{Address: "b", Action: ir.ActionDelete, State: ir.StateWaiting},
	}, st.Resources)
}

func TestTransition_UpdateResourcesPreservesOrder(t *testing.T) {
	st := Transition(NewState(), DeployAction{Resources: []ir.ResourceProgress{
		{Address: "a", Action: ir.ActionCreate, State: ir.StateWaiting},
	}})

	st = Transition(st, UpdateResourcesAction{Resources: []ir.ResourceProgress{
		{Address: "a", Action: ir.ActionCreate, State: ir.StateCreated},
	}})
	st = Transition(st, UpdateResourcesAction{Resources: []ir.ResourceProgress{
		{Address: "b", Action: ir.ActionCreate, State: ir.StateWaiting},
	}})

	assert.Equal(t, []ir.ResourceProgress{
		{Address: "a", Action: ir.ActionCreate, State: ir.StateCreated},
		{Address: "b", Action: ir.ActionCreate, State: ir.StateWaiting},
	}, st.Resources)
	assert.Equal(t, StatusDeploying, st.Status)
}

func TestTransition_ErrorAccumulates(t *testing.T) {
	st := Transition(NewState(), PlanAction{})

	st = Transition(st, ErrorAction{Message: "plan: terraform plan failed"})
	st = Transition(st, ErrorAction{Message: "plan: retry also failed"})

	assert.Equal(t, StatusPlanning, st.Status)
	assert.Equal(t, []string{"plan: terraform plan failed", "plan: retry also failed"}, st.Errors)
}

func TestTransition_Pure(t *testing.T) {
	st := Transition(NewState(), DeployAction{Resources: []ir.ResourceProgress{
		{Address: "a", State: ir.StateWaiting},
	}})

	action := UpdateResourcesAction{Resources: []ir.ResourceProgress{
		{Address: "a", State: ir.StateCreated},
	}}

	first := Transition(st, action)
	second := Transition(st, action)

	assert.Equal(t, first, second)
	// The input state is untouched.
	assert.Equal(t, ir.StateWaiting, st.Resources[0].State)
}

func TestTransition_UnknownActionPanics(t *testing.T) {
	assert.Panics(t, func() {
		Transition(NewState(), nil)
	})
}

func TestMachine_DispatchSerializes(t *testing.T) {
	m := NewMachine()

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			m.Dispatch(ErrorAction{Message: "boom"})
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Len(t, m.Snapshot().Errors, 10)
}

func TestMachine_SnapshotIsIndependent(t *testing.T) {
	m := NewMachine()
	m.Dispatch(DeployAction{Resources: []ir.ResourceProgress{
		{Address: "a", State: ir.StateWaiting},
	}})

	snap := m.Snapshot()
	snap.Resources[0].State = ir.StateDestroyed

	assert.Equal(t, ir.StateWaiting, m.Snapshot().Resources[0].State)
}

func TestMachine_SubscriberSeesEveryDispatch(t *testing.T) {
	m := NewMachine()

	var statuses []Status
	m.Subscribe(func(st State) {
		statuses = append(statuses, st.Status)
	})

	m.Dispatch(SynthAction{})
	m.Dispatch(NewStackAction{Name: "prod"})

	assert.Equal(t, []Status{StatusSynthesizing, StatusSynthesized}, statuses)
}

package deploy

import (
	"fmt"

	"github.com/tfpilot-io/tfpilot/internal/ir"
)

// Action is the sealed set of inputs to Transition. Every variant is a
// struct in this package; nothing outside can implement it, so the type
// switch in Transition is exhaustive.
type Action interface {
	isAction()
}

// SynthAction marks the start of configuration synthesis.
type SynthAction struct{}

// NewStackAction records the synthesized stack and its configuration
// document.
type NewStackAction struct {
	Name string
	JSON string
}

// InitAction marks the start of backend initialization.
type InitAction struct{}

// PlanAction marks the start of plan computation.
type PlanAction struct{}

// PlannedAction stores a completed plan. A plan carrying a review URL
// (cloud backend) also sets the session URL.
type PlannedAction struct {
	Plan *ir.Plan
}

// DeployAction enters the deploying phase, replacing the resource set
// wholesale with the given initial (waiting) resources.
type DeployAction struct {
	Resources []ir.ResourceProgress
}

// DestroyAction enters the destroying phase with the same replacement
// semantics as DeployAction.
type DestroyAction struct {
	Resources []ir.ResourceProgress
}

// UpdateResourcesAction merges incoming progress records into the current
// resource set. Status is unchanged.
type UpdateResourcesAction struct {
	Resources []ir.ResourceProgress
}

// OutputAction stores the stack outputs. Status is unchanged.
type OutputAction struct {
	Outputs map[string]ir.OutputValue
}

// DoneAction marks the session as successfully finished.
type DoneAction struct{}

// ErrorAction appends a message to the accumulated errors. Status is
// unchanged; the orchestrator decides whether to continue.
type ErrorAction struct {
	Message string
}

func (SynthAction) isAction()           {}
func (NewStackAction) isAction()        {}
func (InitAction) isAction()            {}
func (PlanAction) isAction()            {}
func (PlannedAction) isAction()         {}
func (DeployAction) isAction()          {}
func (DestroyAction) isAction()         {}
func (UpdateResourcesAction) isAction() {}
func (OutputAction) isAction()          {}
func (DoneAction) isAction()            {}
func (ErrorAction) isAction()           {}

// Transition applies an action to a state and returns the next state. It
// is pure: the input state is never mutated, and equal inputs always yield
// equal results. An action variant missing from the switch is a
// programming error and panics.
func Transition(s State, a Action) State {
	next := s.clone()

	switch a := a.(type) {
	case SynthAction:
		next.Status = StatusSynthesizing
	case NewStackAction:
		next.Status = StatusSynthesized
		next.StackName = a.Name
		next.StackJSON = a.JSON
	case InitAction:
		next.Status = StatusInitializing
	case PlanAction:
		next.Status = StatusPlanning
	case PlannedAction:
		next.Status = StatusPlanned
		next.Plan = a.Plan
		if a.Plan != nil && a.Plan.URL != "" {
			next.URL = a.Plan.URL
		}
	case DeployAction:
		next.Status = StatusDeploying
		next.Resources = append([]ir.ResourceProgress(nil), a.Resources...)
	case DestroyAction:
		next.Status = StatusDestroying
		next.Resources = append([]ir.ResourceProgress(nil), a.Resources...)
	case UpdateResourcesAction:
		next.Resources = mergeResources(next.Resources, a.Resources)
	case OutputAction:
		outputs := make(map[string]ir.OutputValue, len(a.Outputs))
		for k, v := range a.Outputs {
			outputs[k] = v
		}
		next.Outputs = outputs
	case DoneAction:
		next.Status = StatusDone
	case ErrorAction:
		next.Errors = append(next.Errors, a.Message)
	default:
		panic(fmt.Sprintf("unhandled action type %T", a))
	}

	return next
}

package deploy

import (
	"github.com/tfpilot-io/tfpilot/internal/ir"
)

// Status is the lifecycle position of a deployment session. It only moves
// forward; error accumulation is orthogonal and never changes it.
type Status string

const (
	StatusStarting     Status = "STARTING"
	StatusSynthesizing Status = "SYNTHESIZING"
	StatusSynthesized  Status = "SYNTHESIZED"
	StatusInitializing Status = "INITIALIZING"
	StatusPlanning     Status = "PLANNING"
	StatusPlanned      Status = "PLANNED"
	StatusDeploying    Status = "DEPLOYING"
	StatusDestroying   Status = "DESTROYING"
	StatusDone         Status = "DONE"
)

// State is the single source of truth for one deployment session. It is
// created once with StatusStarting and mutated exclusively through
// Transition for the session's duration.
type State struct {
	Status    Status
	Resources []ir.ResourceProgress
	Plan      *ir.Plan
	URL       string
	StackName string
	StackJSON string
	Errors    []string
	Outputs   map[string]ir.OutputValue
}

// NewState returns the initial state of a session.
func NewState() State {
	return State{Status: StatusStarting}
}

// clone returns a copy whose slices and maps are independent of the
// receiver, so Transition never aliases its input. The Plan pointer is
// shared; plans are immutable once produced.
func (s State) clone() State {
	out := s
	if s.Resources != nil {
		out.Resources = append([]ir.ResourceProgress(nil), s.Resources...)
	}
	if s.Errors != nil {
		out.Errors = append([]string(nil), s.Errors...)
	}
	if s.Outputs != nil {
		outputs := make(map[string]ir.OutputValue, len(s.Outputs))
		for k, v := range s.Outputs {
			outputs[k] = v
		}
		out.Outputs = outputs
	}
	return out
}

package ir

// Plan is a backend-agnostic summary of the changes required to reach the
// desired configuration.
type Plan struct {
	// NeedsApply is false when the infrastructure already matches the
	// configuration; applying such a plan is a successful no-op.
	NeedsApply bool
	// Resources lists the resources subject to apply or destroy.
	Resources []PlannedResource
	// Handle references the concrete plan artifact: a plan file path for
	// the local backend, a run ID for the cloud backend. It is passed back
	// to apply/destroy untouched.
	Handle string
	// URL is the plan review page. Only set by the cloud backend.
	URL string
}

// PlannedResource is one entry of a plan's change list.
type PlannedResource struct {
	Address string
	Action  ChangeAction
}

// OutputValue is a single stack output as reported by the backend.
type OutputValue struct {
	Value     any  `json:"value"`
	Type      any  `json:"type,omitempty"`
	Sensitive bool `json:"sensitive,omitempty"`
}

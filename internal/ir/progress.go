package ir

// ChangeAction is the planned change for a single resource.
type ChangeAction string

const (
	ActionCreate ChangeAction = "CREATE"
	ActionUpdate ChangeAction = "UPDATE"
	ActionDelete ChangeAction = "DELETE"
)

// ApplyState is the observed lifecycle state of a resource during apply
// or destroy. Waiting is both the initial state and the fallback for
// output lines that do not indicate a transition.
type ApplyState string

const (
	StateWaiting    ApplyState = "WAITING"
	StateCreating   ApplyState = "CREATING"
	StateCreated    ApplyState = "CREATED"
	StateUpdating   ApplyState = "UPDATING"
	StateUpdated    ApplyState = "UPDATED"
	StateDestroying ApplyState = "DESTROYING"
	StateDestroyed  ApplyState = "DESTROYED"
)

// ResourceProgress tracks one managed resource through an apply or destroy.
type ResourceProgress struct {
	Address string
	Action  ChangeAction
	State   ApplyState
}

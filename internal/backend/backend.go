package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tfpilot-io/tfpilot/internal/ir"
)

// Executor performs the real init/plan/apply/destroy/output operations for
// one stack. Two implementations exist: Local drives a terraform binary
// (or a container running one), Remote drives a cloud run API. The caller
// never re-checks the concrete type after selection.
type Executor interface {
	Init(ctx context.Context) error
	// Plan computes the changes required to reach (or, with destroy, tear
	// down) the configuration.
	Plan(ctx context.Context, destroy bool) (*ir.Plan, error)
	// Deploy applies the plan referenced by handle, streaming raw output
	// chunks to onOutput as they arrive. onOutput may be nil.
	Deploy(ctx context.Context, handle string, onOutput func([]byte)) error
	// Destroy tears down the infrastructure planned by the most recent
	// destroy plan.
	Destroy(ctx context.Context, onOutput func([]byte)) error
	Output(ctx context.Context) (map[string]ir.OutputValue, error)
}

// RemoteExecutor additionally reports whether its workspace is reachable.
// Backend selection probes this once per session.
type RemoteExecutor interface {
	Executor
	IsRemoteWorkspace(ctx context.Context) bool
}

// planDocument is the subset of Terraform's JSON plan representation that
// the change list is read from. Both `terraform show -json` and the cloud
// plan json-output endpoint emit this shape.
type planDocument struct {
	ResourceChanges []struct {
		Address string `json:"address"`
		Change  struct {
			Actions []string `json:"actions"`
		} `json:"change"`
	} `json:"resource_changes"`
}

func decodePlanResources(raw []byte) ([]ir.PlannedResource, error) {
	var doc planDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}

	var resources []ir.PlannedResource
	for _, rc := range doc.ResourceChanges {
		action, ok := changeAction(rc.Change.Actions)
		if !ok {
			continue
		}
		resources = append(resources, ir.PlannedResource{
			Address: rc.Address,
			Action:  action,
		})
	}
	return resources, nil
}

// changeAction collapses Terraform's action list into a single change
// action. Replacements surface as creates; no-ops and reads carry no
// change at all.
func changeAction(actions []string) (ir.ChangeAction, bool) {
	var create, update, del bool
	for _, a := range actions {
		switch a {
		case "create":
			create = true
		case "update":
			update = true
		case "delete":
			del = true
		}
	}

	switch {
	case update:
		return ir.ActionUpdate, true
	case create:
		return ir.ActionCreate, true
	case del:
		return ir.ActionDelete, true
	default:
		return "", false
	}
}

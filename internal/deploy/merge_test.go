package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tfpilot-io/tfpilot/internal/ir"
)

func TestMergeResources(t *testing.T) {
	current := []ir.ResourceProgress{
		{Address: "a", Action: ir.ActionCreate, State: ir.StateWaiting},
		{Address: "b", Action: ir.ActionCreate, State: ir.StateWaiting},
	}

	merged := mergeResources(current, []ir.ResourceProgress{
		{Address: "b", Action: ir.ActionCreate, State: ir.StateCreating},
		{Address: "c", Action: ir.ActionCreate, State: ir.StateWaiting},
	})

	assert.Equal(t, []ir.ResourceProgress{
		{Address: "a", Action: ir.ActionCreate, State: ir.StateWaiting},
		{Address: "b", Action: ir.ActionCreate, State: ir.StateCreating},
		{Address: "c", Action: ir.ActionCreate, State: ir.StateWaiting},
	}, merged)
}

func TestMergeResources_Idempotent(t *testing.T) {
	record := ir.ResourceProgress{Address: "a", Action: ir.ActionCreate, State: ir.StateCreated}

	once := mergeResources(nil, []ir.ResourceProgress{record})
	twice := mergeResources(once, []ir.ResourceProgress{record})

	assert.Equal(t, once, twice)
}

func TestMergeResources_NoDuplicates(t *testing.T) {
	merged := mergeResources(nil, []ir.ResourceProgress{
		{Address: "a", State: ir.StateCreating},
		{Address: "a", State: ir.StateCreated},
	})

	assert.Equal(t, []ir.ResourceProgress{
		{Address: "a", State: ir.StateCreated},
	}, merged)
}

func TestMergeResources_DoesNotMutateInput(t *testing.T) {
	current := []ir.ResourceProgress{
		{Address: "a", State: ir.StateWaiting},
	}

	mergeResources(current, []ir.ResourceProgress{
		{Address: "a", State: ir.StateCreated},
	})

	assert.Equal(t, ir.StateWaiting, current[0].State)
}

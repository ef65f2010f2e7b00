package backend

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfpilot-io/tfpilot/internal/ir"
)

func TestChangeAction(t *testing.T) {
	tests := []struct {
		name    string
		actions []string
		want    ir.ChangeAction
		ok      bool
	}{
		{"create", []string{"create"}, ir.ActionCreate, true},
		{"update", []string{"update"}, ir.ActionUpdate, true},
		{"delete", []string{"delete"}, ir.ActionDelete, true},
		{"replace surfaces as create", []string{"delete", "create"}, ir.ActionCreate, true},
		{"no-op", []string{"no-op"}, "", false},
		{"read", []string{"read"}, "", false},
		{"empty", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := changeAction(tt.actions)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodePlanResources(t *testing.T) {
	raw := []byte(`{
		"resource_changes": [
			{"address": "aws_instance.foo", "change": {"actions": ["create"]}},
			{"address": "aws_s3_bucket.logs", "change": {"actions": ["update"]}},
			{"address": "data.aws_ami.base", "change": {"actions": ["read"]}},
			{"address": "random_id.suffix", "change": {"actions": ["no-op"]}},
			{"address": "aws_instance.old", "change": {"actions": ["delete"]}}
		]
	}`)

	resources, err := decodePlanResources(raw)
	require.NoError(t, err)
	assert.Equal(t, []ir.PlannedResource{
		{Address: "aws_instance.foo", Action: ir.ActionCreate},
		{Address: "aws_s3_bucket.logs", Action: ir.ActionUpdate},
		{Address: "aws_instance.old", Action: ir.ActionDelete},
	}, resources)
}

func TestDecodePlanResources_BadJSON(t *testing.T) {
	_, err := decodePlanResources([]byte("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode plan")
}

// fakeRunner scripts Capture responses by the leading terraform subcommand
// and records every invocation.
type fakeRunner struct {
	captures map[string][]byte
	errs     map[string]error
	output   []byte

	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, args []string, onOutput func([]byte)) error {
	f.calls = append(f.calls, args)
	if err := f.errs[args[0]]; err != nil {
		return err
	}
	if onOutput != nil && len(f.output) > 0 {
		onOutput(f.output)
	}
	return nil
}

func (f *fakeRunner) Capture(_ context.Context, args []string) ([]byte, error) {
	f.calls = append(f.calls, args)
	if err := f.errs[args[0]]; err != nil {
		return nil, err
	}
	return f.captures[args[0]], nil
}

func TestLocalPlan(t *testing.T) {
	run := &fakeRunner{captures: map[string][]byte{
		"show": []byte(`{"resource_changes": [{"address": "aws_instance.foo", "change": {"actions": ["create"]}}]}`),
	}}
	local := &Local{workdir: "/work/prod", run: run}

	plan, err := local.Plan(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, plan.NeedsApply)
	// Relative, so apply resolves it inside the runner's own working
	// directory (the bind mount for containerized runs).
	assert.Equal(t, "tfpilot.tfplan", plan.Handle)
	require.Len(t, plan.Resources, 1)
	assert.Equal(t, "aws_instance.foo", plan.Resources[0].Address)

	require.Len(t, run.calls, 2)
	assert.Equal(t, []string{"plan", "-input=false", "-no-color", "-out=tfpilot.tfplan"}, run.calls[0])
	assert.Equal(t, []string{"show", "-json", "tfpilot.tfplan"}, run.calls[1])
}

func TestLocalPlan_Destroy(t *testing.T) {
	run := &fakeRunner{captures: map[string][]byte{
		"show": []byte(`{"resource_changes": []}`),
	}}
	local := &Local{workdir: "/work/prod", run: run}

	plan, err := local.Plan(context.Background(), true)
	require.NoError(t, err)

	assert.False(t, plan.NeedsApply)
	assert.Contains(t, run.calls[0], "-destroy")
}

func TestLocalPlan_Fails(t *testing.T) {
	run := &fakeRunner{errs: map[string]error{"plan": errors.New("exit status 1")}}
	local := &Local{workdir: "/work/prod", run: run}

	_, err := local.Plan(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "terraform plan failed")
}

func TestLocalDeploy(t *testing.T) {
	run := &fakeRunner{output: []byte("aws_instance.foo: Creating...\n")}
	local := &Local{workdir: "/work/prod", run: run}

	var streamed []byte
	err := local.Deploy(context.Background(), "tfpilot.tfplan", func(chunk []byte) {
		streamed = append(streamed, chunk...)
	})
	require.NoError(t, err)

	assert.Equal(t, "aws_instance.foo: Creating...\n", string(streamed))
	assert.Equal(t, []string{"apply", "-auto-approve", "-input=false", "tfpilot.tfplan"}, run.calls[0])
}

func TestLocalPlanHandleAppliesInWorkdir(t *testing.T) {
	run := &fakeRunner{captures: map[string][]byte{
		"show": []byte(`{"resource_changes": [{"address": "aws_instance.foo", "change": {"actions": ["create"]}}]}`),
	}}
	local := &Local{workdir: "/work/prod", run: run}

	plan, err := local.Plan(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, local.Deploy(context.Background(), plan.Handle, nil))

	// The apply argument carries no host path, so it resolves the same
	// whether the runner executes on the host or inside a container whose
	// working directory is a bind mount.
	applyArgs := run.calls[len(run.calls)-1]
	assert.NotContains(t, applyArgs[len(applyArgs)-1], "/")
	assert.Equal(t, "tfpilot.tfplan", applyArgs[len(applyArgs)-1])
}

func TestLocalDestroy(t *testing.T) {
	run := &fakeRunner{}
	local := &Local{workdir: "/work/prod", run: run}

	require.NoError(t, local.Destroy(context.Background(), nil))
	assert.Equal(t, []string{"destroy", "-auto-approve", "-input=false"}, run.calls[0])
}

func TestLocalOutput(t *testing.T) {
	run := &fakeRunner{captures: map[string][]byte{
		"output": []byte(`{
			"endpoint": {"value": "https://example.com", "type": "string", "sensitive": false},
			"db_password": {"value": "hunter2", "type": "string", "sensitive": true}
		}`),
	}}
	local := &Local{workdir: "/work/prod", run: run}

	outputs, err := local.Output(context.Background())
	require.NoError(t, err)

	require.Len(t, outputs, 2)
	assert.Equal(t, "https://example.com", outputs["endpoint"].Value)
	assert.False(t, outputs["endpoint"].Sensitive)
	assert.True(t, outputs["db_password"].Sensitive)
}

func TestLocalOutput_Empty(t *testing.T) {
	run := &fakeRunner{captures: map[string][]byte{"output": []byte("\n")}}
	local := &Local{workdir: "/work/prod", run: run}

	outputs, err := local.Output(context.Background())
	require.NoError(t, err)
	assert.Empty(t, outputs)
}

func TestNewLocal_DefaultBinary(t *testing.T) {
	local := NewLocal("/work/prod", "")
	run, ok := local.run.(*execRunner)
	require.True(t, ok)
	assert.Equal(t, "terraform", run.binary)
	assert.True(t, strings.HasSuffix(local.workdir, "prod"))
}

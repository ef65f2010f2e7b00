package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfpilot-io/tfpilot/internal/ir"
)

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []ir.ResourceProgress
	}{
		{
			name:  "creating",
			input: "aws_instance.foo: Creating...\n",
			expected: []ir.ResourceProgress{
				{Address: "aws_instance.foo", Action: ir.ActionCreate, State: ir.StateCreating},
			},
		},
		{
			name:  "creation complete",
			input: "aws_instance.foo: Creation complete after 4s [id=i-0abc]\n",
			expected: []ir.ResourceProgress{
				{Address: "aws_instance.foo", Action: ir.ActionCreate, State: ir.StateCreated},
			},
		},
		{
			name:  "modifying",
			input: "aws_s3_bucket.logs: Modifying... [id=logs]\n",
			expected: []ir.ResourceProgress{
				{Address: "aws_s3_bucket.logs", Action: ir.ActionUpdate, State: ir.StateUpdating},
			},
		},
		{
			name:  "modifications complete",
			input: "aws_s3_bucket.logs: Modifications complete after 2s\n",
			expected: []ir.ResourceProgress{
				{Address: "aws_s3_bucket.logs", Action: ir.ActionUpdate, State: ir.StateUpdated},
			},
		},
		{
			name:  "destroying",
			input: "aws_instance.foo: Destroying... [id=i-0abc]\n",
			expected: []ir.ResourceProgress{
				{Address: "aws_instance.foo", Action: ir.ActionDelete, State: ir.StateDestroying},
			},
		},
		{
			name:  "destruction complete",
			input: "aws_instance.foo: Destruction complete after 31s\n",
			expected: []ir.ResourceProgress{
				{Address: "aws_instance.foo", Action: ir.ActionDelete, State: ir.StateDestroyed},
			},
		},
		{
			name:  "no transition marker falls back to waiting",
			input: "aws_instance.foo: Refreshing state... [id=i-0abc]\n",
			expected: []ir.ResourceProgress{
				{Address: "aws_instance.foo", Action: ir.ActionCreate, State: ir.StateWaiting},
			},
		},
		{
			name:     "outputs header is skipped",
			input:    "Outputs:\n",
			expected: nil,
		},
		{
			name:     "data source lines are skipped",
			input:    "data.aws_ami.ubuntu: Reading...\n",
			expected: nil,
		},
		{
			name:     "lines without an address prefix are skipped",
			input:    "Apply complete! Resources: 1 added, 0 changed, 0 destroyed.\n",
			expected: nil,
		},
		{
			name:     "plan summary line is skipped",
			input:    "Plan: 2 to add, 0 to change, 0 to destroy.\n",
			expected: nil,
		},
		{
			name:     "destroy summary line is skipped",
			input:    "Destroy complete! Resources: 1 destroyed.\n",
			expected: nil,
		},
		{
			name:  "module-qualified address",
			input: "module.app.aws_instance.foo: Creating...\n",
			expected: []ir.ResourceProgress{
				{Address: "module.app.aws_instance.foo", Action: ir.ActionCreate, State: ir.StateCreating},
			},
		},
		{
			name:  "ansi escapes are stripped",
			input: "\x1b[0m\x1b[1maws_instance.foo: Creating...\x1b[0m\n",
			expected: []ir.ResourceProgress{
				{Address: "aws_instance.foo", Action: ir.ActionCreate, State: ir.StateCreating},
			},
		},
		{
			name: "multiple lines in one chunk",
			input: "aws_instance.foo: Creating...\n" +
				"random_id.suffix: Creation complete after 0s [id=xyz]\n" +
				"\n" +
				"Plan: 2 to add, 0 to change, 0 to destroy.\n",
			expected: []ir.ResourceProgress{
				{Address: "aws_instance.foo", Action: ir.ActionCreate, State: ir.StateCreating},
				{Address: "random_id.suffix", Action: ir.ActionCreate, State: ir.StateCreated},
			},
		},
		{
			name:     "empty chunk",
			input:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseOutput([]byte(tt.input)))
		})
	}
}

func TestParseOutput_CRLF(t *testing.T) {
	records := ParseOutput([]byte("aws_instance.foo: Creating...\r\n"))
	require.Len(t, records, 1)
	assert.Equal(t, "aws_instance.foo", records[0].Address)
	assert.Equal(t, ir.StateCreating, records[0].State)
}

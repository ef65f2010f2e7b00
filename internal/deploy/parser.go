package deploy

import (
	"regexp"
	"strings"

	"github.com/tfpilot-io/tfpilot/internal/ir"
)

var (
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

	// A resource progress line starts with the resource address followed
	// by a colon, e.g. "aws_instance.foo: Creating...". Every address has
	// at least one type.name segment, which keeps summary lines such as
	// "Plan: 2 to add, 0 to change, 0 to destroy." from matching.
	addressPattern = regexp.MustCompile(`^([A-Za-z0-9_]+(?:\.[A-Za-z0-9_]+)+):`)

	dataSourcePattern = regexp.MustCompile(`^data\.`)
)

// ParseOutput converts a chunk of raw process output into structured
// resource progress records. Lines that belong to the outputs section,
// data-source reads, or that carry no address prefix produce no record.
// Malformed input degrades to an empty or partial result, never an error.
func ParseOutput(chunk []byte) []ir.ResourceProgress {
	text := ansiPattern.ReplaceAllString(string(chunk), "")

	var records []ir.ResourceProgress
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "Outputs:") || dataSourcePattern.MatchString(line) {
			continue
		}

		m := addressPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		state, action := classifyLine(line)
		records = append(records, ir.ResourceProgress{
			Address: m[1],
			Action:  action,
			State:   state,
		})
	}

	return records
}

// classifyLine maps a progress line to an apply state and the change
// action that state implies. Lines without a recognized marker stay in
// the waiting state.
func classifyLine(line string) (ir.ApplyState, ir.ChangeAction) {
	switch {
	case strings.Contains(line, "Creating..."):
		return ir.StateCreating, ir.ActionCreate
	case strings.Contains(line, "Creation complete"):
		return ir.StateCreated, ir.ActionCreate
	case strings.Contains(line, "Modifying..."):
		return ir.StateUpdating, ir.ActionUpdate
	case strings.Contains(line, "Modifications complete"):
		return ir.StateUpdated, ir.ActionUpdate
	case strings.Contains(line, "Destroying..."):
		return ir.StateDestroying, ir.ActionDelete
	case strings.Contains(line, "Destruction complete"):
		return ir.StateDestroyed, ir.ActionDelete
	default:
		return ir.StateWaiting, ir.ActionCreate
	}
}

package deploy

import (
	"github.com/tfpilot-io/tfpilot/internal/ir"
)

// mergeResources folds incoming progress records into the current set,
// keyed by resource address. Existing entries are overwritten in place,
// unseen addresses are appended, so ordering reflects first-seen order and
// no address ever appears twice. Merging the same record again is a no-op.
func mergeResources(current, incoming []ir.ResourceProgress) []ir.ResourceProgress {
	merged := append([]ir.ResourceProgress(nil), current...)
	index := make(map[string]int, len(merged))
	for i, res := range merged {
		index[res.Address] = i
	}

	for _, res := range incoming {
		if i, ok := index[res.Address]; ok {
			merged[i] = res
			continue
		}
		index[res.Address] = len(merged)
		merged = append(merged, res)
	}

	return merged
}

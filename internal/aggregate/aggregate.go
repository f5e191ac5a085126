// Package aggregate folds the outcomes of all units of a run into a verdict.
package aggregate

import (
	"fmt"
	"slices"

	"github.com/CZERTAINLY/verascan/internal/model"
)

// Aggregate returns the verdict of a run. Outcomes are reported in the
// sorted order of their labels, followed by the sorted output files.
// The failure magnitude sums absolute exit codes, so negative codes
// can't cancel positive ones.
func Aggregate(rr *model.RunResult, files *model.OutputFiles, failBuild bool) model.Verdict {
	var v model.Verdict
	if rr != nil {
		for key, outcome := range rr.All() {
			if outcome.ExitCode == 0 {
				v.Messages = append(v.Messages, key+": succeeded")
				continue
			}
			v.TotalFailureMagnitude += abs(outcome.ExitCode)
			v.Messages = append(v.Messages, fmt.Sprintf("%s: failed: %s", key, outcome.Message))
		}
	}

	if files != nil {
		var lines []string
		for _, f := range files.Items() {
			lines = append(lines, fmt.Sprintf("Output file: %s: %s", f.Kind, f.Path))
		}
		slices.Sort(lines)
		v.Messages = append(v.Messages, lines...)
	}

	v.ShouldFailBuild = failBuild && v.TotalFailureMagnitude != 0
	return v
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}

// Package scan coordinates the scanner processes of a run: one static
// analysis process per target, the composition analysis agent and the
// upload-and-scan of a platform scan.
package scan

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/process"
)

const (
	// ResultsDir is the directory in the workdir with all scan results
	ResultsDir = "scan_results"
	// AgentLabel is the result key of the composition analysis
	AgentLabel = model.AgentUnit
)

// Runner runs a single scanner process, see process.Runner.
type Runner interface {
	Run(ctx context.Context, label string, cmd model.ScanCommand, opts process.Options) model.ScanOutcome
}

// TargetResultsDir returns the directory for the results of a target.
// Dots are replaced, so a.jar and a.war do not share the directory with
// their base names.
func TargetResultsDir(workDir, targetName string) string {
	return filepath.Join(workDir, ResultsDir, strings.ReplaceAll(targetName, ".", "_"))
}

// ResultsDirs returns a distinct results directory for each of the target
// names. A name which maps to a directory already taken gets a numeric
// suffix, so a.jar and a_jar never share results.
func ResultsDirs(workDir string, names []string) []string {
	ret := make([]string, len(names))
	taken := make(map[string]struct{}, len(names))
	for i, name := range names {
		dir := TargetResultsDir(workDir, name)
		for n := 2; ; n++ {
			if _, ok := taken[dir]; !ok {
				break
			}
			dir = fmt.Sprintf("%s_%d", TargetResultsDir(workDir, name), n)
		}
		taken[dir] = struct{}{}
		ret[i] = dir
	}
	return ret
}

func mergeEnv(maps ...map[string]string) map[string]string {
	ret := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			ret[k] = v
		}
	}
	return ret
}

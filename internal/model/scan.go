package model

import (
	"github.com/CZERTAINLY/verascan/internal/parallel"
)

// AgentUnit is the result key of the composition analysis. No scan
// target of a pipeline scan may take it.
const AgentUnit = "SCA Scan"

// ScanTarget is one independently scanned artifact or folder.
type ScanTarget struct {
	Name string
	Path string
}

// ScanCommand is the command line of a single scanner process plus
// the environment variables overlaid on top of the current process environment.
// It is built right before the launch and never shared between attempts.
type ScanCommand struct {
	Args  []string
	Env   map[string]string
	Shell bool // run Args through sh -c
}

// ScanOutcome is a terminal result of one unit of work.
type ScanOutcome struct {
	ExitCode int
	// Message is the last meaningful line of the output
	Message string
	// ScanID is empty when the tool did not report any
	ScanID string
}

func (o ScanOutcome) Failed() bool {
	return o.ExitCode != 0
}

// RunResult maps a unit label to its outcome. Every unit stores exactly one outcome.
type RunResult = parallel.Map[string, ScanOutcome]

func NewRunResult() *RunResult {
	return parallel.NewMap[string, ScanOutcome]()
}

// OutputFileRecord describes a durable artifact generated during a run
type OutputFileRecord struct {
	Kind string
	Path string
}

// OutputFiles collects records appended from concurrent units.
type OutputFiles = parallel.List[OutputFileRecord]

// Verdict is the aggregated result of a run.
type Verdict struct {
	// TotalFailureMagnitude is a sum of absolute exit codes of all failed units
	TotalFailureMagnitude int
	Messages              []string
	ShouldFailBuild       bool
}

// Organization holds the identifiers resolved against the platform
// before the orchestration starts. The orchestrator uses them verbatim.
type Organization struct {
	ApplicationName     string
	ApplicationGUID     string
	ApplicationLegacyID string
	PolicyName          string
	BusinessUnitGUID    string
	CollectionGUID      string
	Teams               []Team

	WorkspaceGUID string
	AgentID       string
	AgentToken    string
	AgentAPIURL   string
}

// AgentEnabled says if the composition analysis agent scan should run
func (o Organization) AgentEnabled() bool {
	return o.AgentToken != ""
}

type Team struct {
	Name     string
	GUID     string
	LegacyID string
}

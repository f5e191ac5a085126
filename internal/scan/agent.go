package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/CZERTAINLY/verascan/internal/bom"
	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/process"
)

// AgentFilter selects the line with the link to the report.
var AgentFilter = []string{"Full Report Details", "https://"}

const cleanupTimeout = 30 * time.Second

// AgentAPI is the part of the platform REST API used by the agent scan.
type AgentAPI interface {
	ProjectForScan(ctx context.Context, workspaceID, scanID string) (string, error)
	LinkProject(ctx context.Context, appGUID, projectID string) error
	SBOM(ctx context.Context, projectID, format string) ([]byte, error)
	DeleteAgent(ctx context.Context, workspaceID, agentID string) error
}

// Agent runs the composition analysis agent over the git repository of the source.
type Agent struct {
	runner Runner
	api    AgentAPI
	cfg    model.Config
	org    model.Organization
	files  *model.OutputFiles
}

func NewAgent(runner Runner, api AgentAPI, cfg model.Config, org model.Organization, files *model.OutputFiles) *Agent {
	return &Agent{
		runner: runner,
		api:    api,
		cfg:    cfg,
		org:    org,
		files:  files,
	}
}

func (a *Agent) Command() model.ScanCommand {
	args := []string{a.cfg.Agent.Binary, "scan", GitRoot(a.cfg.Scan.Source), "--recursive", "--allow-dirty"}
	if a.cfg.Verbose {
		args = append(args, "--debug")
	}
	return model.ScanCommand{
		Args: args,
		Env: mergeEnv(a.cfg.Credentials.Env(), map[string]string{
			"SRCCLR_API_URL":   a.org.AgentAPIURL,
			"SRCCLR_API_TOKEN": a.org.AgentToken,
		}),
		Shell: true,
	}
}

// Run scans and then links the scanned project with the application. The
// agent token is expired when Run returns, even if ctx was canceled.
func (a *Agent) Run(ctx context.Context) (outcome model.ScanOutcome) {
	defer a.cleanup(ctx)

	resultsFile := filepath.Join(a.cfg.WorkDir, ResultsDir, "sca_results.txt")
	if a.files != nil {
		a.files.Append(model.OutputFileRecord{Kind: "SCA scan results", Path: resultsFile})
	}

	outcome = a.runner.Run(ctx, "Running SCA Scan", a.Command(), process.Options{
		Dir:         a.cfg.WorkDir,
		ResultsFile: resultsFile,
		Filter:      AgentFilter,
	})
	if outcome.Failed() || outcome.ScanID == "" {
		return outcome
	}

	project, err := a.api.ProjectForScan(ctx, a.org.WorkspaceGUID, outcome.ScanID)
	if err != nil {
		return failed(outcome, fmt.Errorf("finding project of scan %s: %w", outcome.ScanID, err))
	}
	if a.cfg.Agent.LinkProject {
		if err := a.api.LinkProject(ctx, a.org.ApplicationGUID, project); err != nil {
			return failed(outcome, fmt.Errorf("linking project %s to application %s: %w", project, a.org.ApplicationName, err))
		}
		slog.InfoContext(ctx, "project linked", "project", project, "application", a.org.ApplicationName)
	}

	if a.cfg.Agent.SBOMType != "" {
		a.saveSBOM(ctx, project)
	}
	return outcome
}

// saveSBOM failures are reported, but do not fail the scan
func (a *Agent) saveSBOM(ctx context.Context, project string) {
	format := a.cfg.Agent.SBOMType
	raw, err := a.api.SBOM(ctx, project, format)
	if err != nil {
		slog.WarnContext(ctx, "downloading SBOM", "project", project, "format", format, "error", err)
		return
	}
	path := filepath.Join(a.cfg.WorkDir, ResultsDir, bom.FileName(format))
	if err := bom.Save(raw, format, path); err != nil {
		slog.WarnContext(ctx, "saving SBOM", "path", path, "error", err)
		return
	}
	if a.files != nil {
		a.files.Append(model.OutputFileRecord{Kind: "SBOM " + format, Path: path})
	}
}

func (a *Agent) cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := a.api.DeleteAgent(ctx, a.org.WorkspaceGUID, a.org.AgentID); err != nil {
		slog.WarnContext(ctx, "expiring agent token", "agent", a.org.AgentID, "error", err)
		return
	}
	slog.DebugContext(ctx, "agent token expired", "agent", a.org.AgentID)
}

func failed(outcome model.ScanOutcome, err error) model.ScanOutcome {
	return model.ScanOutcome{
		ExitCode: 1,
		Message:  err.Error(),
		ScanID:   outcome.ScanID,
	}
}

// GitRoot returns the closest directory with .git, starting at source and
// walking up. The source itself is returned when there is none.
func GitRoot(source string) string {
	abs, err := filepath.Abs(source)
	if err != nil {
		return source
	}
	for dir := abs; ; {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return source
		}
		dir = parent
	}
}

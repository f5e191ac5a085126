package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/CZERTAINLY/verascan/internal/log"
	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/parallel"
	"github.com/CZERTAINLY/verascan/internal/process"
)

// CommandBuilder returns the command scanning a target which writes
// its results to the given files.
type CommandBuilder func(target model.ScanTarget, resultsJSON, resultsTXT string) model.ScanCommand

// Pipeline scans every target by its own process, all of them at once.
type Pipeline struct {
	runner  Runner
	workDir string
	files   *model.OutputFiles
}

func NewPipeline(runner Runner, workDir string, files *model.OutputFiles) *Pipeline {
	return &Pipeline{
		runner:  runner,
		workDir: workDir,
		files:   files,
	}
}

// StaticScanCommand returns the builder of the static analysis CLI invocation.
func StaticScanCommand(cfg model.Config, org model.Organization, policyFile string) CommandBuilder {
	return func(target model.ScanTarget, resultsJSON, resultsTXT string) model.ScanCommand {
		args := []string{
			cfg.Tools.CLI, "static", "scan", target.Path,
			"--project-name", org.ApplicationName,
			"--app-id", org.ApplicationGUID,
			"--policy-file", policyFile,
			"--results-file", resultsJSON,
			"--summary-output", resultsTXT,
		}
		if cfg.Verbose {
			args = append(args, "--verbose")
		}
		if cfg.Scan.Include != "" {
			args = append(args, "--include", cfg.Scan.Include)
		}
		return model.ScanCommand{
			Args: args,
			Env:  cfg.Credentials.Env(),
		}
	}
}

// RunAll scans the targets and returns their outcomes.
func (p *Pipeline) RunAll(ctx context.Context, targets []model.ScanTarget, build CommandBuilder) *model.RunResult {
	rr := model.NewRunResult()
	p.Into(ctx, targets, build, rr)
	return rr
}

// Into scans the targets and stores their outcomes to rr. It returns once all
// the processes ended, a failing target does not stop the others.
func (p *Pipeline) Into(ctx context.Context, targets []model.ScanTarget, build CommandBuilder, rr *model.RunResult) {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	dirs := ResultsDirs(p.workDir, names)
	units := make([]unit, len(targets))
	for i, t := range targets {
		units[i] = unit{target: t, dir: dirs[i]}
	}

	parallel.Each(ctx, units, func(ctx context.Context, u unit) {
		target := u.target
		ctx = log.ContextAttrs(ctx, slog.String("target", target.Name))
		outcome := p.scan(ctx, target, u.dir, build)
		if err := rr.Store(target.Name, outcome); err != nil {
			if errors.Is(err, parallel.ErrDuplicate) {
				slog.ErrorContext(ctx, "target scanned twice, outcome dropped", "exit_code", outcome.ExitCode)
				return
			}
			slog.ErrorContext(ctx, "storing outcome", "error", err)
		}
	})
}

// unit is a target with the directory it writes its results to
type unit struct {
	target model.ScanTarget
	dir    string
}

func (p *Pipeline) scan(ctx context.Context, target model.ScanTarget, dir string, build CommandBuilder) model.ScanOutcome {
	resultsJSON := filepath.Join(dir, "results.json")
	resultsTXT := filepath.Join(dir, "results.txt")
	if p.files != nil {
		p.files.Append(
			model.OutputFileRecord{Kind: "Pipeline scan results JSON for " + target.Name, Path: resultsJSON},
			model.OutputFileRecord{Kind: "Pipeline scan results TXT for " + target.Name, Path: resultsTXT},
		)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.ScanOutcome{
			ExitCode: process.ExitLaunchFailure,
			Message:  fmt.Sprintf("creating results directory: %v", err),
		}
	}

	slog.InfoContext(ctx, "scanning")
	cmd := build(target, resultsJSON, resultsTXT)
	return p.runner.Run(ctx, "Scanning "+target.Name, cmd, process.Options{Dir: p.workDir})
}

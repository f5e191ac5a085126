// Package packager turns the scan source into scan targets.
package packager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/process"
	"github.com/CZERTAINLY/verascan/internal/walk"
)

const (
	// OutputDir is the directory in the workdir the packager writes artifacts to
	OutputDir = ".verascan"
	// MaxPipelineScanSize is the largest target accepted by a pipeline scan
	MaxPipelineScanSize = 200_000_000
)

var ErrPackaging = errors.New("packaging failed")

// CommandError is returned when a tool the packaging depends on fails.
type CommandError struct {
	Step    string
	Outcome model.ScanOutcome
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed with exit code %d: %s", e.Step, e.Outcome.ExitCode, e.Outcome.Message)
}

type Runner interface {
	Run(ctx context.Context, label string, cmd model.ScanCommand, opts process.Options) model.ScanOutcome
}

type Packager struct {
	runner   Runner
	cli      string
	workDir  string
	scanType string
	ignore   []string
	pipeline bool
	env      map[string]string
}

func New(runner Runner, cfg model.Config) *Packager {
	return &Packager{
		runner:   runner,
		cli:      cfg.Tools.CLI,
		workDir:  cfg.WorkDir,
		scanType: cfg.Scan.Type,
		ignore:   slices.Clone(cfg.Scan.IgnoreArtifacts),
		pipeline: cfg.Scan.Pipeline,
		env:      cfg.Credentials.Env(),
	}
}

// Package returns the directory holding the scan targets and the targets.
// Folders are packaged by the CLI first, artifacts are used as they are.
func (p *Packager) Package(ctx context.Context, source string) (string, []model.ScanTarget, error) {
	var dir string
	var targets []model.ScanTarget
	var err error

	switch p.scanType {
	case model.ScanTypeFolder:
		dir, err = p.packageFolder(ctx, source)
		if err != nil {
			return "", nil, err
		}
		targets, err = list(dir)
	case model.ScanTypeArtifact:
		dir, targets, err = artifacts(source)
	default:
		return "", nil, fmt.Errorf("unsupported scan type %q", p.scanType)
	}
	if err != nil {
		return "", nil, err
	}
	if len(targets) == 0 {
		return "", nil, fmt.Errorf("%w - no files generated at %s", ErrPackaging, dir)
	}

	if p.pipeline {
		if slices.ContainsFunc(targets, func(t model.ScanTarget) bool { return t.Name == model.AgentUnit }) {
			return "", nil, fmt.Errorf("%w - the name %q is reserved for the composition analysis, rename the file at %s", ErrPackaging, model.AgentUnit, dir)
		}
		for _, t := range targets {
			size, err := walk.Size(ctx, t.Path)
			if err != nil {
				slog.WarnContext(ctx, "can't measure scan target", "target", t.Name, "error", err)
				continue
			}
			if size > MaxPipelineScanSize {
				slog.WarnContext(ctx, "scan target exceeds the pipeline scan size limit", "target", t.Name, "size", size, "limit", MaxPipelineScanSize)
			}
		}
	}
	return dir, targets, nil
}

func (p *Packager) packageFolder(ctx context.Context, source string) (string, error) {
	out := filepath.Join(p.workDir, OutputDir)
	outcome := p.runner.Run(ctx, "Veracode Packager", model.ScanCommand{
		Args: []string{p.cli, "package", "-das", source, "--output", out},
		Env:  p.env,
	}, process.Options{Dir: p.workDir})
	if outcome.Failed() {
		return "", &CommandError{Step: "packaging", Outcome: outcome}
	}

	for _, name := range p.ignore {
		path := filepath.Join(out, name)
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return "", fmt.Errorf("removing ignored artifact %s: %w", name, err)
			}
			continue
		}
		slog.DebugContext(ctx, "ignored artifact removed", "path", path)
	}
	return out, nil
}

// list returns every top level entry of dir as a target
func list(dir string) ([]model.ScanTarget, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	targets := make([]model.ScanTarget, 0, len(entries))
	for _, e := range entries {
		targets = append(targets, model.ScanTarget{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
		})
	}
	return targets, nil
}

func artifacts(source string) (string, []model.ScanTarget, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", nil, fmt.Errorf("%w - %w", ErrPackaging, err)
	}
	if info.IsDir() {
		targets, err := list(abs)
		return abs, targets, err
	}
	return filepath.Dir(abs), []model.ScanTarget{{Name: info.Name(), Path: abs}}, nil
}

// PolicyFile downloads the definition of the policy into the workdir and
// returns its name as the static scanner expects it.
func (p *Packager) PolicyFile(ctx context.Context, policyName string) (string, error) {
	name := strings.ReplaceAll(policyName, "+", "%2B")
	outcome := p.runner.Run(ctx, "Getting Policy File", model.ScanCommand{
		Args: []string{p.cli, "policy", "get", name},
		Env:  p.env,
	}, process.Options{Dir: p.workDir})
	if outcome.Failed() {
		return "", &CommandError{Step: "getting policy file", Outcome: outcome}
	}
	return name, nil
}

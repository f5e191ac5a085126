package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/CZERTAINLY/verascan/internal/aggregate"
	"github.com/CZERTAINLY/verascan/internal/log"
	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/packager"
	"github.com/CZERTAINLY/verascan/internal/prescan"
	"github.com/CZERTAINLY/verascan/internal/process"
	"github.com/CZERTAINLY/verascan/internal/publish"
	"github.com/CZERTAINLY/verascan/internal/report"
	"github.com/CZERTAINLY/verascan/internal/scan"
	"github.com/CZERTAINLY/verascan/internal/veracode"

	"github.com/google/uuid"
)

// API is the platform REST API used by a run
type API interface {
	prescan.API
	scan.AgentAPI
}

// Service is a component, which encapsulates one run and executes it.
type Service struct {
	cfg        model.Config
	out        io.Writer
	runner     scan.Runner
	api        API
	publishers []publish.Publisher
	runID      string
}

func New(cfg model.Config, out io.Writer, runner scan.Runner, api API, publishers []publish.Publisher) *Service {
	return &Service{
		cfg:        cfg,
		out:        out,
		runner:     runner,
		api:        api,
		publishers: publishers,
		runID:      uuid.NewString(),
	}
}

// FromConfig wires the real process runner, the API client of the region
// of the credentials and the configured publishers.
func FromConfig(ctx context.Context, cfg model.Config, out io.Writer) (*Service, error) {
	var opts []veracode.Option
	if cfg.APIURL != "" {
		u, err := url.Parse(cfg.APIURL)
		if err != nil {
			return nil, fmt.Errorf("parsing api_url: %w", err)
		}
		opts = append(opts, veracode.WithBaseURL(u))
	}
	client, err := veracode.NewClient(veracode.Credentials{
		ID:     cfg.Credentials.ID,
		Secret: cfg.Credentials.Secret,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing platform API client: %w", err)
	}
	publishers, err := publish.FromConfig(ctx, cfg.Publish)
	if err != nil {
		return nil, fmt.Errorf("initializing publishers: %w", err)
	}
	return New(cfg, out, process.NewRunner(out), client, publishers), nil
}

func (s *Service) Close() error {
	return publish.Close(s.publishers)
}

// Do executes the run and prints the verdict to out.
func (s *Service) Do(ctx context.Context) error {
	cfg := s.cfg
	ctx = log.ContextAttrs(ctx, slog.String("run", s.runID))

	pkg := packager.New(s.runner, cfg)
	dir, targets, err := pkg.Package(ctx, cfg.Scan.Source)
	if err != nil {
		return s.abort(err)
	}
	slog.DebugContext(ctx, "scan targets", "dir", dir, "count", len(targets))

	org, err := prescan.Resolve(ctx, s.api, cfg)
	if err != nil {
		return s.abort(err)
	}

	files := &model.OutputFiles{}
	var rr *model.RunResult
	if cfg.Scan.Pipeline {
		policyFile, err := pkg.PolicyFile(ctx, org.PolicyName)
		if err != nil {
			s.expireAgent(ctx, org)
			return s.abort(err)
		}
		var agent *scan.Agent
		if org.AgentEnabled() {
			agent = scan.NewAgent(s.runner, s.api, cfg, org, files)
		}
		orchestrator := scan.NewOrchestrator(scan.NewPipeline(s.runner, cfg.WorkDir, files), agent)
		rr = orchestrator.Run(ctx, targets, scan.StaticScanCommand(cfg, org, policyFile))
	} else {
		source := cfg.Scan.Source
		if cfg.Scan.Type == model.ScanTypeFolder {
			source = dir
		}
		platform := scan.NewPlatform(s.runner, cfg, org)
		rr = model.NewRunResult()
		if err := rr.Store(platform.Label(), platform.Run(ctx, source)); err != nil {
			return err
		}
	}

	s.publish(ctx, files)

	verdict := aggregate.Aggregate(rr, files, cfg.Scan.FailBuild)
	if code := report.Finish(s.out, verdict, cfg.Scan.OverrideFailure); code != 0 {
		return &report.ExitError{Code: code}
	}
	return nil
}

// publish appends the published locations to files
func (s *Service) publish(ctx context.Context, files *model.OutputFiles) {
	if len(s.publishers) == 0 {
		return
	}
	published, err := publish.All(ctx, s.runID, s.cfg.WorkDir, files.Items(), s.publishers)
	if err != nil {
		slog.WarnContext(ctx, "publishing output files", "error", err)
	}
	for _, p := range published {
		files.Append(model.OutputFileRecord{Kind: "Published " + p.Kind, Path: p.Path})
	}
}

// abort maps err to the exit code of the run. A failed tool exits with
// its own code, anything else with -1.
func (s *Service) abort(err error) *report.ExitError {
	code := -1
	var cmdErr *packager.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Outcome.ExitCode != 0 {
		code = cmdErr.Outcome.ExitCode
	}
	return abort(s.cfg, code, err)
}

func (s *Service) expireAgent(ctx context.Context, org model.Organization) {
	if !org.AgentEnabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.api.DeleteAgent(ctx, org.WorkspaceGUID, org.AgentID); err != nil {
		slog.WarnContext(ctx, "expiring agent token", "agent", org.AgentID, "error", err)
	}
}

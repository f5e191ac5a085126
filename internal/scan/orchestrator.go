package scan

import (
	"context"
	"log/slog"

	"github.com/CZERTAINLY/verascan/internal/model"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the target scans and the agent scan side by side.
type Orchestrator struct {
	pipeline *Pipeline
	// agent is nil when no agent token was issued
	agent *Agent
}

func NewOrchestrator(pipeline *Pipeline, agent *Agent) *Orchestrator {
	return &Orchestrator{
		pipeline: pipeline,
		agent:    agent,
	}
}

// Run returns once every target scan and the agent scan ended.
func (o *Orchestrator) Run(ctx context.Context, targets []model.ScanTarget, build CommandBuilder) *model.RunResult {
	rr := model.NewRunResult()
	var g errgroup.Group
	g.Go(func() error {
		o.pipeline.Into(ctx, targets, build, rr)
		return nil
	})
	if o.agent != nil {
		g.Go(func() error {
			outcome := o.agent.Run(ctx)
			if err := rr.Store(AgentLabel, outcome); err != nil {
				slog.ErrorContext(ctx, "storing agent outcome", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return rr
}

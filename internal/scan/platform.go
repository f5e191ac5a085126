package scan

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/process"
	"github.com/CZERTAINLY/verascan/internal/retry"
)

// Platform uploads the source to the platform and starts a policy or
// a sandbox scan there.
type Platform struct {
	runner Runner
	cfg    model.Config
	org    model.Organization
}

func NewPlatform(runner Runner, cfg model.Config, org model.Organization) *Platform {
	return &Platform{
		runner: runner,
		cfg:    cfg,
		org:    org,
	}
}

func (p *Platform) Label() string {
	if p.cfg.Scan.SandboxName != "" {
		return "Sandbox Scan"
	}
	return "Policy Scan"
}

func (p *Platform) Command(source string) model.ScanCommand {
	args := []string{
		p.cfg.Tools.Java, "-jar", p.cfg.Tools.Wrapper,
		"-appname", p.org.ApplicationName,
		"-vid", p.cfg.Credentials.ID,
		"-vkey", p.cfg.Credentials.Secret,
		"-action", "uploadandscan",
		"-createprofile", "true",
		"-createsandbox", "true",
		"-filepath", source,
		"-version", p.cfg.Scan.Version,
	}
	if p.cfg.Scan.SandboxName != "" {
		args = append(args, "-sandboxname", p.cfg.Scan.SandboxName)
	}
	if p.cfg.Scan.Timeout > 0 {
		args = append(args, "-scantimeout", strconv.Itoa(p.cfg.Scan.Timeout))
	}
	if p.cfg.Scan.DeleteIncompleteScan != "" {
		args = append(args, "-deleteincompletescan", p.cfg.Scan.DeleteIncompleteScan)
	}
	return model.ScanCommand{
		Args: args,
		Env:  p.cfg.Credentials.Env(),
	}
}

// Run uploads source. The upload is repeated while another scan of the
// application is in progress, up to the scan timeout.
func (p *Platform) Run(ctx context.Context, source string) model.ScanOutcome {
	cmd := p.Command(source)
	slog.InfoContext(ctx, "starting platform scan", "label", p.Label(), "command", MaskedArgs(cmd.Args, p.cfg.Credentials.Secret))
	attempt := func(ctx context.Context) model.ScanOutcome {
		return p.runner.Run(ctx, p.Label(), cmd, process.Options{Dir: p.cfg.WorkDir})
	}
	return retry.Do(ctx, attempt, retry.ScanInProgress, p.cfg.Scan.RetryBudget())
}

// MaskedArgs joins args with every secret replaced.
func MaskedArgs(args []string, secrets ...string) string {
	masked := slices.Clone(args)
	for i, a := range masked {
		if a != "" && slices.Contains(secrets, a) {
			masked[i] = "*****"
		}
	}
	return strings.Join(masked, " ")
}

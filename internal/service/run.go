package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/CZERTAINLY/verascan/internal/env"
	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/report"
)

// Run implements the CLI scan command. A nil error means exit code 0,
// otherwise a *report.ExitError carries the code and the message to print.
func Run(ctx context.Context, cfg model.Config, out io.Writer) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			slog.DebugContext(ctx, "invalid configuration", e.Attr("error"))
		}
		return &report.ExitError{
			Code:    report.ExitCode(-len(errs), cfg.Scan.OverrideFailure),
			Payload: report.MessageList(model.Messages(errs)),
		}
	}

	restore, err := env.Acquire(Overlay(cfg))
	if err != nil {
		return abort(cfg, -1, err)
	}
	defer restore()

	svc, err := FromConfig(ctx, cfg, out)
	if err != nil {
		return abort(cfg, -1, err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			slog.WarnContext(ctx, "closing publishers", "error", err)
		}
	}()
	return svc.Do(ctx)
}

// Overlay returns the variables set for the whole run. The platform tools
// read the credentials from both spellings.
func Overlay(cfg model.Config) map[string]string {
	ret := cfg.Credentials.Env()
	ret["veracode_api_key_id"] = cfg.Credentials.ID
	ret["veracode_api_key_secret"] = cfg.Credentials.Secret
	ret["http_proxy"] = cfg.Proxy.HTTP
	ret["HTTP_PROXY"] = cfg.Proxy.HTTP
	ret["https_proxy"] = cfg.Proxy.HTTPS
	ret["HTTPS_PROXY"] = cfg.Proxy.HTTPS
	return ret
}

func abort(cfg model.Config, code int, err error) *report.ExitError {
	return &report.ExitError{
		Code:    report.ExitCode(code, cfg.Scan.OverrideFailure),
		Payload: report.SingleMessage(err.Error()),
	}
}

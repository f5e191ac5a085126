// Package log carries slog attributes in a context and keeps credentials
// out of the log output.
package log

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
)

type slogKeyT struct{}

var slogKey slogKeyT

// Redacted replaces the values of sensitive attributes
const Redacted = "*****"

// sensitive are attribute keys never logged in clear text
var sensitive = []string{"secret", "token", "vkey", "password", "secret_key", "access_token"}

// ContextHandler adds the attributes stored by ContextAttrs to every record.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{
		Handler: handler,
	}
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if a, ok := ctx.Value(slogKey).([]slog.Attr); ok {
		r.AddAttrs(a...)
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs keeps the handler wrapped, so loggers derived by With still
// see the context attributes.
func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// ContextAttrs returns a context carrying attrs added to every record
// logged with it.
func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	a, ok := ctx.Value(slogKey).([]slog.Attr)
	if !ok || a == nil {
		a = make([]slog.Attr, 0, len(attrs))
	}
	a = append(slices.Clip(a), attrs...)
	return context.WithValue(ctx, slogKey, a)
}

// Redact is a slog.HandlerOptions.ReplaceAttr hiding the values of
// sensitive string attributes.
func Redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString || a.Value.String() == "" {
		return a
	}
	if slices.Contains(sensitive, strings.ToLower(a.Key)) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// New returns a JSON logger writing to w. Scanner output never goes
// through it, so w is expected to be stderr.
func New(verbose bool, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: Redact,
	})
	return slog.New(NewContextHandler(base))
}

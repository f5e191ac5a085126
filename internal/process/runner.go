package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/CZERTAINLY/verascan/internal/model"
)

const (
	ExitLaunchFailure = 1
	ExitNoPermission  = 126
	ExitNotFound      = 127

	maxLineSize = 1024 * 1024
)

// Options of a single process run.
type Options struct {
	// Dir is the working directory, empty means the current one
	Dir string
	// ResultsFile receives a verbatim copy of the output when set
	ResultsFile string
	// Filter selects the line reported as the outcome message, see OutputScanner
	Filter []string
}

// Runner starts scanner processes and streams their output to a console
// shared by all concurrently running processes. Every console line
// is prefixed by the label of the process it belongs to.
type Runner struct {
	mx      sync.Mutex
	console io.Writer
}

func NewRunner(console io.Writer) *Runner {
	return &Runner{
		console: console,
	}
}

// Run starts the command and blocks until it exits and all its output
// is consumed. It never returns an error: failing to launch the command
// is reported as an outcome with a nonzero exit code.
func (r *Runner) Run(ctx context.Context, label string, cmd model.ScanCommand, opts Options) model.ScanOutcome {
	if len(cmd.Args) == 0 {
		return model.ScanOutcome{ExitCode: ExitLaunchFailure, Message: "empty command"}
	}

	path, args := cmd.Args[0], cmd.Args[1:]
	if cmd.Shell {
		path, args = "sh", []string{"-c", ShellJoin(cmd.Args)}
	}

	c := exec.CommandContext(ctx, path, args...)
	c.Dir = opts.Dir
	c.Env = Environ(os.Environ(), cmd.Env)

	stdout, err := c.StdoutPipe()
	if err != nil {
		return launchFailure(err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return launchFailure(err)
	}

	out := &sink{
		scanner: NewOutputScanner(opts.Filter),
	}
	if opts.ResultsFile != "" {
		f, err := createResults(opts.ResultsFile)
		if err != nil {
			return launchFailure(err)
		}
		defer func() {
			if err := f.Close(); err != nil {
				slog.WarnContext(ctx, "closing results file", "path", opts.ResultsFile, "error", err)
			}
		}()
		out.results = f
	}

	slog.DebugContext(ctx, "starting", "label", label, "path", path, "dir", opts.Dir)
	if err := c.Start(); err != nil {
		return launchFailure(err)
	}

	var wg sync.WaitGroup
	wg.Go(func() { r.stream(ctx, label, stdout, out) })
	wg.Go(func() { r.stream(ctx, label, stderr, out) })
	wg.Wait()

	err = c.Wait()
	outcome := model.ScanOutcome{
		Message: out.scanner.LastMeaningfulLine(),
		ScanID:  out.scanner.ExtractedID(),
	}
	switch {
	case err == nil:
		outcome.ExitCode = 0
	case c.ProcessState != nil && c.ProcessState.ExitCode() > 0:
		outcome.ExitCode = c.ProcessState.ExitCode()
	default:
		// killed by a signal or the context
		outcome.ExitCode = ExitLaunchFailure
		if outcome.Message == "" {
			outcome.Message = err.Error()
		}
	}
	slog.DebugContext(ctx, "finished", "label", label, "exit_code", outcome.ExitCode, "scan_id", outcome.ScanID)
	return outcome
}

func (r *Runner) stream(ctx context.Context, label string, rd io.Reader, out *sink) {
	br := bufio.NewReaderSize(rd, 64*1024)
	for {
		line, err := readLine(br, maxLineSize)
		if err == nil || line != "" {
			r.println(label, line)
			out.observe(ctx, line)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.ErrorContext(ctx, "processing output", "label", label, "error", err)
				// drain the rest, so the process is not blocked on a full pipe
				_, _ = io.Copy(io.Discard, rd)
			}
			return
		}
	}
}

// readLine returns the next line without its line ending. A line longer
// than limit is truncated and the rest of it is skipped, so the lines
// after it are still read.
func readLine(br *bufio.Reader, limit int) (string, error) {
	var line []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if room := limit - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		line = bytes.TrimSuffix(line, []byte{'\n'})
		line = bytes.TrimSuffix(line, []byte{'\r'})
		return string(line), err
	}
}

func (r *Runner) println(label, line string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	_, _ = fmt.Fprintf(r.console, "%s: %s\n", label, line)
}

// sink receives the lines of both output streams of one process
type sink struct {
	mx      sync.Mutex
	scanner *OutputScanner
	results io.Writer
	failed  bool
}

func (s *sink) observe(ctx context.Context, line string) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.scanner.Observe(line)
	if s.results == nil || s.failed {
		return
	}
	if _, err := io.WriteString(s.results, line+"\n"); err != nil {
		slog.WarnContext(ctx, "writing results file", "error", err)
		s.failed = true
	}
}

func createResults(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating results directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating results file: %w", err)
	}
	return f, nil
}

func launchFailure(err error) model.ScanOutcome {
	code := ExitLaunchFailure
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		code = ExitNotFound
	case errors.Is(err, fs.ErrPermission):
		code = ExitNoPermission
	}
	return model.ScanOutcome{
		ExitCode: code,
		Message:  err.Error(),
	}
}

// Environ returns base with the overlay applied. Overlay keys replace
// existing ones and are appended in sorted order.
func Environ(base []string, overlay map[string]string) []string {
	ret := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := overlay[k]; ok {
			continue
		}
		ret = append(ret, kv)
	}
	keys := make([]string, 0, len(overlay))
	for k := range overlay {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		ret = append(ret, k+"="+overlay[k])
	}
	return ret
}

// ShellJoin quotes args for sh -c.
func ShellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

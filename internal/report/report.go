// Package report prints the final result of a run and maps it to the
// process exit code.
package report

import (
	"fmt"
	"io"

	"github.com/CZERTAINLY/verascan/internal/model"
)

// Payload is the human readable part of an error or a verdict.
// It is either a SingleMessage or a MessageList.
type Payload interface {
	payload()
}

type SingleMessage string

func (SingleMessage) payload() {}

type MessageList []string

func (MessageList) payload() {}

// Lines returns the payload as lines to print
func Lines(p Payload) []string {
	switch p := p.(type) {
	case SingleMessage:
		return []string{string(p)}
	case MessageList:
		return []string(p)
	case nil:
		return nil
	default:
		panic(fmt.Sprintf("unsupported payload %T", p))
	}
}

// Print writes every line of the payload on its own line
func Print(w io.Writer, p Payload) {
	for _, line := range Lines(p) {
		_, _ = fmt.Fprintln(w, line)
	}
}

// MaxExitCode is the largest status the operating system reports intact.
const MaxExitCode = 255

// ExitCode returns the process exit code of a run. An override always
// turns the run into a success. Only the low 8 bits of a status survive
// os.Exit, so a magnitude outside of [-255, 255] is clamped and never
// wraps around to 0.
func ExitCode(magnitude int, override bool) int {
	switch {
	case override:
		return 0
	case magnitude > MaxExitCode:
		return MaxExitCode
	case magnitude < -MaxExitCode:
		return -MaxExitCode
	}
	return magnitude
}

// Finish prints the verdict and returns the exit code of the process.
// Without fail build the run succeeds even if some units failed.
func Finish(w io.Writer, v model.Verdict, override bool) int {
	_, _ = fmt.Fprintln(w, "Analysis completed")
	Print(w, MessageList(v.Messages))
	if !v.ShouldFailBuild {
		return ExitCode(0, override)
	}
	return ExitCode(v.TotalFailureMagnitude, override)
}

// ExitError ends the program with the given code after the payload is printed.
type ExitError struct {
	Code    int
	Payload Payload
}

func (e *ExitError) Error() string {
	lines := Lines(e.Payload)
	switch len(lines) {
	case 0:
		return fmt.Sprintf("exit code %d", e.Code)
	case 1:
		return lines[0]
	default:
		return fmt.Sprintf("%s (and %d more)", lines[0], len(lines)-1)
	}
}

// Fail returns an error terminating the program with code and a single message.
func Fail(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Payload: SingleMessage(fmt.Sprintf(format, args...)),
	}
}

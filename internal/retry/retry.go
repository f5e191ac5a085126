// Package retry repeats a platform scan while another scan of the same
// application is still running on the platform side.
package retry

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/CZERTAINLY/verascan/internal/model"
)

const (
	// Interval between two attempts
	Interval = 60 * time.Second

	ScanInProgressSignature = "A scan is in progress. Wait for the current scan to complete and try again"
)

type AttemptFunc func(ctx context.Context) model.ScanOutcome

type RetryableFunc func(model.ScanOutcome) bool

// Do runs attempt until it succeeds, the outcome is not retryable or
// another sleep would exceed the budget. The elapsed time is measured from
// the start of the first attempt, so the total sleep is the largest multiple
// of Interval not exceeding budget. A zero budget means a single attempt.
// A canceled context stops the waiting and the last outcome is returned.
func Do(ctx context.Context, attempt AttemptFunc, retryable RetryableFunc, budget time.Duration) model.ScanOutcome {
	start := time.Now()
	for n := 1; ; n++ {
		outcome := attempt(ctx)
		if outcome.ExitCode == 0 || budget <= 0 || !retryable(outcome) {
			return outcome
		}

		elapsed := time.Since(start)
		if elapsed+Interval > budget {
			slog.WarnContext(ctx, "retry budget exhausted", "attempts", n, "elapsed", elapsed.String(), "budget", budget.String())
			return outcome
		}

		slog.InfoContext(ctx, "scan in progress, waiting", "attempt", n, "interval", Interval.String())
		timer := time.NewTimer(Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return outcome
		case <-timer.C:
		}
	}
}

// ScanInProgress says if the outcome reports an already running scan.
func ScanInProgress(o model.ScanOutcome) bool {
	return strings.Contains(o.Message, ScanInProgressSignature)
}

package retry_test

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/CZERTAINLY/verascan/internal/model"
	"github.com/CZERTAINLY/verascan/internal/retry"

	"github.com/stretchr/testify/require"
)

var inProgress = model.ScanOutcome{
	ExitCode: 1,
	Message:  "* " + retry.ScanInProgressSignature,
}

// sequence returns the given outcomes and then repeats the last one
func sequence(outcomes ...model.ScanOutcome) (retry.AttemptFunc, *int) {
	calls := 0
	return func(context.Context) model.ScanOutcome {
		o := outcomes[min(calls, len(outcomes)-1)]
		calls++
		return o
	}, &calls
}

func TestDo(t *testing.T) {
	t.Parallel()
	var testCases = []struct {
		scenario     string
		given        []model.ScanOutcome
		budget       time.Duration
		thenCalls    int
		thenElapsed  time.Duration
		thenExitCode int
	}{
		{
			scenario:    "success",
			given:       []model.ScanOutcome{{}},
			budget:      time.Hour,
			thenCalls:   1,
			thenElapsed: 0,
		},
		{
			scenario:     "zero budget",
			given:        []model.ScanOutcome{inProgress},
			budget:       0,
			thenCalls:    1,
			thenExitCode: 1,
		},
		{
			scenario:     "not retryable",
			given:        []model.ScanOutcome{{ExitCode: 4, Message: "bad credentials"}},
			budget:       time.Hour,
			thenCalls:    1,
			thenExitCode: 4,
		},
		{
			scenario:     "budget shorter than interval",
			given:        []model.ScanOutcome{inProgress},
			budget:       59 * time.Second,
			thenCalls:    1,
			thenExitCode: 1,
		},
		{
			scenario:     "budget exhausted",
			given:        []model.ScanOutcome{inProgress},
			budget:       150 * time.Second,
			thenCalls:    3,
			thenElapsed:  120 * time.Second,
			thenExitCode: 1,
		},
		{
			scenario:     "exact multiple",
			given:        []model.ScanOutcome{inProgress},
			budget:       120 * time.Second,
			thenCalls:    3,
			thenElapsed:  120 * time.Second,
			thenExitCode: 1,
		},
		{
			scenario:    "succeeds on the second attempt",
			given:       []model.ScanOutcome{inProgress, {Message: "done"}},
			budget:      10 * time.Minute,
			thenCalls:   2,
			thenElapsed: 60 * time.Second,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.scenario, func(t *testing.T) {
			t.Parallel()
			synctest.Test(t, func(t *testing.T) {
				attempt, calls := sequence(tc.given...)
				start := time.Now()
				outcome := retry.Do(t.Context(), attempt, retry.ScanInProgress, tc.budget)
				require.Equal(t, tc.thenCalls, *calls)
				require.Equal(t, tc.thenElapsed, time.Since(start))
				require.Equal(t, tc.thenExitCode, outcome.ExitCode)
			})
		})
	}
}

func TestDo_Canceled(t *testing.T) {
	t.Parallel()
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithTimeout(t.Context(), 90*time.Second)
		defer cancel()
		attempt, calls := sequence(inProgress)
		start := time.Now()
		outcome := retry.Do(ctx, attempt, retry.ScanInProgress, time.Hour)
		require.Equal(t, 2, *calls)
		require.Equal(t, 90*time.Second, time.Since(start))
		require.Equal(t, inProgress, outcome)
	})
}

func TestScanInProgress(t *testing.T) {
	t.Parallel()
	require.True(t, retry.ScanInProgress(inProgress))
	require.False(t, retry.ScanInProgress(model.ScanOutcome{ExitCode: 1, Message: "A scan is in progress"}))
}

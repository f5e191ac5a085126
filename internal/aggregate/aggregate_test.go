package aggregate_test

import (
	"testing"

	"github.com/CZERTAINLY/verascan/internal/aggregate"
	"github.com/CZERTAINLY/verascan/internal/model"

	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	t.Parallel()

	rr := model.NewRunResult()
	require.NoError(t, rr.Store("b.jar", model.ScanOutcome{ExitCode: 3, Message: "policy failed"}))
	require.NoError(t, rr.Store("a.jar", model.ScanOutcome{}))
	require.NoError(t, rr.Store("SCA Scan", model.ScanOutcome{ExitCode: -2, Message: "agent died"}))

	var files model.OutputFiles
	files.Append(
		model.OutputFileRecord{Kind: "b.jar results", Path: "/w/scan_results/b_jar/results.json"},
		model.OutputFileRecord{Kind: "a.jar results", Path: "/w/scan_results/a_jar/results.json"},
	)

	v := aggregate.Aggregate(rr, &files, true)
	require.Equal(t, model.Verdict{
		TotalFailureMagnitude: 5,
		Messages: []string{
			"SCA Scan: failed: agent died",
			"a.jar: succeeded",
			"b.jar: failed: policy failed",
			"Output file: a.jar results: /w/scan_results/a_jar/results.json",
			"Output file: b.jar results: /w/scan_results/b_jar/results.json",
		},
		ShouldFailBuild: true,
	}, v)

	require.False(t, aggregate.Aggregate(rr, &files, false).ShouldFailBuild)
}

func TestAggregate_Success(t *testing.T) {
	t.Parallel()
	rr := model.NewRunResult()
	require.NoError(t, rr.Store("a.jar", model.ScanOutcome{Message: "ok"}))

	v := aggregate.Aggregate(rr, nil, true)
	require.Zero(t, v.TotalFailureMagnitude)
	require.False(t, v.ShouldFailBuild)
	require.Equal(t, []string{"a.jar: succeeded"}, v.Messages)
}

func TestAggregate_Empty(t *testing.T) {
	t.Parallel()
	v := aggregate.Aggregate(nil, nil, true)
	require.Equal(t, model.Verdict{}, v)
}

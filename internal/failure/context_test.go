package failure

// context_test.go — Evidence synthesis around detected failures.

import (
	"testing"

	"github.com/stretchr/testify/require"

	"matchtrace/internal/config"
	"matchtrace/internal/flatten"
	"matchtrace/internal/joins"
	"matchtrace/internal/trace"
)

func mustClassify(t *testing.T, line string, n int) trace.Event {
	t.Helper()
	ev, err := trace.Classify(line, n)
	require.NoError(t, err)
	require.NotNil(t, ev)
	return ev
}

// failureFixture builds a trace with one healthy block at t=1.0 and one
// failing block at t=2.0, returning the index, records and the failure.
func failureFixture(t *testing.T) (*joins.Index, []*flatten.Record, Failure) {
	t.Helper()
	lines := []string{
		"INPUT|c:1|p:60|t:1.000",
		"DP|c:1|r:1|p:60|t:1.000|vr:0|hr:2|f:2|m:1|u:[60]|uc:0",
		"MATCH|r:1|p:60|t:1.000|score:2",
		"INPUT|c:2|p:61|t:2.000",
		"CELL|r:2|v:1.0|u:[]|uc:1|t:1.900",
		"HRULE|r:2|pv:2|pit:61|ioi:1.0|lim:0.4|pass:nil|typ:normal|res:-1",
		"TIMING|pt:1.0|ct:2.0|ioi:1.0|span:1.0|lim:0.4|pass:nil|type:ioi",
		"SCORE|r:2|cur:0.5|top:2|beat:nil|margin:-1.5|conf:0.2",
		"DECISION|r:2|vr:0.5|hr:-1|win:vertical|upd:t|val:0.5|reason:timing",
		"NO_MATCH_EXPLAIN|p:61|reason:ioi over limit|constraint:ioi|timing:1.0|expected:62|src:7",
		"DP|c:2|r:2|p:61|t:2.000|vr:0.5|hr:-1|f:0.5|m:0|u:[]|uc:1",
		"NO_MATCH|p:61|t:2.000",
	}
	var events []trace.Event
	for i, line := range lines {
		events = append(events, mustClassify(t, line, i+1))
	}
	idx := joins.NewIndex(events, config.Default().WindowCacheRounding, nil)

	fl := flatten.NewFlattener(nil)
	records, _, err := fl.Flatten(events)
	require.NoError(t, err)

	failures, dropped := NewDetector(config.Default(), nil).Detect(records, 2)
	require.Len(t, failures, 1)
	require.Zero(t, dropped)
	return idx, records, failures[0]
}

// ---------------------------------------------------------------------------
// synthesis
// ---------------------------------------------------------------------------

func TestSynthesizeJoinsAllSubstreams(t *testing.T) {
	idx, records, f := failureFixture(t)
	synth := NewSynthesizer(config.Default(), idx, records, nil)

	ctx, err := synth.Synthesize(f)
	require.NoError(t, err)
	require.Equal(t, Unmatched, ctx.Failure.Class)
	require.Equal(t, f.Time-1.0, ctx.WindowStart)
	require.Equal(t, f.Time+1.0, ctx.WindowEnd)

	for _, kind := range []trace.Kind{
		trace.KindCellState,
		trace.KindHorizontalRule,
		trace.KindTimingCheck,
		trace.KindScoreCompetition,
		trace.KindCellDecision,
		trace.KindNoMatchExplain,
	} {
		require.NotEmpty(t, ctx.Events[kind], "missing %s evidence", kind)
	}
	require.Positive(t, ctx.EventCount)

	require.Equal(t, 1, ctx.TimingFail)
	require.Zero(t, ctx.TimingPass)
	require.Equal(t, 1, ctx.BelowTop)
	require.Equal(t, 1, ctx.Winners[trace.WinnerVertical])
	require.Equal(t, 1, ctx.MatchKinds[trace.MatchKindNormal])
	require.NotEmpty(t, ctx.Insights)
}

func TestSynthesizePitchScopedFiltering(t *testing.T) {
	idx, records, f := failureFixture(t)
	// The NO_MATCH_EXPLAIN names pitch 61, the failing pitch. A synthetic
	// failure for a different pitch must not pick it up.
	other := f
	other.Pitch = 95
	ctx, err := NewSynthesizer(config.Default(), idx, records, nil).Synthesize(other)
	require.NoError(t, err)
	require.Empty(t, ctx.Events[trace.KindNoMatchExplain])
	// Non-pitch-scoped evidence is unaffected.
	require.NotEmpty(t, ctx.Events[trace.KindTimingCheck])
}

func TestSynthesizePrecedingDecisionsAndMatches(t *testing.T) {
	idx, records, f := failureFixture(t)
	ctx, err := NewSynthesizer(config.Default(), idx, records, nil).Synthesize(f)
	require.NoError(t, err)

	require.NotEmpty(t, ctx.PrecedingDecisions)
	for _, rec := range ctx.PrecedingDecisions {
		require.Less(t, rec.LineNum, f.Line)
	}
	require.Len(t, ctx.PrecedingMatches, 1)
	require.Equal(t, 2.0, ctx.PrecedingMatches[0].Score)
}

func TestSynthesizeNoEvidenceIsFatal(t *testing.T) {
	idx, records, _ := failureFixture(t)
	ghost := Failure{Class: Unmatched, Column: 9, Pitch: 70, Time: 500.0, Line: 0}
	_, err := NewSynthesizer(config.Default(), idx, records, nil).Synthesize(ghost)
	require.ErrorIs(t, err, ErrNoEvidence)
}

func TestSynthesizeTimingIssues(t *testing.T) {
	// Inputs 1.2s apart inside the lookback, failure 0.6s after the last
	// input: both rhythm issues fire under the default thresholds.
	lines := []string{
		"INPUT|c:1|p:60|t:3.800",
		"DP|c:1|r:1|p:60|t:3.800|vr:0|hr:2|f:2|m:1|u:[60]|uc:0",
		"MATCH|r:1|p:60|t:3.800|score:2",
		"INPUT|c:2|p:61|t:5.000",
		"TIMING|pt:3.8|ct:5.0|ioi:1.2|span:1.2|lim:0.4|pass:nil|type:ioi",
		"DP|c:2|r:2|p:61|t:5.000|vr:0.5|hr:-1|f:0.5|m:0|u:[]|uc:1",
		"NO_MATCH|p:61|t:5.600",
	}
	var events []trace.Event
	for i, line := range lines {
		events = append(events, mustClassify(t, line, i+1))
	}
	idx := joins.NewIndex(events, 0.1, nil)
	records, _, err := flatten.NewFlattener(nil).Flatten(events)
	require.NoError(t, err)
	failures, _ := NewDetector(config.Default(), nil).Detect(records, 2)
	require.Len(t, failures, 1)

	ctx, err := NewSynthesizer(config.Default(), idx, records, nil).Synthesize(failures[0])
	require.NoError(t, err)
	require.InDelta(t, 1.2, ctx.Timing.MaxGap, 1e-9)
	require.InDelta(t, 0.6, ctx.Timing.TimeToFailure, 1e-9)
	require.Len(t, ctx.Timing.Issues, 2)
}

// ---------------------------------------------------------------------------
// report
// ---------------------------------------------------------------------------

func TestBuildReportSummaryAndRecommendations(t *testing.T) {
	idx, records, f := failureFixture(t)
	ctx, err := NewSynthesizer(config.Default(), idx, records, nil).Synthesize(f)
	require.NoError(t, err)

	rep := BuildReport("trace.log", []*Context{ctx}, 1)
	require.NotEmpty(t, rep.RunID)
	require.Equal(t, "trace.log", rep.TraceFile)
	require.Equal(t, 1, rep.Summary.TotalFailures)
	require.Equal(t, 1, rep.Summary.Dropped)
	require.Equal(t, 1, rep.Summary.ByClass["unmatched"])
	require.NotEmpty(t, rep.Recommendations)
}

func TestBuildReportEmpty(t *testing.T) {
	rep := BuildReport("trace.log", nil, 0)
	require.Zero(t, rep.Summary.TotalFailures)
	require.Empty(t, rep.Recommendations)
}

func TestBuildReportScoreStats(t *testing.T) {
	contexts := []*Context{
		{Failure: Failure{Class: LowConfidenceMatch, Time: 1, Score: -1}},
		{Failure: Failure{Class: ScoreRegression, Time: 2, Score: 3, PrevScore: 6, Drop: 3}},
		{Failure: Failure{Class: Unmatched, Time: 3}},
	}
	rep := BuildReport("t.log", contexts, 0)
	require.Equal(t, -1.0, rep.Summary.MinScore)
	require.Equal(t, 3.0, rep.Summary.MaxScore)
	require.Equal(t, 1.0, rep.Summary.MeanScore)
	require.Equal(t, 1.0, rep.Summary.FirstFailureTime)
	require.Equal(t, 3.0, rep.Summary.LastFailureTime)
}

package joins

// index_test.go — Binary-search range queries checked against the naive
// linear scan, plus cache behavior.

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"matchtrace/internal/trace"
)

func mustClassify(t *testing.T, line string, n int) trace.Event {
	t.Helper()
	ev, err := trace.Classify(line, n)
	require.NoError(t, err)
	require.NotNil(t, ev)
	return ev
}

// randomStream builds a plausible event stream with monotone input times and
// assorted detail events between them.
func randomStream(t *testing.T, rng *rand.Rand, blocks int) []trace.Event {
	t.Helper()
	var events []trace.Event
	line := 0
	next := func(s string) {
		line++
		events = append(events, mustClassify(t, s, line))
	}
	tm := 0.0
	for c := 1; c <= blocks; c++ {
		tm += 0.1 + rng.Float64()*0.5
		pitch := 50 + rng.Intn(30)
		next(fmt.Sprintf("INPUT|c:%d|p:%d|t:%.3f", c, pitch, tm))
		for r := 0; r < 1+rng.Intn(3); r++ {
			row := c + r
			next(fmt.Sprintf("CELL|r:%d|v:%.2f|u:[]|uc:0|t:%.3f", row, rng.Float64()*3, tm))
			next(fmt.Sprintf("SCORE|r:%d|cur:%.2f|top:%.2f|beat:nil|margin:-1|conf:%.2f",
				row, rng.Float64()*3, rng.Float64()*3, rng.Float64()))
			next(fmt.Sprintf("DP|c:%d|r:%d|p:%d|t:%.3f|vr:0|hr:1|f:1|m:0|u:[]|uc:0", c, row, pitch, tm))
		}
		if rng.Intn(4) == 0 {
			next(fmt.Sprintf("NO_MATCH|p:%d|t:%.3f", pitch, tm))
		} else {
			next(fmt.Sprintf("MATCH|r:%d|p:%d|t:%.3f|score:%.2f", c, pitch, tm, rng.Float64()*3))
		}
	}
	return events
}

// key projects an Entry for comparison.
type key struct {
	Time float64
	Line int
}

func keys(entries []Entry) []key {
	out := make([]key, len(entries))
	for i, e := range entries {
		out[i] = key{Time: e.Time, Line: e.Event.Line()}
	}
	return out
}

// linearRange is the reference implementation Range must agree with.
func linearRange(idx *Index, kind trace.Kind, t0, t1 float64) []key {
	var out []key
	for _, e := range idx.byKind[kind] {
		if e.Time >= t0 && e.Time <= t1 {
			out = append(out, key{Time: e.Time, Line: e.Event.Line()})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// range queries
// ---------------------------------------------------------------------------

func TestRangeMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	events := randomStream(t, rng, 120)
	idx := NewIndex(events, 0, nil)

	kinds := []trace.Kind{trace.KindInput, trace.KindCellState, trace.KindScoreCompetition, trace.KindRowDecision}
	for trial := 0; trial < 200; trial++ {
		t0 := rng.Float64() * 40
		t1 := t0 + rng.Float64()*5
		for _, kind := range kinds {
			got := keys(idx.Range(kind, t0, t1))
			want := linearRange(idx, kind, t0, t1)
			if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Fatalf("Range(%s, %.3f, %.3f) disagrees with linear scan:\n%s", kind, t0, t1, diff)
			}
		}
	}
}

func TestRangeBoundsInclusive(t *testing.T) {
	events := []trace.Event{
		mustClassify(t, "INPUT|c:1|p:60|t:1.0", 1),
		mustClassify(t, "INPUT|c:2|p:61|t:2.0", 2),
		mustClassify(t, "INPUT|c:3|p:62|t:3.0", 3),
	}
	idx := NewIndex(events, 0, nil)
	require.Len(t, idx.Range(trace.KindInput, 1.0, 3.0), 3)
	require.Len(t, idx.Range(trace.KindInput, 1.5, 2.5), 1)
	require.Empty(t, idx.Range(trace.KindInput, 4.0, 9.0))
}

// ---------------------------------------------------------------------------
// line→time spine
// ---------------------------------------------------------------------------

func TestTimeAtNearestPrecedingTimedLine(t *testing.T) {
	events := []trace.Event{
		mustClassify(t, "INPUT|c:1|p:60|t:1.0", 2),
		mustClassify(t, "DECISION|r:1|vr:0|hr:1|win:horizontal|upd:t|val:1|reason:better", 3),
		mustClassify(t, "INPUT|c:2|p:61|t:2.5", 5),
	}
	idx := NewIndex(events, 0, nil)

	tm, ok := idx.TimeAt(3)
	require.True(t, ok)
	require.Equal(t, 1.0, tm)

	tm, ok = idx.TimeAt(9)
	require.True(t, ok)
	require.Equal(t, 2.5, tm)

	_, ok = idx.TimeAt(1)
	require.False(t, ok, "no timed line precedes line 1")

	// The time-less DECISION event inherits the spine time.
	entries := idx.Range(trace.KindCellDecision, 1.0, 1.0)
	require.Len(t, entries, 1)
}

// ---------------------------------------------------------------------------
// window cache
// ---------------------------------------------------------------------------

func TestWindowCacheHitEqualsBypass(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	events := randomStream(t, rng, 60)

	cached := NewIndex(events, 0.1, nil)
	bypass := NewIndex(events, 0, nil)

	for trial := 0; trial < 50; trial++ {
		// Unaligned bounds: the cache key is the enclosing rounded window,
		// and the exact interval must be re-applied on every lookup. The
		// second query per trial is a cache hit.
		t0 := rng.Float64() * 20
		t1 := t0 + rng.Float64()*3
		first := cached.Window(t0, t1)
		second := cached.Window(t0, t1)
		direct := bypass.Window(t0, t1)

		require.Len(t, second, len(direct), "window [%v,%v]", t0, t1)
		for kind, want := range direct {
			require.Equal(t, keys(want), keys(first[kind]), "first lookup, kind %s", kind)
			require.Equal(t, keys(want), keys(second[kind]), "cache hit, kind %s", kind)
		}
	}
}

// Two unaligned windows sharing one enclosing rounded window must each get
// their own exact bounds back, not the cached superset.
func TestWindowUnalignedBoundsNotWidened(t *testing.T) {
	events := []trace.Event{
		mustClassify(t, "INPUT|c:1|p:60|t:1.01", 1),
		mustClassify(t, "INPUT|c:2|p:61|t:1.05", 2),
		mustClassify(t, "INPUT|c:3|p:62|t:1.09", 3),
	}
	idx := NewIndex(events, 0.1, nil)

	// Both windows round to the enclosing [1.0, 1.1].
	wide := idx.Window(1.01, 1.09)
	require.Len(t, wide[trace.KindInput], 3)

	narrow := idx.Window(1.03, 1.07)
	require.Len(t, narrow[trace.KindInput], 1)
	require.Equal(t, 1.05, narrow[trace.KindInput][0].Time)
}

// ---------------------------------------------------------------------------
// required substreams
// ---------------------------------------------------------------------------

func TestRequireMissingSubstream(t *testing.T) {
	events := []trace.Event{mustClassify(t, "INPUT|c:1|p:60|t:1.0", 1)}
	idx := NewIndex(events, 0, nil)

	require.NoError(t, idx.Require(trace.KindInput))

	err := idx.Require(trace.KindInput, trace.KindTimingCheck)
	require.Error(t, err)
	var miss *MissingSubstreamError
	require.ErrorAs(t, err, &miss)
	require.Equal(t, trace.KindTimingCheck, miss.Kind)
}

func TestFilterPitch(t *testing.T) {
	entries := []Entry{
		{Time: 1, Pitch: 60},
		{Time: 2, Pitch: 61},
		{Time: 3, Pitch: 60},
		{Time: 4, Pitch: -1},
	}
	got := FilterPitch(entries, 60)
	require.Len(t, got, 2)
	for _, e := range got {
		require.Equal(t, 60, e.Pitch)
	}
}

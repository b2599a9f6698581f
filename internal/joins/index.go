// Package joins provides time-indexed access to a classified event stream.
//
// The failure synthesizer asks the same shape of question over and over:
// "every event of kind K in the interval [t0, t1]". The index answers it
// with per-kind time-sorted arrays and binary search instead of rescanning
// the stream, and memoizes whole-window lookups under a rounded time key so
// that near-identical failure windows hit the cache.
package joins

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"matchtrace/internal/trace"
)

// MissingSubstreamError reports that a required event kind never appeared in
// the trace, usually because the engine ran with that diagnostic channel
// disabled.
type MissingSubstreamError struct {
	Kind trace.Kind
}

func (e *MissingSubstreamError) Error() string {
	return fmt.Sprintf("joins: trace contains no %q events", e.Kind)
}

// Entry is one event positioned on the performance timeline.
type Entry struct {
	Time  float64
	Pitch int // -1 when the event names no pitch
	Event trace.Event
}

type lineTime struct {
	line int
	time float64
}

type windowKey struct {
	lo, hi int64
}

// Index is the per-run join structure. Build once per analysis, read-only
// afterwards.
type Index struct {
	log       *zap.Logger
	rounding  float64
	lineTimes []lineTime
	byKind    map[trace.Kind][]Entry
	cache     map[windowKey]map[trace.Kind][]Entry
}

// NewIndex builds the index from a merged, line-ordered event stream.
// rounding is the cache-key granularity in seconds; zero disables the
// window cache.
func NewIndex(events []trace.Event, rounding float64, log *zap.Logger) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	idx := &Index{
		log:      log,
		rounding: rounding,
		byKind:   make(map[trace.Kind][]Entry),
	}
	if rounding > 0 {
		idx.cache = make(map[windowKey]map[trace.Kind][]Entry)
	}

	// First pass: the line-to-time spine, from events that state their own
	// performance time. The stream is line-ordered, so the spine comes out
	// sorted by line.
	for _, ev := range events {
		if t, ok := intrinsicTime(ev); ok {
			idx.lineTimes = append(idx.lineTimes, lineTime{line: ev.Line(), time: t})
		}
	}

	// Second pass: place every event on the timeline, falling back to the
	// nearest preceding timed line for events that carry no time of their
	// own.
	for _, ev := range events {
		t, ok := intrinsicTime(ev)
		if !ok {
			t, ok = idx.TimeAt(ev.Line())
			if !ok {
				t = -1
			}
		}
		idx.byKind[ev.Kind()] = append(idx.byKind[ev.Kind()], Entry{
			Time:  t,
			Pitch: eventPitch(ev),
			Event: ev,
		})
	}

	// Per-kind arrays must be time-sorted for binary search. Line order is
	// almost time order already; stable sort keeps equal-time events in
	// stream order.
	for kind := range idx.byKind {
		s := idx.byKind[kind]
		sort.SliceStable(s, func(i, j int) bool { return s[i].Time < s[j].Time })
	}
	log.Debug("join index built",
		zap.Int("timed_lines", len(idx.lineTimes)),
		zap.Int("kinds", len(idx.byKind)))
	return idx
}

// TimeAt resolves a line number to the performance time in effect at that
// line: the time of the nearest timed event at or before it. The second
// return is false when no timed event precedes the line.
func (idx *Index) TimeAt(line int) (float64, bool) {
	n := sort.Search(len(idx.lineTimes), func(i int) bool {
		return idx.lineTimes[i].line > line
	})
	if n == 0 {
		return 0, false
	}
	return idx.lineTimes[n-1].time, true
}

// Range returns the entries of one kind with Time in [t0, t1], in time
// order. The returned slice aliases the index; callers must not mutate it.
func (idx *Index) Range(kind trace.Kind, t0, t1 float64) []Entry {
	s := idx.byKind[kind]
	lo := sort.Search(len(s), func(i int) bool { return s[i].Time >= t0 })
	hi := sort.Search(len(s), func(i int) bool { return s[i].Time > t1 })
	return s[lo:hi]
}

// Window returns every kind's entries in [t0, t1]. The lookup is memoized
// under the enclosing rounded interval, so near-identical failure windows
// share one cached superset; the exact bounds are then re-applied with the
// same binary searches Range uses, so a cache hit and a bypass recomputation
// answer identically for any bounds.
func (idx *Index) Window(t0, t1 float64) map[trace.Kind][]Entry {
	if idx.cache == nil {
		return idx.window(t0, t1)
	}
	key := windowKey{lo: floorTo(t0, idx.rounding), hi: ceilTo(t1, idx.rounding)}
	hit, ok := idx.cache[key]
	if !ok {
		hit = idx.window(float64(key.lo)*idx.rounding, float64(key.hi)*idx.rounding)
		idx.cache[key] = hit
	}
	out := make(map[trace.Kind][]Entry, len(hit))
	for kind, s := range hit {
		lo := sort.Search(len(s), func(i int) bool { return s[i].Time >= t0 })
		hi := sort.Search(len(s), func(i int) bool { return s[i].Time > t1 })
		if lo < hi {
			out[kind] = s[lo:hi]
		}
	}
	return out
}

func (idx *Index) window(t0, t1 float64) map[trace.Kind][]Entry {
	out := make(map[trace.Kind][]Entry)
	for kind := range idx.byKind {
		if s := idx.Range(kind, t0, t1); len(s) > 0 {
			out[kind] = s
		}
	}
	return out
}

// Require fails when a kind the caller depends on is absent from the trace.
func (idx *Index) Require(kinds ...trace.Kind) error {
	for _, kind := range kinds {
		if len(idx.byKind[kind]) == 0 {
			return &MissingSubstreamError{Kind: kind}
		}
	}
	return nil
}

// Count returns how many events of one kind the trace contained.
func (idx *Index) Count(kind trace.Kind) int { return len(idx.byKind[kind]) }

// FilterPitch keeps the entries naming the given pitch.
func FilterPitch(entries []Entry, pitch int) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Pitch == pitch {
			out = append(out, e)
		}
	}
	return out
}

func floorTo(t, step float64) int64 {
	return int64(math.Floor(t / step))
}

func ceilTo(t, step float64) int64 {
	return int64(math.Ceil(t / step))
}

// intrinsicTime extracts the performance time an event states itself.
func intrinsicTime(ev trace.Event) (float64, bool) {
	switch e := ev.(type) {
	case *trace.InputEvent:
		return e.Time, true
	case *trace.RowDecision:
		return e.Time, true
	case *trace.MatchOutcome:
		return e.Time, true
	case *trace.NoMatchOutcome:
		return e.Time, true
	case *trace.CellState:
		return e.Time, true
	case *trace.TimingCheck:
		return e.CurrTime, true
	}
	return 0, false
}

// eventPitch extracts the pitch an event names, -1 when it names none.
func eventPitch(ev trace.Event) int {
	switch e := ev.(type) {
	case *trace.InputEvent:
		return e.Pitch
	case *trace.RowDecision:
		return e.Pitch
	case *trace.MatchOutcome:
		return e.Pitch
	case *trace.NoMatchOutcome:
		return e.Pitch
	case *trace.HorizontalRule:
		return e.Pitch
	case *trace.MatchType:
		return e.Pitch
	case *trace.OrnamentStep:
		return e.Pitch
	case *trace.MatchExplain:
		return e.Pitch
	case *trace.NoMatchExplain:
		return e.Pitch
	case *trace.DecisionExplain:
		return e.Pitch
	case *trace.TimingExplain:
		return e.Pitch
	case *trace.OrnamentExplain:
		return e.Pitch
	}
	return -1
}

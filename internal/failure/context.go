package failure

// context.go — Evidence synthesis: everything the trace knows about the
// moments around one failure, joined from every detail substream.

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"matchtrace/internal/config"
	"matchtrace/internal/flatten"
	"matchtrace/internal/joins"
	"matchtrace/internal/trace"
)

// ErrNoEvidence means the failure window contained no events of any kind, so
// no explanation can be synthesized. Treated as fatal: it indicates the scan
// windows and the failure do not overlap, which is a pipeline bug, not an
// engine bug.
var ErrNoEvidence = errors.New("failure: no evidence in context window")

// ScorePoint is one (time, score) sample on the score trajectory.
type ScorePoint struct {
	Time  float64 `json:"time"`
	Score float64 `json:"score"`
}

// TimingSummary characterizes the local input rhythm before a failure.
type TimingSummary struct {
	Samples       int      `json:"samples"`
	MeanIOI       float64  `json:"mean_ioi"`
	IOIVariance   float64  `json:"ioi_variance"`
	MaxGap        float64  `json:"max_gap"`
	MinGap        float64  `json:"min_gap"`
	TimeToFailure float64  `json:"time_to_failure"`
	Issues        []string `json:"issues,omitempty"`
}

// Context is the full evidence bundle for one failure.
type Context struct {
	Failure     Failure `json:"failure"`
	WindowStart float64 `json:"window_start"`
	WindowEnd   float64 `json:"window_end"`

	// Events is every detail event in the window, keyed by kind.
	// Pitch-scoped kinds are filtered to the failing pitch.
	Events     map[trace.Kind][]trace.Event `json:"events"`
	EventCount int                          `json:"event_count"`

	// PrecedingDecisions are the last N reassembled rows before the failure;
	// PrecedingMatches the last few successful match scores.
	PrecedingDecisions []*flatten.Record `json:"preceding_decisions"`
	PrecedingMatches   []ScorePoint      `json:"preceding_matches"`

	// Categorized evidence.
	TimingPass      int                     `json:"timing_pass"`
	TimingFail      int                     `json:"timing_fail"`
	MatchKinds      map[trace.MatchKind]int `json:"match_kinds,omitempty"`
	Winners         map[trace.Winner]int    `json:"winners,omitempty"`
	ScoreTrajectory []ScorePoint            `json:"score_trajectory,omitempty"`
	BeatsTop        int                     `json:"beats_top"`
	BelowTop        int                     `json:"below_top"`
	OrnamentEvents  int                     `json:"ornament_events"`

	Timing   TimingSummary `json:"timing"`
	Insights []string      `json:"insights,omitempty"`
}

// pitchScoped lists the kinds whose window evidence is narrowed to the
// failing pitch.
var pitchScoped = map[trace.Kind]bool{
	trace.KindMatchType:       true,
	trace.KindOrnament:        true,
	trace.KindMatchExplain:    true,
	trace.KindNoMatchExplain:  true,
	trace.KindTimingExplain:   true,
	trace.KindOrnamentExplain: true,
}

// Synthesizer builds Contexts against one run's join index and record set.
type Synthesizer struct {
	cfg     config.Settings
	idx     *joins.Index
	records []*flatten.Record
	log     *zap.Logger
}

func NewSynthesizer(cfg config.Settings, idx *joins.Index, records []*flatten.Record, log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{cfg: cfg, idx: idx, records: records, log: log}
}

// Synthesize assembles the evidence bundle for one failure.
func (s *Synthesizer) Synthesize(f Failure) (*Context, error) {
	w := s.cfg.ContextWindowSeconds
	ctx := &Context{
		Failure:     f,
		WindowStart: f.Time - w,
		WindowEnd:   f.Time + w,
		Events:      make(map[trace.Kind][]trace.Event),
		MatchKinds:  make(map[trace.MatchKind]int),
		Winners:     make(map[trace.Winner]int),
	}

	for kind, entries := range s.idx.Window(ctx.WindowStart, ctx.WindowEnd) {
		if pitchScoped[kind] {
			entries = joins.FilterPitch(entries, f.Pitch)
		}
		if len(entries) == 0 {
			continue
		}
		evs := make([]trace.Event, len(entries))
		for i, e := range entries {
			evs[i] = e.Event
		}
		ctx.Events[kind] = evs
		ctx.EventCount += len(evs)
		s.categorize(ctx, kind, entries)
	}

	ctx.PrecedingDecisions = s.precedingDecisions(f)
	ctx.PrecedingMatches = s.precedingMatches(f)

	if ctx.EventCount == 0 && len(ctx.PrecedingDecisions) == 0 {
		return nil, fmt.Errorf("failure at t=%.3f line %d: %w", f.Time, f.Line, ErrNoEvidence)
	}

	ctx.Timing = s.timingSummary(f)
	ctx.Insights = insights(ctx)
	return ctx, nil
}

func (s *Synthesizer) categorize(ctx *Context, kind trace.Kind, entries []joins.Entry) {
	switch kind {
	case trace.KindTimingCheck:
		for _, e := range entries {
			if e.Event.(*trace.TimingCheck).Pass {
				ctx.TimingPass++
			} else {
				ctx.TimingFail++
			}
		}
	case trace.KindHorizontalRule:
		for _, e := range entries {
			ctx.MatchKinds[e.Event.(*trace.HorizontalRule).MatchKind]++
		}
	case trace.KindCellDecision:
		for _, e := range entries {
			ctx.Winners[e.Event.(*trace.CellDecision).Winner]++
		}
	case trace.KindScoreCompetition:
		for _, e := range entries {
			sc := e.Event.(*trace.ScoreCompetition)
			ctx.ScoreTrajectory = append(ctx.ScoreTrajectory, ScorePoint{Time: e.Time, Score: sc.CurrentScore})
			if sc.BeatsTop {
				ctx.BeatsTop++
			} else {
				ctx.BelowTop++
			}
		}
	case trace.KindOrnament, trace.KindOrnamentExplain:
		ctx.OrnamentEvents += len(entries)
	}
}

// precedingDecisions returns the last ContextDecisions records before the
// failure line, nearest first.
func (s *Synthesizer) precedingDecisions(f Failure) []*flatten.Record {
	n := sort.Search(len(s.records), func(i int) bool {
		return s.records[i].LineNum >= f.Line
	})
	limit := s.cfg.ContextDecisions
	var out []*flatten.Record
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out
}

// precedingMatches returns the last PrecedingMatches successful match scores
// before the failure, oldest first.
func (s *Synthesizer) precedingMatches(f Failure) []ScorePoint {
	var out []ScorePoint
	for i := len(s.records) - 1; i >= 0 && len(out) < s.cfg.PrecedingMatches; i-- {
		rec := s.records[i]
		if rec.LineNum >= f.Line || rec.Result != flatten.ResultMatch {
			continue
		}
		// One point per block.
		if len(out) > 0 && out[len(out)-1].Time == rec.MatchTime {
			continue
		}
		out = append(out, ScorePoint{Time: rec.MatchTime, Score: rec.MatchScore})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// timingSummary analyzes the input rhythm before the failure. It looks back
// twice the evidence window: a gap issue needs room for at least one interval
// longer than LargeGapSeconds.
func (s *Synthesizer) timingSummary(f Failure) TimingSummary {
	var sum TimingSummary
	inputs := s.idx.Range(trace.KindInput, f.Time-2*s.cfg.ContextWindowSeconds, f.Time)
	if len(inputs) == 0 {
		return sum
	}
	var iois []float64
	for i := 1; i < len(inputs); i++ {
		iois = append(iois, inputs[i].Time-inputs[i-1].Time)
	}
	sum.TimeToFailure = f.Time - inputs[len(inputs)-1].Time
	sum.Samples = len(iois)
	if len(iois) > 0 {
		sum.MinGap = math.Inf(1)
		var total float64
		for _, ioi := range iois {
			total += ioi
			if ioi > sum.MaxGap {
				sum.MaxGap = ioi
			}
			if ioi < sum.MinGap {
				sum.MinGap = ioi
			}
		}
		sum.MeanIOI = total / float64(len(iois))
		var varsum float64
		for _, ioi := range iois {
			d := ioi - sum.MeanIOI
			varsum += d * d
		}
		sum.IOIVariance = varsum / float64(len(iois))
	}
	if sum.MaxGap > s.cfg.LargeGapSeconds {
		sum.Issues = append(sum.Issues,
			fmt.Sprintf("large gap of %.2fs between inputs before failure", sum.MaxGap))
	}
	if sum.TimeToFailure > s.cfg.FailureDelaySeconds {
		sum.Issues = append(sum.Issues,
			fmt.Sprintf("failure came %.2fs after the last input", sum.TimeToFailure))
	}
	return sum
}

// insights turns the categorized evidence into short human-readable findings.
func insights(ctx *Context) []string {
	var out []string
	if ctx.TimingFail > 0 && ctx.TimingFail >= ctx.TimingPass {
		out = append(out, fmt.Sprintf("timing constraints failed %d of %d checks in the window",
			ctx.TimingFail, ctx.TimingFail+ctx.TimingPass))
	}
	if ctx.BelowTop > 0 && ctx.BeatsTop == 0 {
		out = append(out, "no candidate beat the running top score in the window")
	}
	if ctx.OrnamentEvents > 0 {
		out = append(out, fmt.Sprintf("%d ornament events near the failure, ornament handling may be involved",
			ctx.OrnamentEvents))
	}
	if n := ctx.Winners[trace.WinnerVertical]; n > 0 && n >= 2*ctx.Winners[trace.WinnerHorizontal] {
		out = append(out, "vertical rule dominated cell decisions, engine was skipping reference rows")
	}
	for _, rec := range ctx.PrecedingDecisions {
		if rec.TimingBug {
			out = append(out, fmt.Sprintf("timing bug flagged on row %d: %s", rec.Row, rec.TimingBugNote))
			break
		}
	}
	out = append(out, ctx.Timing.Issues...)
	return out
}

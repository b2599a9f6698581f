package failure

// report.go — The failure report: ordered contexts plus run-level statistics
// and recommendations.

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Summary is the run-level view of the detected failures.
type Summary struct {
	TotalFailures    int            `json:"total_failures"`
	Dropped          int            `json:"dropped_no_context"`
	ByClass          map[string]int `json:"by_class"`
	FirstFailureTime float64        `json:"first_failure_time"`
	LastFailureTime  float64        `json:"last_failure_time"`
	MeanScore        float64        `json:"mean_score"`
	MinScore         float64        `json:"min_score"`
	MaxScore         float64        `json:"max_score"`
	MeanWindowEvents float64        `json:"mean_window_events"`
	TimingIssues     int            `json:"timing_issues"`
}

// Report is the persisted analysis product for one trace.
type Report struct {
	RunID           string     `json:"run_id"`
	GeneratedAt     time.Time  `json:"generated_at"`
	TraceFile       string     `json:"trace_file"`
	Contexts        []*Context `json:"contexts"`
	Summary         Summary    `json:"summary"`
	Recommendations []string   `json:"recommendations,omitempty"`
}

// BuildReport aggregates synthesized contexts, in failure order, into the
// final report. dropped is the count of failures detection discarded for
// lacking any preceding decision.
func BuildReport(traceFile string, contexts []*Context, dropped int) *Report {
	rep := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		TraceFile:   traceFile,
		Contexts:    contexts,
	}
	rep.Summary = summarize(contexts, dropped)
	rep.Recommendations = recommend(rep.Summary, contexts)
	return rep
}

func summarize(contexts []*Context, dropped int) Summary {
	sum := Summary{
		TotalFailures: len(contexts),
		Dropped:       dropped,
		ByClass:       make(map[string]int),
	}
	if len(contexts) == 0 {
		return sum
	}
	sum.FirstFailureTime = contexts[0].Failure.Time
	sum.LastFailureTime = contexts[len(contexts)-1].Failure.Time

	scored := 0
	var totalScore, totalEvents float64
	for _, ctx := range contexts {
		f := ctx.Failure
		sum.ByClass[f.Class.String()]++
		totalEvents += float64(ctx.EventCount)
		sum.TimingIssues += len(ctx.Timing.Issues)
		if f.Class != Unmatched {
			if scored == 0 || f.Score < sum.MinScore {
				sum.MinScore = f.Score
			}
			if scored == 0 || f.Score > sum.MaxScore {
				sum.MaxScore = f.Score
			}
			totalScore += f.Score
			scored++
		}
		if f.Time < sum.FirstFailureTime {
			sum.FirstFailureTime = f.Time
		}
		if f.Time > sum.LastFailureTime {
			sum.LastFailureTime = f.Time
		}
	}
	if scored > 0 {
		sum.MeanScore = totalScore / float64(scored)
	}
	sum.MeanWindowEvents = totalEvents / float64(len(contexts))
	return sum
}

// recommend derives next-step suggestions from the failure shape. These are
// thresholded heuristics, not conclusions.
func recommend(sum Summary, contexts []*Context) []string {
	var recs []string
	if sum.TotalFailures == 0 {
		return nil
	}
	unmatched := sum.ByClass[Unmatched.String()]
	lowConf := sum.ByClass[LowConfidenceMatch.String()]
	regressions := sum.ByClass[ScoreRegression.String()]

	if unmatched*2 > sum.TotalFailures {
		recs = append(recs, "most failures are outright no-matches: check window placement and widen the search window before tuning scores")
	}
	if lowConf > 0 {
		recs = append(recs, fmt.Sprintf("%d low-confidence matches: review score weighting, the engine is accepting weak candidates", lowConf))
	}
	if regressions > 0 {
		recs = append(recs, fmt.Sprintf("%d score regressions: look for window drift or a reference-position jump between adjacent rows of the affected columns", regressions))
	}

	timingHeavy, ornamentHeavy, bugged := 0, 0, 0
	for _, ctx := range contexts {
		if ctx.TimingFail > ctx.TimingPass {
			timingHeavy++
		}
		if ctx.OrnamentEvents > 0 {
			ornamentHeavy++
		}
		for _, rec := range ctx.PrecedingDecisions {
			if rec.TimingBug {
				bugged++
				break
			}
		}
	}
	if timingHeavy*2 > sum.TotalFailures {
		recs = append(recs, "timing constraints reject more than they pass near failures: the IOI limits are likely too tight for this performance")
	}
	if ornamentHeavy*2 > sum.TotalFailures {
		recs = append(recs, "ornament activity clusters around failures: verify trill and grace-note credit handling")
	}
	if bugged > 0 {
		recs = append(recs, fmt.Sprintf("%d failures show IOIs computed against an unset previous time: fix prev_time initialization in the engine", bugged))
	}
	if sum.TimingIssues > 0 && len(recs) == 0 {
		recs = append(recs, "failures correlate with irregular input timing, not scoring: inspect the performance segmentation")
	}
	return recs
}

// WriteFile persists the report as indented JSON.
func (r *Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

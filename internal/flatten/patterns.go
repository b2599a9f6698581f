package flatten

// patterns.go — Aggregate statistics over a reassembled record set. These are
// the quick "what happened overall" numbers printed after a flatten run and
// embedded in the analysis artifact.

import "matchtrace/internal/trace"

// PatternStats summarizes recurring behavior across records.
type PatternStats struct {
	TotalRecords   int                     `json:"total_records"`
	ByResult       map[string]int          `json:"by_result"`
	ByMatchKind    map[trace.MatchKind]int `json:"by_match_kind"`
	TimingBugs     int                     `json:"timing_bugs"`
	TimingFailures int                     `json:"timing_failures"`
	BeatsTop       int                     `json:"beats_top"`
	BelowTop       int                     `json:"below_top"`
	WithOrnaments  int                     `json:"with_ornaments"`
	OrnamentMisses int                     `json:"ornament_misses"`
}

// AnalyzePatterns scans the records once and tallies the aggregates.
func AnalyzePatterns(records []*Record) PatternStats {
	stats := PatternStats{
		ByResult:    make(map[string]int),
		ByMatchKind: make(map[trace.MatchKind]int),
	}
	for _, rec := range records {
		stats.TotalRecords++
		stats.ByResult[rec.Result.String()]++
		if rec.HRuleMatchKind != trace.MatchKindUnknown {
			stats.ByMatchKind[rec.HRuleMatchKind]++
		}
		if rec.TimingBug {
			stats.TimingBugs++
		}
		if rec.TimingConstraint != trace.ConstraintUnknown && !rec.TimingPass {
			stats.TimingFailures++
		}
		if rec.ScoreTop != 0 || rec.ScoreCurrent != 0 {
			if rec.ScoreBeatsTop {
				stats.BeatsTop++
			} else {
				stats.BelowTop++
			}
		}
		if rec.OrnamentKind != trace.OrnamentUnknown && rec.OrnamentKind != trace.OrnamentNone {
			stats.WithOrnaments++
			if rec.Result == ResultNoMatch {
				stats.OrnamentMisses++
			}
		}
	}
	return stats
}

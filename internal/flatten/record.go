package flatten

// record.go — The wide per-cell decision record.
//
// One Record is the reconstructed state of one (column,row) matrix cell
// inside one input block, with every detail group the scan elected to
// extract attached. Unique per (column,row) within a block. Fields the trace
// never mentioned stay at the documented defaults below — they are real zero
// values in the tabular output, never nulls, and never fabricated:
//
//	numeric fields      0 (except CellTime and TimingPrevTime, which the
//	                    engine itself initializes to -1)
//	flags               false
//	strings             ""
//	tag fields          unknown
//	lists               empty

import (
	"strconv"
	"strings"

	"matchtrace/internal/trace"
)

// ResultKind is the block outcome stamped onto every record of the block.
type ResultKind int

const (
	// ResultUnprocessed marks records from a block that reached end of file
	// without a terminal outcome.
	ResultUnprocessed ResultKind = iota
	ResultMatch
	ResultNoMatch
)

func (k ResultKind) String() string {
	switch k {
	case ResultMatch:
		return "match"
	case ResultNoMatch:
		return "no_match"
	}
	return "unprocessed"
}

func (k ResultKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Record is one flattened decision.
type Record struct {
	// Input group: shared by every record of the block.
	InputColumn int     `json:"input_column"`
	InputPitch  int     `json:"input_pitch"`
	InputTime   float64 `json:"input_time"`

	// Outcome groups: exactly one is populated, per Result.
	MatchRow     int     `json:"match_row"`
	MatchPitch   int     `json:"match_pitch"`
	MatchTime    float64 `json:"match_time"`
	MatchScore   float64 `json:"match_score"`
	NoMatchPitch int     `json:"no_match_pitch"`
	NoMatchTime  float64 `json:"no_match_time"`

	// Matrix group: block-shared window state.
	MatrixWindowStart  int `json:"matrix_window_start"`
	MatrixWindowEnd    int `json:"matrix_window_end"`
	MatrixWindowCenter int `json:"matrix_window_center"`
	MatrixCurrentBase  int `json:"matrix_current_base"`
	MatrixPrevBase     int `json:"matrix_prev_base"`
	MatrixCurrentUpper int `json:"matrix_current_upper"`
	MatrixPrevUpper    int `json:"matrix_prev_upper"`

	// Reference-event group.
	RefRow           int     `json:"ref_row"`
	RefScoreTime     float64 `json:"ref_score_time"`
	RefPitchCount    int     `json:"ref_pitch_count"`
	RefTimeSpan      float64 `json:"ref_time_span"`
	RefOrnamentCount int     `json:"ref_ornament_count"`
	RefExpected      int     `json:"ref_expected"`

	// Primary row-decision group.
	Row            int     `json:"row"`
	VerticalRule   float64 `json:"vertical_rule"`
	HorizontalRule float64 `json:"horizontal_rule"`
	FinalValue     float64 `json:"final_value"`
	MatchFlag      bool    `json:"match_flag"`
	UsedPitches    []int   `json:"used_pitches"`
	UnusedCount    int     `json:"unused_count"`

	// Cell-state group.
	CellTime        float64 `json:"cell_time"`
	CellValue       float64 `json:"cell_value"`
	CellUsedPitches []int   `json:"cell_used_pitches"`
	CellUnusedCount int     `json:"cell_unused_count"`

	// Vertical-rule group.
	VRuleUpValue    float64 `json:"vrule_up_value"`
	VRulePenalty    float64 `json:"vrule_penalty"`
	VRuleResult     float64 `json:"vrule_result"`
	VRuleStartPoint bool    `json:"vrule_start_point"`

	// Horizontal-rule group.
	HRulePrevValue  float64         `json:"hrule_prev_value"`
	HRuleIOI        float64         `json:"hrule_ioi"`
	HRuleLimit      float64         `json:"hrule_limit"`
	HRuleTimingPass bool            `json:"hrule_timing_pass"`
	HRuleMatchKind  trace.MatchKind `json:"hrule_match_kind"`
	HRuleResult     float64         `json:"hrule_result"`

	// Timing-check group.
	TimingPrevTime   float64              `json:"timing_prev_time"`
	TimingCurrTime   float64              `json:"timing_curr_time"`
	TimingIOI        float64              `json:"timing_ioi"`
	TimingSpan       float64              `json:"timing_span"`
	TimingLimit      float64              `json:"timing_limit"`
	TimingPass       bool                 `json:"timing_pass"`
	TimingConstraint trace.ConstraintKind `json:"timing_constraint"`

	// Match-type group.
	IsChord      bool   `json:"is_chord"`
	IsTrill      bool   `json:"is_trill"`
	IsGrace      bool   `json:"is_grace"`
	IsExtra      bool   `json:"is_extra"`
	IsIgnored    bool   `json:"is_ignored"`
	AlreadyUsed  bool   `json:"already_used"`
	TimingOK     bool   `json:"timing_ok"`
	OrnamentInfo string `json:"ornament_info"`

	// Decision group.
	DecisionVertical   float64              `json:"decision_vertical"`
	DecisionHorizontal float64              `json:"decision_horizontal"`
	DecisionWinner     trace.Winner         `json:"decision_winner"`
	DecisionUpdated    bool                 `json:"decision_updated"`
	DecisionFinal      float64              `json:"decision_final"`
	DecisionReason     trace.DecisionReason `json:"decision_reason"`

	// Score-competition group.
	ScoreCurrent    float64 `json:"score_current"`
	ScoreTop        float64 `json:"score_top"`
	ScoreBeatsTop   bool    `json:"score_beats_top"`
	ScoreMargin     float64 `json:"score_margin"`
	ScoreConfidence float64 `json:"score_confidence"`

	// Ornament group.
	OrnamentKind   trace.OrnamentKind `json:"ornament_kind"`
	OrnamentTrill  []int              `json:"ornament_trill"`
	OrnamentGrace  []int              `json:"ornament_grace"`
	OrnamentIgnore []int              `json:"ornament_ignore"`
	OrnamentCredit float64            `json:"ornament_credit"`

	// Array-neighborhood group.
	ArrayCenter    float64   `json:"array_center"`
	ArrayNeighbors []float64 `json:"array_neighbors"`
	ArrayPositions []int     `json:"array_positions"`

	// Outcome classification and bug flags.
	Result        ResultKind `json:"result"`
	TimingBug     bool       `json:"timing_bug"`
	TimingBugNote string     `json:"timing_bug_note"`

	// LineNum is the primary row event's line.
	LineNum int `json:"line_number"`
}

// Columns is the tabular contract: fixed names in fixed order, one per
// tracked field. Changing it is a breaking change for downstream columnar
// tooling.
var Columns = []string{
	"input_column", "input_pitch", "input_time",
	"match_row", "match_pitch", "match_time", "match_score",
	"no_match_pitch", "no_match_time",
	"matrix_window_start", "matrix_window_end", "matrix_window_center",
	"matrix_current_base", "matrix_prev_base", "matrix_current_upper", "matrix_prev_upper",
	"ref_row", "ref_score_time", "ref_pitch_count", "ref_time_span",
	"ref_ornament_count", "ref_expected",
	"row", "vertical_rule", "horizontal_rule", "final_value", "match_flag",
	"used_pitches", "unused_count",
	"cell_time", "cell_value", "cell_used_pitches", "cell_unused_count",
	"vrule_up_value", "vrule_penalty", "vrule_result", "vrule_start_point",
	"hrule_prev_value", "hrule_ioi", "hrule_limit", "hrule_timing_pass",
	"hrule_match_kind", "hrule_result",
	"timing_prev_time", "timing_curr_time", "timing_ioi", "timing_span",
	"timing_limit", "timing_pass", "timing_constraint",
	"is_chord", "is_trill", "is_grace", "is_extra", "is_ignored",
	"already_used", "timing_ok", "ornament_info",
	"decision_vertical", "decision_horizontal", "decision_winner",
	"decision_updated", "decision_final", "decision_reason",
	"score_current", "score_top", "score_beats_top", "score_margin", "score_confidence",
	"ornament_kind", "ornament_trill", "ornament_grace", "ornament_ignore", "ornament_credit",
	"array_center", "array_neighbors", "array_positions",
	"result", "timing_bug", "timing_bug_note",
	"line_number",
}

// values renders the record in Columns order.
func (r *Record) values() []string {
	return []string{
		itoa(r.InputColumn), itoa(r.InputPitch), ftoa(r.InputTime),
		itoa(r.MatchRow), itoa(r.MatchPitch), ftoa(r.MatchTime), ftoa(r.MatchScore),
		itoa(r.NoMatchPitch), ftoa(r.NoMatchTime),
		itoa(r.MatrixWindowStart), itoa(r.MatrixWindowEnd), itoa(r.MatrixWindowCenter),
		itoa(r.MatrixCurrentBase), itoa(r.MatrixPrevBase), itoa(r.MatrixCurrentUpper), itoa(r.MatrixPrevUpper),
		itoa(r.RefRow), ftoa(r.RefScoreTime), itoa(r.RefPitchCount), ftoa(r.RefTimeSpan),
		itoa(r.RefOrnamentCount), itoa(r.RefExpected),
		itoa(r.Row), ftoa(r.VerticalRule), ftoa(r.HorizontalRule), ftoa(r.FinalValue), btoa(r.MatchFlag),
		ints(r.UsedPitches), itoa(r.UnusedCount),
		ftoa(r.CellTime), ftoa(r.CellValue), ints(r.CellUsedPitches), itoa(r.CellUnusedCount),
		ftoa(r.VRuleUpValue), ftoa(r.VRulePenalty), ftoa(r.VRuleResult), btoa(r.VRuleStartPoint),
		ftoa(r.HRulePrevValue), ftoa(r.HRuleIOI), ftoa(r.HRuleLimit), btoa(r.HRuleTimingPass),
		r.HRuleMatchKind.String(), ftoa(r.HRuleResult),
		ftoa(r.TimingPrevTime), ftoa(r.TimingCurrTime), ftoa(r.TimingIOI), ftoa(r.TimingSpan),
		ftoa(r.TimingLimit), btoa(r.TimingPass), r.TimingConstraint.String(),
		btoa(r.IsChord), btoa(r.IsTrill), btoa(r.IsGrace), btoa(r.IsExtra), btoa(r.IsIgnored),
		btoa(r.AlreadyUsed), btoa(r.TimingOK), r.OrnamentInfo,
		ftoa(r.DecisionVertical), ftoa(r.DecisionHorizontal), r.DecisionWinner.String(),
		btoa(r.DecisionUpdated), ftoa(r.DecisionFinal), r.DecisionReason.String(),
		ftoa(r.ScoreCurrent), ftoa(r.ScoreTop), btoa(r.ScoreBeatsTop), ftoa(r.ScoreMargin), ftoa(r.ScoreConfidence),
		r.OrnamentKind.String(), ints(r.OrnamentTrill), ints(r.OrnamentGrace), ints(r.OrnamentIgnore), ftoa(r.OrnamentCredit),
		ftoa(r.ArrayCenter), floats(r.ArrayNeighbors), ints(r.ArrayPositions),
		r.Result.String(), btoa(r.TimingBug), r.TimingBugNote,
		itoa(r.LineNum),
	}
}

func itoa(n int) string     { return strconv.Itoa(n) }
func ftoa(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }
func btoa(b bool) string {
	if b {
		return "t"
	}
	return "f"
}

func ints(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func floats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = ftoa(x)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

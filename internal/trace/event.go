package trace

// event.go — Typed event model for the alignment engine's execution trace.
//
// One trace line becomes one Event. Events are immutable once classified and
// always carry the line number they came from. The set of kinds is a fixed,
// versioned contract with the engine (see grammar.go); adding or changing a
// kind is a breaking change to that table, never a silent pattern edit.

// Kind identifies one event grammar. The string value is also the key used
// for the comprehensive-detail section of the analysis artifact.
type Kind string

const (
	// Core kinds: cheap to parse, always extracted on the first pass.
	KindBlockHeader Kind = "test_start"
	KindBlockFooter Kind = "test_end"
	KindInput       Kind = "input"
	KindRowDecision Kind = "row_decision"
	KindMatch       Kind = "match"
	KindNoMatch     Kind = "no_match"

	// Detail kinds: high-volume diagnostics, extracted only inside failure
	// windows by the second pass.
	KindMatrixState       Kind = "matrix_state"
	KindCellState         Kind = "cell_state"
	KindVerticalRule      Kind = "vertical_rule"
	KindHorizontalRule    Kind = "horizontal_rule"
	KindTimingCheck       Kind = "timing_check"
	KindMatchType         Kind = "match_type"
	KindCellDecision      Kind = "cell_decision"
	KindArrayNeighborhood Kind = "array_neighborhood"
	KindScoreCompetition  Kind = "score_competition"
	KindOrnament          Kind = "ornament"
	KindWindowMove        Kind = "window_move"
	KindReferenceEvent    Kind = "reference_event"

	// Explanation kinds: free-text diagnostics emitted alongside the
	// structured detail events.
	KindMatchExplain    Kind = "match_explain"
	KindNoMatchExplain  Kind = "no_match_explain"
	KindDecisionExplain Kind = "decision_explain"
	KindTimingExplain   Kind = "timing_explain"
	KindOrnamentExplain Kind = "ornament_explain"
)

// DetailKinds lists every windowed detail kind in artifact order.
var DetailKinds = []Kind{
	KindMatrixState,
	KindCellState,
	KindVerticalRule,
	KindHorizontalRule,
	KindTimingCheck,
	KindMatchType,
	KindCellDecision,
	KindArrayNeighborhood,
	KindScoreCompetition,
	KindOrnament,
	KindWindowMove,
	KindReferenceEvent,
	KindMatchExplain,
	KindNoMatchExplain,
	KindDecisionExplain,
	KindTimingExplain,
	KindOrnamentExplain,
}

// Event is one classified trace line.
type Event interface {
	Kind() Kind
	// Line is the 1-based line number the event was parsed from.
	Line() int
}

// base carries the originating line number shared by every event type.
type base struct {
	LineNum int `json:"line_number"`
}

func (b base) Line() int { return b.LineNum }

// BlockHeader marks the start of one benchmark run (TEST_START).
type BlockHeader struct {
	base
	Case            int    `json:"case"`
	ScoreFile       string `json:"score_file"`
	PerformanceFile string `json:"performance_file"`
}

func (*BlockHeader) Kind() Kind { return KindBlockHeader }

// BlockFooter marks the end of a benchmark run (TEST_END).
type BlockFooter struct {
	base
	Case       int `json:"case"`
	Matches    int `json:"matches"`
	TotalNotes int `json:"total_notes"`
}

func (*BlockFooter) Kind() Kind { return KindBlockFooter }

// InputEvent is the arrival of one performance event (INPUT). It opens an
// input block: everything until the next MATCH/NO_MATCH belongs to it.
type InputEvent struct {
	base
	Column int     `json:"column"`
	Pitch  int     `json:"pitch"`
	Time   float64 `json:"time"`
}

func (*InputEvent) Kind() Kind { return KindInput }

// RowDecision is the primary per-row fact (DP): the resolved value of one
// matrix cell for the current input column.
type RowDecision struct {
	base
	Column         int     `json:"column"`
	Row            int     `json:"row"`
	Pitch          int     `json:"pitch"`
	Time           float64 `json:"time"`
	VerticalRule   float64 `json:"vertical_rule"`
	HorizontalRule float64 `json:"horizontal_rule"`
	FinalValue     float64 `json:"final_value"`
	MatchFlag      bool    `json:"match_flag"`
	UsedPitches    []int   `json:"used_pitches"`
	UnusedCount    int     `json:"unused_count"`
}

func (*RowDecision) Kind() Kind { return KindRowDecision }

// MatchOutcome is the terminal event of a block that resolved to a match.
type MatchOutcome struct {
	base
	Row   int     `json:"row"`
	Pitch int     `json:"pitch"`
	Time  float64 `json:"time"`
	Score float64 `json:"score"`
}

func (*MatchOutcome) Kind() Kind { return KindMatch }

// NoMatchOutcome is the terminal event of a block that failed to match.
type NoMatchOutcome struct {
	base
	Pitch int     `json:"pitch"`
	Time  float64 `json:"time"`
}

func (*NoMatchOutcome) Kind() Kind { return KindNoMatch }

// MatrixState snapshots the DP window for the current column (MATRIX).
// It is block-shared context: the reassembler copies it onto every record
// of the block.
type MatrixState struct {
	base
	Column       int `json:"column"`
	WindowStart  int `json:"window_start"`
	WindowEnd    int `json:"window_end"`
	WindowCenter int `json:"window_center"`
	CurrentBase  int `json:"current_base"`
	PrevBase     int `json:"prev_base"`
	CurrentUpper int `json:"current_upper"`
	PrevUpper    int `json:"prev_upper"`
}

func (*MatrixState) Kind() Kind { return KindMatrixState }

// CellState is the state of one cell before evaluation (CELL).
type CellState struct {
	base
	Row         int     `json:"row"`
	Value       float64 `json:"value"`
	UsedPitches []int   `json:"used_pitches"`
	UnusedCount int     `json:"unused_count"`
	Time        float64 `json:"time"`
}

func (*CellState) Kind() Kind { return KindCellState }

// VerticalRule is the advance-without-input score update (VRULE).
type VerticalRule struct {
	base
	Row        int     `json:"row"`
	UpValue    float64 `json:"up_value"`
	Penalty    float64 `json:"penalty"`
	Result     float64 `json:"result"`
	StartPoint bool    `json:"start_point"`
}

func (*VerticalRule) Kind() Kind { return KindVerticalRule }

// HorizontalRule is the consume-input-as-match score update (HRULE).
type HorizontalRule struct {
	base
	Row        int       `json:"row"`
	PrevValue  float64   `json:"prev_value"`
	Pitch      int       `json:"pitch"`
	IOI        float64   `json:"ioi"`
	Limit      float64   `json:"limit"`
	TimingPass bool      `json:"timing_pass"`
	MatchKind  MatchKind `json:"match_kind"`
	Result     float64   `json:"result"`
}

func (*HorizontalRule) Kind() Kind { return KindHorizontalRule }

// TimingCheck is one timing-constraint evaluation (TIMING). It carries no
// row; the reassembler attaches it to the most recently opened row.
type TimingCheck struct {
	base
	PrevTime   float64        `json:"prev_time"`
	CurrTime   float64        `json:"curr_time"`
	IOI        float64        `json:"ioi"`
	Span       float64        `json:"span"`
	Limit      float64        `json:"limit"`
	Pass       bool           `json:"pass"`
	Constraint ConstraintKind `json:"constraint"`
}

func (*TimingCheck) Kind() Kind { return KindTimingCheck }

// MatchType classifies how the input pitch relates to the reference
// (MATCH_TYPE): chord member, trill, grace, extra, ignored.
type MatchType struct {
	base
	Pitch        int    `json:"pitch"`
	IsChord      bool   `json:"is_chord"`
	IsTrill      bool   `json:"is_trill"`
	IsGrace      bool   `json:"is_grace"`
	IsExtra      bool   `json:"is_extra"`
	IsIgnored    bool   `json:"is_ignored"`
	AlreadyUsed  bool   `json:"already_used"`
	TimingOK     bool   `json:"timing_ok"`
	OrnamentInfo string `json:"ornament_info"`
}

func (*MatchType) Kind() Kind { return KindMatchType }

// CellDecision is the final vertical-vs-horizontal arbitration for one cell
// (DECISION).
type CellDecision struct {
	base
	Row              int            `json:"row"`
	VerticalResult   float64        `json:"vertical_result"`
	HorizontalResult float64        `json:"horizontal_result"`
	Winner           Winner         `json:"winner"`
	Updated          bool           `json:"updated"`
	FinalValue       float64        `json:"final_value"`
	Reason           DecisionReason `json:"reason"`
}

func (*CellDecision) Kind() Kind { return KindCellDecision }

// ArrayNeighborhood is the DP array around one cell (ARRAY).
type ArrayNeighborhood struct {
	base
	Row            int       `json:"row"`
	CenterValue    float64   `json:"center_value"`
	NeighborValues []float64 `json:"neighbor_values"`
	Positions      []int     `json:"positions"`
}

func (*ArrayNeighborhood) Kind() Kind { return KindArrayNeighborhood }

// ScoreCompetition compares a cell's score against the running best (SCORE).
type ScoreCompetition struct {
	base
	Row          int     `json:"row"`
	CurrentScore float64 `json:"current_score"`
	TopScore     float64 `json:"top_score"`
	BeatsTop     bool    `json:"beats_top"`
	Margin       float64 `json:"margin"`
	Confidence   float64 `json:"confidence"`
}

func (*ScoreCompetition) Kind() Kind { return KindScoreCompetition }

// OrnamentStep records ornament-tolerant matching for one pitch (ORNAMENT).
type OrnamentStep struct {
	base
	Pitch         int          `json:"pitch"`
	OrnamentKind  OrnamentKind `json:"ornament_kind"`
	TrillPitches  []int        `json:"trill_pitches"`
	GracePitches  []int        `json:"grace_pitches"`
	IgnorePitches []int        `json:"ignore_pitches"`
	Credit        float64      `json:"credit"`
}

func (*OrnamentStep) Kind() Kind { return KindOrnament }

// WindowMove records a dynamic adjustment of the DP window (WINDOW_MOVE).
type WindowMove struct {
	base
	OldCenter int    `json:"old_center"`
	NewCenter int    `json:"new_center"`
	OldStart  int    `json:"old_start"`
	NewStart  int    `json:"new_start"`
	OldEnd    int    `json:"old_end"`
	NewEnd    int    `json:"new_end"`
	Reason    string `json:"reason"`
}

func (*WindowMove) Kind() Kind { return KindWindowMove }

// ReferenceEvent summarizes the reference-side event at one row (CEVENT).
// It may arrive before the row's primary event and is buffered until then.
type ReferenceEvent struct {
	base
	Row           int     `json:"row"`
	ScoreTime     float64 `json:"score_time"`
	PitchCount    int     `json:"pitch_count"`
	TimeSpan      float64 `json:"time_span"`
	OrnamentCount int     `json:"ornament_count"`
	Expected      int     `json:"expected"`
}

func (*ReferenceEvent) Kind() Kind { return KindReferenceEvent }

// MatchExplain is the engine's prose rationale for a match (MATCH_EXPLAIN).
type MatchExplain struct {
	base
	Pitch      int     `json:"pitch"`
	Reason     string  `json:"reason"`
	Score      float64 `json:"score"`
	Timing     float64 `json:"timing"`
	Context    string  `json:"context"`
	SourceLine int     `json:"source_line"`
}

func (*MatchExplain) Kind() Kind { return KindMatchExplain }

// NoMatchExplain is the engine's prose rationale for a rejection
// (NO_MATCH_EXPLAIN).
type NoMatchExplain struct {
	base
	Pitch      int     `json:"pitch"`
	Reason     string  `json:"reason"`
	Constraint string  `json:"constraint"`
	Timing     float64 `json:"timing"`
	Expected   string  `json:"expected"`
	SourceLine int     `json:"source_line"`
}

func (*NoMatchExplain) Kind() Kind { return KindNoMatchExplain }

// DecisionExplain narrates one cell arbitration (DECISION_EXPLAIN).
type DecisionExplain struct {
	base
	Row             int     `json:"row"`
	Pitch           int     `json:"pitch"`
	Reasoning       string  `json:"reasoning"`
	VerticalScore   float64 `json:"vertical_score"`
	HorizontalScore float64 `json:"horizontal_score"`
	Winner          Winner  `json:"winner"`
	Confidence      float64 `json:"confidence"`
}

func (*DecisionExplain) Kind() Kind { return KindDecisionExplain }

// TimingExplain narrates one timing check (TIMING_EXPLAIN).
type TimingExplain struct {
	base
	Pitch   int     `json:"pitch"`
	IOI     float64 `json:"ioi"`
	Limit   float64 `json:"limit"`
	Pass    bool    `json:"pass"`
	Reason  string  `json:"reason"`
	Context string  `json:"context"`
}

func (*TimingExplain) Kind() Kind { return KindTimingExplain }

// OrnamentExplain narrates ornament handling for one pitch
// (ORNAMENT_EXPLAIN).
type OrnamentExplain struct {
	base
	Pitch        int          `json:"pitch"`
	OrnamentKind OrnamentKind `json:"ornament_kind"`
	Processing   string       `json:"processing"`
	Credit       float64      `json:"credit"`
	PitchContext string       `json:"pitch_context"`
}

func (*OrnamentExplain) Kind() Kind { return KindOrnamentExplain }

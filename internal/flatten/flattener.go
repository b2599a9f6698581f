package flatten

// flattener.go — Stream reassembler: turns the interleaved event stream back
// into wide per-cell Records.
//
// The engine logs one block per performance input: INPUT, then the per-row
// evaluation events in whatever order the inner loops emitted them, then
// MATCH or NO_MATCH. The flattener replays that stream with three pieces of
// state: block-shared context (input, matrix window, outcome), one open
// Record per row keyed by row index, and a pending buffer for row-scoped
// details that arrived before their row's primary event. Within one record
// every field is last-write-wins.

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"matchtrace/internal/trace"
)

// ErrNoRecords is returned when the stream contains no input blocks at all.
// A block that closed without row decisions is legal: it yields no records,
// and the detector accounts for its outcome separately.
var ErrNoRecords = errors.New("flatten: no input blocks in event stream")

// Stats counts what the reassembly saw and what it had to tolerate.
type Stats struct {
	Blocks           int `json:"blocks"`
	IncompleteBlocks int `json:"incomplete_blocks"`
	OrphanDetails    int `json:"orphan_details"`
	ReplayedDetails  int `json:"replayed_details"`
}

// shared is the block-level context copied onto every record at finalize.
type shared struct {
	open    bool
	column  int
	pitch   int
	time    float64
	matrix  *trace.MatrixState
	result  ResultKind
	match   *trace.MatchOutcome
	noMatch *trace.NoMatchOutcome
}

// Flattener reassembles one event stream. Single-use: allocate one per run.
type Flattener struct {
	log     *zap.Logger
	shared  shared
	records map[int]*Record
	pending map[int][]trace.Event
	maxRow  int
	out     []*Record
	stats   Stats
}

func NewFlattener(log *zap.Logger) *Flattener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flattener{
		log:     log,
		records: make(map[int]*Record),
		pending: make(map[int][]trace.Event),
		maxRow:  -1,
	}
}

// Flatten consumes the stream and returns the reassembled records in block
// order, rows ascending within each block. A trailing block with no terminal
// outcome is flushed as ResultUnprocessed and counted, not dropped.
func (f *Flattener) Flatten(events []trace.Event) ([]*Record, Stats, error) {
	for _, ev := range events {
		f.consume(ev)
	}
	if f.shared.open {
		f.log.Warn("event stream ended inside an input block, flushing as unprocessed",
			zap.Int("column", f.shared.column),
			zap.Int("open_rows", len(f.records)))
		f.stats.IncompleteBlocks++
		f.finalize()
	}
	if f.stats.Blocks == 0 {
		return nil, f.stats, ErrNoRecords
	}
	return f.out, f.stats, nil
}

func (f *Flattener) consume(ev trace.Event) {
	switch e := ev.(type) {
	case *trace.InputEvent:
		if f.shared.open {
			// Previous block never reached MATCH/NO_MATCH.
			f.log.Warn("input block missing terminal outcome",
				zap.Int("column", f.shared.column),
				zap.Int("line", e.Line()))
			f.stats.IncompleteBlocks++
			f.finalize()
		}
		f.shared = shared{open: true, column: e.Column, pitch: e.Pitch, time: e.Time}

	case *trace.RowDecision:
		f.openRow(e)

	case *trace.MatrixState:
		f.shared.matrix = e

	case *trace.MatchOutcome:
		if !f.shared.open {
			f.log.Warn("outcome with no open input block, ignored",
				zap.Int("line", e.Line()))
			return
		}
		f.shared.result = ResultMatch
		f.shared.match = e
		f.finalize()

	case *trace.NoMatchOutcome:
		if !f.shared.open {
			f.log.Warn("outcome with no open input block, ignored",
				zap.Int("line", e.Line()))
			return
		}
		f.shared.result = ResultNoMatch
		f.shared.noMatch = e
		f.finalize()

	case *trace.ReferenceEvent:
		f.rowDetail(e.Row, ev)
	case *trace.CellState:
		f.rowDetail(e.Row, ev)
	case *trace.VerticalRule:
		f.rowDetail(e.Row, ev)
	case *trace.HorizontalRule:
		f.rowDetail(e.Row, ev)
	case *trace.CellDecision:
		f.rowDetail(e.Row, ev)
	case *trace.ScoreCompetition:
		f.rowDetail(e.Row, ev)
	case *trace.ArrayNeighborhood:
		f.rowDetail(e.Row, ev)

	case *trace.TimingCheck, *trace.MatchType, *trace.OrnamentStep:
		// Row-less details attach to the row currently under evaluation,
		// which is the highest row opened so far in this block.
		f.rowlessDetail(ev)

	default:
		// Headers, footers, window moves and explanation events are not
		// per-cell state; the join layer serves them directly.
	}
}

// openRow starts the record for one primary row event and replays any detail
// that arrived ahead of it. A repeated row within the same block replaces the
// earlier record: the stream's later word wins.
func (f *Flattener) openRow(e *trace.RowDecision) {
	rec := &Record{
		Row:            e.Row,
		VerticalRule:   e.VerticalRule,
		HorizontalRule: e.HorizontalRule,
		FinalValue:     e.FinalValue,
		MatchFlag:      e.MatchFlag,
		UsedPitches:    e.UsedPitches,
		UnusedCount:    e.UnusedCount,
		CellTime:       -1,
		TimingPrevTime: -1,
		LineNum:        e.Line(),
	}
	f.records[e.Row] = rec
	if e.Row > f.maxRow {
		f.maxRow = e.Row
	}
	for _, pv := range f.pending[e.Row] {
		f.apply(rec, pv)
		f.stats.ReplayedDetails++
	}
	delete(f.pending, e.Row)
}

// rowDetail attaches a row-scoped detail, buffering it if the row's primary
// event has not arrived yet.
func (f *Flattener) rowDetail(row int, ev trace.Event) {
	if rec, ok := f.records[row]; ok {
		f.apply(rec, ev)
		return
	}
	f.pending[row] = append(f.pending[row], ev)
}

// rowlessDetail attaches to the highest open row, the row under evaluation
// when the engine emitted the line.
func (f *Flattener) rowlessDetail(ev trace.Event) {
	rec, ok := f.records[f.maxRow]
	if !ok {
		f.stats.OrphanDetails++
		f.log.Debug("detail event with no open row, dropped",
			zap.String("kind", string(ev.Kind())),
			zap.Int("line", ev.Line()))
		return
	}
	f.apply(rec, ev)
}

// apply copies one detail event's fields onto the record, overwriting
// whatever an earlier event of the same kind wrote.
func (f *Flattener) apply(rec *Record, ev trace.Event) {
	switch e := ev.(type) {
	case *trace.ReferenceEvent:
		rec.RefRow = e.Row
		rec.RefScoreTime = e.ScoreTime
		rec.RefPitchCount = e.PitchCount
		rec.RefTimeSpan = e.TimeSpan
		rec.RefOrnamentCount = e.OrnamentCount
		rec.RefExpected = e.Expected
	case *trace.CellState:
		rec.CellTime = e.Time
		rec.CellValue = e.Value
		rec.CellUsedPitches = e.UsedPitches
		rec.CellUnusedCount = e.UnusedCount
	case *trace.VerticalRule:
		rec.VRuleUpValue = e.UpValue
		rec.VRulePenalty = e.Penalty
		rec.VRuleResult = e.Result
		rec.VRuleStartPoint = e.StartPoint
	case *trace.HorizontalRule:
		rec.HRulePrevValue = e.PrevValue
		rec.HRuleIOI = e.IOI
		rec.HRuleLimit = e.Limit
		rec.HRuleTimingPass = e.TimingPass
		rec.HRuleMatchKind = e.MatchKind
		rec.HRuleResult = e.Result
	case *trace.TimingCheck:
		rec.TimingPrevTime = e.PrevTime
		rec.TimingCurrTime = e.CurrTime
		rec.TimingIOI = e.IOI
		rec.TimingSpan = e.Span
		rec.TimingLimit = e.Limit
		rec.TimingPass = e.Pass
		rec.TimingConstraint = e.Constraint
		// A prev_time of -1 with a large IOI is the engine computing an
		// interval against an unset previous note.
		if e.PrevTime == -1 && e.IOI > 20 {
			rec.TimingBug = true
			rec.TimingBugNote = "ioi computed against unset prev_time"
		}
	case *trace.MatchType:
		rec.IsChord = e.IsChord
		rec.IsTrill = e.IsTrill
		rec.IsGrace = e.IsGrace
		rec.IsExtra = e.IsExtra
		rec.IsIgnored = e.IsIgnored
		rec.AlreadyUsed = e.AlreadyUsed
		rec.TimingOK = e.TimingOK
		rec.OrnamentInfo = e.OrnamentInfo
	case *trace.CellDecision:
		rec.DecisionVertical = e.VerticalResult
		rec.DecisionHorizontal = e.HorizontalResult
		rec.DecisionWinner = e.Winner
		rec.DecisionUpdated = e.Updated
		rec.DecisionFinal = e.FinalValue
		rec.DecisionReason = e.Reason
	case *trace.ScoreCompetition:
		rec.ScoreCurrent = e.CurrentScore
		rec.ScoreTop = e.TopScore
		rec.ScoreBeatsTop = e.BeatsTop
		rec.ScoreMargin = e.Margin
		rec.ScoreConfidence = e.Confidence
	case *trace.OrnamentStep:
		rec.OrnamentKind = e.OrnamentKind
		rec.OrnamentTrill = e.TrillPitches
		rec.OrnamentGrace = e.GracePitches
		rec.OrnamentIgnore = e.IgnorePitches
		rec.OrnamentCredit = e.Credit
	case *trace.ArrayNeighborhood:
		rec.ArrayCenter = e.CenterValue
		rec.ArrayNeighbors = e.NeighborValues
		rec.ArrayPositions = e.Positions
	}
}

// finalize stamps the block-shared context onto every open record, emits them
// in row order and resets for the next block.
func (f *Flattener) finalize() {
	rows := make([]int, 0, len(f.records))
	for row := range f.records {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	for _, row := range rows {
		rec := f.records[row]
		rec.InputColumn = f.shared.column
		rec.InputPitch = f.shared.pitch
		rec.InputTime = f.shared.time
		if m := f.shared.matrix; m != nil {
			rec.MatrixWindowStart = m.WindowStart
			rec.MatrixWindowEnd = m.WindowEnd
			rec.MatrixWindowCenter = m.WindowCenter
			rec.MatrixCurrentBase = m.CurrentBase
			rec.MatrixPrevBase = m.PrevBase
			rec.MatrixCurrentUpper = m.CurrentUpper
			rec.MatrixPrevUpper = m.PrevUpper
		}
		rec.Result = f.shared.result
		if m := f.shared.match; m != nil {
			rec.MatchRow = m.Row
			rec.MatchPitch = m.Pitch
			rec.MatchTime = m.Time
			rec.MatchScore = m.Score
		}
		if nm := f.shared.noMatch; nm != nil {
			rec.NoMatchPitch = nm.Pitch
			rec.NoMatchTime = nm.Time
		}
		f.out = append(f.out, rec)
	}
	if dropped := len(f.pending); dropped > 0 {
		for _, evs := range f.pending {
			f.stats.OrphanDetails += len(evs)
		}
		f.log.Debug("block closed with unclaimed pending details",
			zap.Int("column", f.shared.column),
			zap.Int("rows", dropped))
	}
	f.stats.Blocks++
	f.records = make(map[int]*Record)
	f.pending = make(map[int][]trace.Event)
	f.maxRow = -1
	f.shared = shared{}
}

// Merge interleaves the core and detail streams back into line order. Both
// inputs are already line-sorted; detail lines inside failure windows may
// duplicate core lines, in which case the core copy wins and the duplicate
// is skipped.
func Merge(core, detail []trace.Event) []trace.Event {
	out := make([]trace.Event, 0, len(core)+len(detail))
	i, j := 0, 0
	for i < len(core) && j < len(detail) {
		switch {
		case core[i].Line() < detail[j].Line():
			out = append(out, core[i])
			i++
		case core[i].Line() > detail[j].Line():
			out = append(out, detail[j])
			j++
		default:
			out = append(out, core[i])
			i++
			j++
		}
	}
	out = append(out, core[i:]...)
	out = append(out, detail[j:]...)
	return out
}

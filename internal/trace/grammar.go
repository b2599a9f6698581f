package trace

// grammar.go — The declared event grammar table.
//
// A trace line is `TAG|key:value|key:value...`. The table below is the
// versioned contract with the engine: one row per kind, in fixed priority
// order, first structural match wins. Ordering is load-bearing — several
// tags are syntactic prefixes of others (MATCH of MATCH_TYPE, NO_MATCH of
// NO_MATCH_EXPLAIN, TIMING of TIMING_EXPLAIN), so the longer tag must be
// declared first.
//
// Field coercion is strict: a line that matches a tag but carries a field
// that fails coercion is a hard error (FieldError with line and field name),
// never a silent default. Lists are `[v1,v2,...]` and may be empty. Boolean
// flags are the engine's truth tokens: "t" is true, "nil"/"f"/"0" are false.

import (
	"strconv"
	"strings"
)

type pattern struct {
	tag    string
	kind   Kind
	core   bool
	decode func(*fieldReader, base) Event
}

// grammar is the full declared table. Core rows are parsed on every pass;
// detail rows only when the scan controller asks for them.
var grammar = []pattern{
	{"NO_MATCH_EXPLAIN", KindNoMatchExplain, false, decodeNoMatchExplain},
	{"MATCH_EXPLAIN", KindMatchExplain, false, decodeMatchExplain},
	{"DECISION_EXPLAIN", KindDecisionExplain, false, decodeDecisionExplain},
	{"TIMING_EXPLAIN", KindTimingExplain, false, decodeTimingExplain},
	{"ORNAMENT_EXPLAIN", KindOrnamentExplain, false, decodeOrnamentExplain},
	{"MATCH_TYPE", KindMatchType, false, decodeMatchType},
	{"NO_MATCH", KindNoMatch, true, decodeNoMatch},
	{"MATCH", KindMatch, true, decodeMatch},
	{"TEST_START", KindBlockHeader, true, decodeBlockHeader},
	{"TEST_END", KindBlockFooter, true, decodeBlockFooter},
	{"INPUT", KindInput, true, decodeInput},
	{"DP", KindRowDecision, true, decodeRowDecision},
	{"MATRIX", KindMatrixState, false, decodeMatrixState},
	{"CELL", KindCellState, false, decodeCellState},
	{"VRULE", KindVerticalRule, false, decodeVerticalRule},
	{"HRULE", KindHorizontalRule, false, decodeHorizontalRule},
	{"TIMING", KindTimingCheck, false, decodeTimingCheck},
	{"DECISION", KindCellDecision, false, decodeCellDecision},
	{"ARRAY", KindArrayNeighborhood, false, decodeArrayNeighborhood},
	{"SCORE", KindScoreCompetition, false, decodeScoreCompetition},
	{"ORNAMENT", KindOrnament, false, decodeOrnament},
	{"WINDOW_MOVE", KindWindowMove, false, decodeWindowMove},
	{"CEVENT", KindReferenceEvent, false, decodeReferenceEvent},
}

// fieldReader walks the pipe-delimited fields of one line, coercing each in
// declared order. The first failure sticks; decoders check Err once at the
// end instead of after every field.
type fieldReader struct {
	kind   Kind
	line   int
	fields []string
	idx    int
	err    error
}

func newFieldReader(kind Kind, line int, rest string) *fieldReader {
	r := &fieldReader{kind: kind, line: line}
	if rest != "" {
		r.fields = strings.Split(rest, "|")
	}
	return r
}

func (r *fieldReader) fail(field, value, reason string) {
	if r.err == nil {
		r.err = &FieldError{Line: r.line, Kind: r.kind, Field: field, Value: value, Reason: reason}
	}
}

// next returns the raw value of the expected field, enforcing field order.
func (r *fieldReader) next(key string) (string, bool) {
	if r.err != nil {
		return "", false
	}
	if r.idx >= len(r.fields) {
		r.fail(key, "", "field missing")
		return "", false
	}
	seg := r.fields[r.idx]
	r.idx++
	val, ok := strings.CutPrefix(seg, key+":")
	if !ok {
		r.fail(key, seg, "unexpected field")
		return "", false
	}
	return val, true
}

func (r *fieldReader) Int(key string) int {
	val, ok := r.next(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		r.fail(key, val, "not an integer")
		return 0
	}
	return n
}

func (r *fieldReader) Float(key string) float64 {
	val, ok := r.next(key)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		r.fail(key, val, "not a number")
		return 0
	}
	return f
}

// Bit coerces the 0/1 encoding used by the DP match flag.
func (r *fieldReader) Bit(key string) bool {
	val, ok := r.next(key)
	if !ok {
		return false
	}
	switch val {
	case "0":
		return false
	case "1":
		return true
	}
	r.fail(key, val, "not a 0/1 flag")
	return false
}

// Flag coerces the engine's truth tokens.
func (r *fieldReader) Flag(key string) bool {
	val, ok := r.next(key)
	if !ok {
		return false
	}
	switch val {
	case "t":
		return true
	case "nil", "f", "0":
		return false
	}
	r.fail(key, val, "not a truth token")
	return false
}

func (r *fieldReader) String(key string) string {
	val, _ := r.next(key)
	return val
}

func (r *fieldReader) IntList(key string) []int {
	val, ok := r.next(key)
	if !ok {
		return nil
	}
	return r.intList(key, val)
}

func (r *fieldReader) intList(key, val string) []int {
	body, ok := cutBrackets(val)
	if !ok {
		r.fail(key, val, "not a bracketed list")
		return nil
	}
	if body == "" {
		return []int{}
	}
	parts := strings.Split(body, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			r.fail(key, val, "list element not an integer")
			return nil
		}
		out = append(out, n)
	}
	return out
}

func (r *fieldReader) FloatList(key string) []float64 {
	val, ok := r.next(key)
	if !ok {
		return nil
	}
	body, okB := cutBrackets(val)
	if !okB {
		r.fail(key, val, "not a bracketed list")
		return nil
	}
	if body == "" {
		return []float64{}
	}
	parts := strings.Split(body, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			r.fail(key, val, "list element not a number")
			return nil
		}
		out = append(out, f)
	}
	return out
}

func (r *fieldReader) Err() error { return r.err }

func cutBrackets(val string) (string, bool) {
	if !strings.HasPrefix(val, "[") || !strings.HasSuffix(val, "]") {
		return "", false
	}
	return val[1 : len(val)-1], true
}

func decodeBlockHeader(r *fieldReader, b base) Event {
	return &BlockHeader{
		base:            b,
		Case:            r.Int("case"),
		ScoreFile:       r.String("score"),
		PerformanceFile: r.String("perf"),
	}
}

func decodeBlockFooter(r *fieldReader, b base) Event {
	return &BlockFooter{
		base:       b,
		Case:       r.Int("case"),
		Matches:    r.Int("matches"),
		TotalNotes: r.Int("total"),
	}
}

func decodeInput(r *fieldReader, b base) Event {
	return &InputEvent{
		base:   b,
		Column: r.Int("c"),
		Pitch:  r.Int("p"),
		Time:   r.Float("t"),
	}
}

func decodeRowDecision(r *fieldReader, b base) Event {
	return &RowDecision{
		base:           b,
		Column:         r.Int("c"),
		Row:            r.Int("r"),
		Pitch:          r.Int("p"),
		Time:           r.Float("t"),
		VerticalRule:   r.Float("vr"),
		HorizontalRule: r.Float("hr"),
		FinalValue:     r.Float("f"),
		MatchFlag:      r.Bit("m"),
		UsedPitches:    r.IntList("u"),
		UnusedCount:    r.Int("uc"),
	}
}

func decodeMatch(r *fieldReader, b base) Event {
	return &MatchOutcome{
		base:  b,
		Row:   r.Int("r"),
		Pitch: r.Int("p"),
		Time:  r.Float("t"),
		Score: r.Float("score"),
	}
}

func decodeNoMatch(r *fieldReader, b base) Event {
	return &NoMatchOutcome{
		base:  b,
		Pitch: r.Int("p"),
		Time:  r.Float("t"),
	}
}

func decodeMatrixState(r *fieldReader, b base) Event {
	return &MatrixState{
		base:         b,
		Column:       r.Int("c"),
		WindowStart:  r.Int("ws"),
		WindowEnd:    r.Int("we"),
		WindowCenter: r.Int("wc"),
		CurrentBase:  r.Int("cb"),
		PrevBase:     r.Int("pb"),
		CurrentUpper: r.Int("cu"),
		PrevUpper:    r.Int("pu"),
	}
}

func decodeCellState(r *fieldReader, b base) Event {
	return &CellState{
		base:        b,
		Row:         r.Int("r"),
		Value:       r.Float("v"),
		UsedPitches: r.IntList("u"),
		UnusedCount: r.Int("uc"),
		Time:        r.Float("t"),
	}
}

func decodeVerticalRule(r *fieldReader, b base) Event {
	return &VerticalRule{
		base:       b,
		Row:        r.Int("r"),
		UpValue:    r.Float("up"),
		Penalty:    r.Float("pen"),
		Result:     r.Float("res"),
		StartPoint: r.Flag("sp"),
	}
}

func decodeHorizontalRule(r *fieldReader, b base) Event {
	return &HorizontalRule{
		base:       b,
		Row:        r.Int("r"),
		PrevValue:  r.Float("pv"),
		Pitch:      r.Int("pit"),
		IOI:        r.Float("ioi"),
		Limit:      r.Float("lim"),
		TimingPass: r.Flag("pass"),
		MatchKind:  parseMatchKind(r.String("typ")),
		Result:     r.Float("res"),
	}
}

func decodeTimingCheck(r *fieldReader, b base) Event {
	return &TimingCheck{
		base:       b,
		PrevTime:   r.Float("pt"),
		CurrTime:   r.Float("ct"),
		IOI:        r.Float("ioi"),
		Span:       r.Float("span"),
		Limit:      r.Float("lim"),
		Pass:       r.Flag("pass"),
		Constraint: parseConstraintKind(r.String("type")),
	}
}

func decodeMatchType(r *fieldReader, b base) Event {
	return &MatchType{
		base:         b,
		Pitch:        r.Int("pit"),
		IsChord:      r.Flag("ch"),
		IsTrill:      r.Flag("tr"),
		IsGrace:      r.Flag("gr"),
		IsExtra:      r.Flag("ex"),
		IsIgnored:    r.Flag("ign"),
		AlreadyUsed:  r.Flag("used"),
		TimingOK:     r.Flag("time"),
		OrnamentInfo: r.String("orn"),
	}
}

func decodeCellDecision(r *fieldReader, b base) Event {
	return &CellDecision{
		base:             b,
		Row:              r.Int("r"),
		VerticalResult:   r.Float("vr"),
		HorizontalResult: r.Float("hr"),
		Winner:           parseWinner(r.String("win")),
		Updated:          r.Flag("upd"),
		FinalValue:       r.Float("val"),
		Reason:           parseDecisionReason(r.String("reason")),
	}
}

func decodeArrayNeighborhood(r *fieldReader, b base) Event {
	return &ArrayNeighborhood{
		base:           b,
		Row:            r.Int("r"),
		CenterValue:    r.Float("center"),
		NeighborValues: r.FloatList("vals"),
		Positions:      r.IntList("pos"),
	}
}

func decodeScoreCompetition(r *fieldReader, b base) Event {
	return &ScoreCompetition{
		base:         b,
		Row:          r.Int("r"),
		CurrentScore: r.Float("cur"),
		TopScore:     r.Float("top"),
		BeatsTop:     r.Flag("beat"),
		Margin:       r.Float("margin"),
		Confidence:   r.Float("conf"),
	}
}

func decodeOrnament(r *fieldReader, b base) Event {
	return &OrnamentStep{
		base:          b,
		Pitch:         r.Int("pit"),
		OrnamentKind:  parseOrnamentKind(r.String("type")),
		TrillPitches:  r.IntList("tr"),
		GracePitches:  r.IntList("gr"),
		IgnorePitches: r.IntList("ig"),
		Credit:        r.Float("credit"),
	}
}

func decodeWindowMove(r *fieldReader, b base) Event {
	return &WindowMove{
		base:      b,
		OldCenter: r.Int("oc"),
		NewCenter: r.Int("nc"),
		OldStart:  r.Int("os"),
		NewStart:  r.Int("ns"),
		OldEnd:    r.Int("oe"),
		NewEnd:    r.Int("ne"),
		Reason:    r.String("reason"),
	}
}

func decodeReferenceEvent(r *fieldReader, b base) Event {
	return &ReferenceEvent{
		base:          b,
		Row:           r.Int("r"),
		ScoreTime:     r.Float("st"),
		PitchCount:    r.Int("pc"),
		TimeSpan:      r.Float("span"),
		OrnamentCount: r.Int("oc"),
		Expected:      r.Int("exp"),
	}
}

func decodeMatchExplain(r *fieldReader, b base) Event {
	return &MatchExplain{
		base:       b,
		Pitch:      r.Int("p"),
		Reason:     r.String("reason"),
		Score:      r.Float("score"),
		Timing:     r.Float("timing"),
		Context:    r.String("context"),
		SourceLine: r.Int("src"),
	}
}

func decodeNoMatchExplain(r *fieldReader, b base) Event {
	return &NoMatchExplain{
		base:       b,
		Pitch:      r.Int("p"),
		Reason:     r.String("reason"),
		Constraint: r.String("constraint"),
		Timing:     r.Float("timing"),
		Expected:   r.String("expected"),
		SourceLine: r.Int("src"),
	}
}

func decodeDecisionExplain(r *fieldReader, b base) Event {
	return &DecisionExplain{
		base:            b,
		Row:             r.Int("r"),
		Pitch:           r.Int("p"),
		Reasoning:       r.String("reasoning"),
		VerticalScore:   r.Float("vs"),
		HorizontalScore: r.Float("hs"),
		Winner:          parseWinner(r.String("win")),
		Confidence:      r.Float("conf"),
	}
}

func decodeTimingExplain(r *fieldReader, b base) Event {
	return &TimingExplain{
		base:    b,
		Pitch:   r.Int("p"),
		IOI:     r.Float("ioi"),
		Limit:   r.Float("lim"),
		Pass:    r.Flag("pass"),
		Reason:  r.String("reason"),
		Context: r.String("context"),
	}
}

func decodeOrnamentExplain(r *fieldReader, b base) Event {
	return &OrnamentExplain{
		base:         b,
		Pitch:        r.Int("p"),
		OrnamentKind: parseOrnamentKind(r.String("type")),
		Processing:   r.String("processing"),
		Credit:       r.Float("credit"),
		PitchContext: r.String("pitches"),
	}
}

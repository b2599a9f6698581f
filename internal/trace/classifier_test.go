package trace

// classifier_test.go — Grammar dispatch, tag shadowing and strict coercion.

import (
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// dispatch
// ---------------------------------------------------------------------------

func TestClassifyKinds(t *testing.T) {
	tests := []struct {
		line string
		kind Kind
	}{
		{"TEST_START|case:3|score:chopin.sco|perf:take2.mid", KindBlockHeader},
		{"TEST_END|case:3|matches:120|total:130", KindBlockFooter},
		{"INPUT|c:1|p:60|t:1.5", KindInput},
		{"DP|c:1|r:2|p:60|t:1.5|vr:0|hr:2|f:2|m:1|u:[60,62]|uc:0", KindRowDecision},
		{"MATCH|r:1|p:60|t:1.5|score:2", KindMatch},
		{"NO_MATCH|p:60|t:1.5", KindNoMatch},
		{"MATRIX|c:1|ws:0|we:10|wc:5|cb:0|pb:0|cu:10|pu:10", KindMatrixState},
		{"CELL|r:2|v:1.5|u:[]|uc:1|t:1.2", KindCellState},
		{"VRULE|r:2|up:1|pen:0.5|res:0.5|sp:nil", KindVerticalRule},
		{"HRULE|r:2|pv:1|pit:60|ioi:0.2|lim:0.5|pass:t|typ:chord|res:2", KindHorizontalRule},
		{"TIMING|pt:1.2|ct:1.5|ioi:0.3|span:0.3|lim:0.5|pass:t|type:ioi", KindTimingCheck},
		{"MATCH_TYPE|pit:60|ch:t|tr:nil|gr:f|ex:0|ign:nil|used:nil|time:t|orn:", KindMatchType},
		{"DECISION|r:2|vr:0.5|hr:2|win:horizontal|upd:t|val:2|reason:better", KindCellDecision},
		{"ARRAY|r:2|center:2|vals:[1.5,2,0.5]|pos:[1,2,3]", KindArrayNeighborhood},
		{"SCORE|r:2|cur:2|top:3|beat:nil|margin:-1|conf:0.4", KindScoreCompetition},
		{"ORNAMENT|pit:62|type:trill|tr:[62,64]|gr:[]|ig:[]|credit:0.5", KindOrnament},
		{"WINDOW_MOVE|oc:5|nc:8|os:0|ns:3|oe:10|ne:13|reason:drift", KindWindowMove},
		{"CEVENT|r:2|st:1.4|pc:3|span:0.1|oc:0|exp:2", KindReferenceEvent},
		{"MATCH_EXPLAIN|p:60|reason:clean chord tone|score:2|timing:0.2|context:bar 12|src:44", KindMatchExplain},
		{"NO_MATCH_EXPLAIN|p:61|reason:ioi over limit|constraint:ioi|timing:0.8|expected:62|src:45", KindNoMatchExplain},
		{"DECISION_EXPLAIN|r:2|p:60|reasoning:horizontal beats vertical|vs:0.5|hs:2|win:horizontal|conf:0.7", KindDecisionExplain},
		{"TIMING_EXPLAIN|p:60|ioi:0.8|lim:0.5|pass:nil|reason:too late|context:after rest", KindTimingExplain},
		{"ORNAMENT_EXPLAIN|p:62|type:grace|processing:credited to row 2|credit:0.3|pitches:62 63", KindOrnamentExplain},
	}
	for _, tc := range tests {
		ev, err := Classify(tc.line, 1)
		if err != nil {
			t.Errorf("Classify(%q) error: %v", tc.line, err)
			continue
		}
		if ev == nil {
			t.Errorf("Classify(%q) = nil, want %s", tc.line, tc.kind)
			continue
		}
		if ev.Kind() != tc.kind {
			t.Errorf("Classify(%q) kind = %s, want %s", tc.line, ev.Kind(), tc.kind)
		}
		if ev.Line() != 1 {
			t.Errorf("Classify(%q) line = %d, want 1", tc.line, ev.Line())
		}
	}
}

// TestClassifyShadowedTags verifies the declared order: a tag that is a
// prefix of a longer tag must not capture the longer tag's lines.
func TestClassifyShadowedTags(t *testing.T) {
	tests := []struct {
		line string
		kind Kind
	}{
		{"MATCH_TYPE|pit:60|ch:t|tr:nil|gr:nil|ex:nil|ign:nil|used:nil|time:t|orn:", KindMatchType},
		{"MATCH_EXPLAIN|p:60|reason:x|score:1|timing:0.1|context:|src:3", KindMatchExplain},
		{"NO_MATCH|p:60|t:1.5", KindNoMatch},
		{"NO_MATCH_EXPLAIN|p:60|reason:x|constraint:ioi|timing:0.8|expected:|src:3", KindNoMatchExplain},
		{"TIMING_EXPLAIN|p:60|ioi:0.8|lim:0.5|pass:t|reason:|context:", KindTimingExplain},
		{"ORNAMENT_EXPLAIN|p:60|type:none|processing:|credit:0|pitches:", KindOrnamentExplain},
		{"DECISION_EXPLAIN|r:1|p:60|reasoning:|vs:0|hs:0|win:none|conf:0", KindDecisionExplain},
	}
	for _, tc := range tests {
		ev, err := Classify(tc.line, 7)
		if err != nil {
			t.Fatalf("Classify(%q): %v", tc.line, err)
		}
		if ev == nil || ev.Kind() != tc.kind {
			t.Errorf("Classify(%q) = %v, want kind %s", tc.line, ev, tc.kind)
		}
	}
}

func TestClassifySkipsNonEvents(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"# engine build 2024-11-02",
		"some stray stderr output",
		"DEBUGX|r:1",
	} {
		ev, err := Classify(line, 1)
		if err != nil {
			t.Errorf("Classify(%q) error: %v", line, err)
		}
		if ev != nil {
			t.Errorf("Classify(%q) = %v, want nil", line, ev)
		}
	}
}

// ---------------------------------------------------------------------------
// coercion
// ---------------------------------------------------------------------------

func TestClassifyCoercionError(t *testing.T) {
	tests := []struct {
		line  string
		field string
	}{
		// Non-numeric int.
		{"INPUT|c:x|p:60|t:1.5", "c"},
		// Non-numeric float.
		{"MATCH|r:1|p:60|t:abc|score:2", "t"},
		// Bit flag must be 0/1, truth tokens rejected.
		{"DP|c:1|r:2|p:60|t:1.5|vr:0|hr:2|f:2|m:t|u:[]|uc:0", "m"},
		// "x" is not a truth token.
		{"VRULE|r:2|up:1|pen:0.5|res:0.5|sp:x", "sp"},
		// Field out of order.
		{"INPUT|p:60|c:1|t:1.5", "c"},
		// Field missing.
		{"NO_MATCH|p:60", "t"},
		// Unbracketed list.
		{"CELL|r:2|v:1.5|u:60,62|uc:1|t:1.2", "u"},
		// Bad list element.
		{"ARRAY|r:2|center:2|vals:[1.5,zz]|pos:[1]", "vals"},
	}
	for _, tc := range tests {
		_, err := Classify(tc.line, 42)
		if err == nil {
			t.Errorf("Classify(%q): expected coercion error", tc.line)
			continue
		}
		var fe *FieldError
		if !errors.As(err, &fe) {
			t.Errorf("Classify(%q): error %T, want *FieldError", tc.line, err)
			continue
		}
		if fe.Line != 42 {
			t.Errorf("Classify(%q): FieldError.Line = %d, want 42", tc.line, fe.Line)
		}
		if fe.Field != tc.field {
			t.Errorf("Classify(%q): FieldError.Field = %q, want %q", tc.line, fe.Field, tc.field)
		}
	}
}

func TestClassifyTruthTokens(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"t", true},
		{"nil", false},
		{"f", false},
		{"0", false},
	}
	for _, tc := range tests {
		ev, err := Classify("VRULE|r:1|up:1|pen:0.5|res:0.5|sp:"+tc.token, 1)
		if err != nil {
			t.Fatalf("token %q: %v", tc.token, err)
		}
		if got := ev.(*VerticalRule).StartPoint; got != tc.want {
			t.Errorf("token %q coerced to %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestClassifyEmptyList(t *testing.T) {
	ev, err := Classify("DP|c:1|r:2|p:60|t:1.5|vr:0|hr:2|f:2|m:0|u:[]|uc:3", 1)
	if err != nil {
		t.Fatal(err)
	}
	dp := ev.(*RowDecision)
	if dp.UsedPitches == nil || len(dp.UsedPitches) != 0 {
		t.Errorf("empty list parsed as %v, want []", dp.UsedPitches)
	}
	if dp.UnusedCount != 3 {
		t.Errorf("uc = %d, want 3", dp.UnusedCount)
	}
}

func TestClassifyUnknownTagTokens(t *testing.T) {
	// An unrecognized closed-tag token degrades to Unknown, never an error.
	ev, err := Classify("DECISION|r:2|vr:0.5|hr:2|win:sideways|upd:t|val:2|reason:gravity", 1)
	if err != nil {
		t.Fatal(err)
	}
	d := ev.(*CellDecision)
	if d.Winner != WinnerUnknown {
		t.Errorf("winner = %v, want unknown", d.Winner)
	}
	if d.Reason != ReasonUnknown {
		t.Errorf("reason = %v, want unknown", d.Reason)
	}
}

// ---------------------------------------------------------------------------
// pass filters
// ---------------------------------------------------------------------------

func TestClassifyCoreFilter(t *testing.T) {
	// Detail lines are invisible to the core pass, including ones whose tag
	// shadows a core tag.
	for _, line := range []string{
		"CELL|r:2|v:1.5|u:[]|uc:1|t:1.2",
		"MATCH_TYPE|pit:60|ch:t|tr:nil|gr:nil|ex:nil|ign:nil|used:nil|time:t|orn:",
	} {
		ev, err := classify(line, 1, coreOnly)
		if err != nil {
			t.Fatalf("classify(%q): %v", line, err)
		}
		if ev != nil {
			t.Errorf("core pass classified detail line %q as %s", line, ev.Kind())
		}
	}
	ev, err := classify("MATCH|r:1|p:60|t:1.5|score:2", 1, coreOnly)
	if err != nil || ev == nil || ev.Kind() != KindMatch {
		t.Errorf("core pass lost MATCH line: ev=%v err=%v", ev, err)
	}
}

package trace

// tags.go — Closed tag vocabularies used by the trace grammar.
//
// The engine emits these as bare word tokens. Each vocabulary is modeled as
// a closed type with an explicit Unknown variant so an engine that grows a
// new token degrades to Unknown instead of poisoning downstream joins with
// free-form strings. Unknown is never a parse error.

// Winner says which rule won a cell arbitration.
type Winner int

const (
	WinnerUnknown Winner = iota
	WinnerVertical
	WinnerHorizontal
	WinnerNone
)

func parseWinner(tok string) Winner {
	switch tok {
	case "vertical", "vert", "v":
		return WinnerVertical
	case "horizontal", "horiz", "h":
		return WinnerHorizontal
	case "none", "nil":
		return WinnerNone
	}
	return WinnerUnknown
}

func (w Winner) String() string {
	switch w {
	case WinnerVertical:
		return "vertical"
	case WinnerHorizontal:
		return "horizontal"
	case WinnerNone:
		return "none"
	}
	return "unknown"
}

// MarshalText lets Winner serve as a JSON map key in distributions.
func (w Winner) MarshalText() ([]byte, error) { return []byte(w.String()), nil }

// MatchKind classifies how a pitch was matched against the reference.
type MatchKind int

const (
	MatchKindUnknown MatchKind = iota
	MatchKindNormal
	MatchKindChord
	MatchKindTrill
	MatchKindGrace
	MatchKindExtra
	MatchKindIgnored
)

func parseMatchKind(tok string) MatchKind {
	switch tok {
	case "normal", "norm":
		return MatchKindNormal
	case "chord", "ch":
		return MatchKindChord
	case "trill", "tr":
		return MatchKindTrill
	case "grace", "gr":
		return MatchKindGrace
	case "extra", "ex":
		return MatchKindExtra
	case "ignored", "ign":
		return MatchKindIgnored
	}
	return MatchKindUnknown
}

func (m MatchKind) String() string {
	switch m {
	case MatchKindNormal:
		return "normal"
	case MatchKindChord:
		return "chord"
	case MatchKindTrill:
		return "trill"
	case MatchKindGrace:
		return "grace"
	case MatchKindExtra:
		return "extra"
	case MatchKindIgnored:
		return "ignored"
	}
	return "unknown"
}

func (m MatchKind) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// ConstraintKind names the timing constraint a TIMING line evaluated.
type ConstraintKind int

const (
	ConstraintUnknown ConstraintKind = iota
	ConstraintIOI
	ConstraintSpan
)

func parseConstraintKind(tok string) ConstraintKind {
	switch tok {
	case "ioi":
		return ConstraintIOI
	case "span":
		return ConstraintSpan
	}
	return ConstraintUnknown
}

func (c ConstraintKind) String() string {
	switch c {
	case ConstraintIOI:
		return "ioi"
	case ConstraintSpan:
		return "span"
	}
	return "unknown"
}

func (c ConstraintKind) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// DecisionReason says why a cell arbitration went the way it did.
type DecisionReason int

const (
	ReasonUnknown DecisionReason = iota
	ReasonBetterScore
	ReasonTimingFail
	ReasonNoUpdate
	ReasonStartPoint
)

func parseDecisionReason(tok string) DecisionReason {
	switch tok {
	case "better", "higher", "score":
		return ReasonBetterScore
	case "timing", "timing_fail":
		return ReasonTimingFail
	case "none", "no_update", "nil":
		return ReasonNoUpdate
	case "start", "start_point":
		return ReasonStartPoint
	}
	return ReasonUnknown
}

func (r DecisionReason) String() string {
	switch r {
	case ReasonBetterScore:
		return "better_score"
	case ReasonTimingFail:
		return "timing_fail"
	case ReasonNoUpdate:
		return "no_update"
	case ReasonStartPoint:
		return "start_point"
	}
	return "unknown"
}

func (r DecisionReason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// OrnamentKind names the ornament category being processed.
type OrnamentKind int

const (
	OrnamentUnknown OrnamentKind = iota
	OrnamentNone
	OrnamentTrill
	OrnamentGrace
)

func parseOrnamentKind(tok string) OrnamentKind {
	switch tok {
	case "none", "nil":
		return OrnamentNone
	case "trill":
		return OrnamentTrill
	case "grace":
		return OrnamentGrace
	}
	return OrnamentUnknown
}

func (o OrnamentKind) String() string {
	switch o {
	case OrnamentNone:
		return "none"
	case OrnamentTrill:
		return "trill"
	case OrnamentGrace:
		return "grace"
	}
	return "unknown"
}

func (o OrnamentKind) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

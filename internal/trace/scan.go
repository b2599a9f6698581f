package trace

// scan.go — Two-pass scan controller.
//
// Detail events outnumber core events by 6–8 lines per matrix row, and on a
// multi-hundred-thousand-line trace coercing all of them dominates the run.
// The controller therefore makes one cheap pass that classifies only core
// kinds (detail tags cost a prefix compare, nothing more) and records where
// the failures are, then a second pass that coerces detail kinds only inside
// ±Window lines of each failure. The two passes over the same lines are a
// deliberate trade of I/O for memory; Window is configuration, not a
// constant.

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Scanner runs the staged scan. One Scanner per trace; it keeps no state
// between calls.
type Scanner struct {
	window int
	log    *zap.Logger
}

// NewScanner returns a Scanner extracting detail within ±window lines of
// each failure.
func NewScanner(window int, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{window: window, log: log}
}

// Stats counts what a scan touched.
type Stats struct {
	LinesScanned      int           `json:"lines_scanned"`
	CoreEvents        int           `json:"core_events"`
	DetailEvents      int           `json:"detail_events"`
	UnrecognizedLines int           `json:"unrecognized_lines"`
	RowDecisions      int           `json:"row_decisions"`
	Matches           int           `json:"matches"`
	NoMatches         int           `json:"no_matches"`
	Elapsed           time.Duration `json:"elapsed_ns"`
}

// Result is the outcome of a two-pass scan. Core holds every core event in
// file order. Detail holds the windowed detail events in file order, and is
// nil when the trace had no failures — that case is reported explicitly
// (DetailExtracted false), never papered over with a fabricated window. A
// failing trace whose windows held no detail lines yields an empty Detail
// with DetailExtracted true and a logged warning.
type Result struct {
	Header          *BlockHeader
	Footer          *BlockFooter
	Core            []Event
	Detail          []Event
	DetailExtracted bool
	FailureLines    []int
	Stats           Stats
}

// ScanFile reads and scans the trace at path.
func (s *Scanner) ScanFile(path string) (*Result, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	return s.Scan(lines)
}

// Scan runs both passes over lines.
func (s *Scanner) Scan(lines []string) (*Result, error) {
	start := time.Now()
	res := &Result{}

	for i, line := range lines {
		n := i + 1
		res.Stats.LinesScanned++
		ev, err := classify(line, n, coreOnly)
		if err != nil {
			return nil, fmt.Errorf("core pass: %w", err)
		}
		if ev == nil {
			if !isDeclared(line) {
				res.Stats.UnrecognizedLines++
			}
			continue
		}
		res.Stats.CoreEvents++
		switch e := ev.(type) {
		case *BlockHeader:
			res.Header = e
		case *BlockFooter:
			res.Footer = e
		case *RowDecision:
			res.Stats.RowDecisions++
		case *MatchOutcome:
			res.Stats.Matches++
		case *NoMatchOutcome:
			res.Stats.NoMatches++
			res.FailureLines = append(res.FailureLines, n)
		}
		res.Core = append(res.Core, ev)
	}

	s.log.Info("core pass complete",
		zap.Int("lines", res.Stats.LinesScanned),
		zap.Int("core_events", res.Stats.CoreEvents),
		zap.Int("failures", len(res.FailureLines)))

	if len(res.FailureLines) == 0 {
		// No failures means no windows; scanning every detail line would be
		// unbounded work for evidence nobody will join against.
		s.log.Info("no failures found, no detail extracted")
		res.Stats.Elapsed = time.Since(start)
		return res, nil
	}

	targets := s.targetLines(res.FailureLines, len(lines))
	for i, line := range lines {
		n := i + 1
		if _, ok := targets[n]; !ok {
			continue
		}
		ev, err := classify(line, n, detailOnly)
		if err != nil {
			return nil, fmt.Errorf("detail pass: %w", err)
		}
		if ev == nil {
			continue
		}
		res.Stats.DetailEvents++
		res.Detail = append(res.Detail, ev)
	}

	if res.Stats.DetailEvents == 0 {
		// The engine can fail without emitting any diagnostics nearby (a
		// bare NO_MATCH with no row work, or detail channels disabled).
		// That degrades the analysis, it does not abort it.
		s.log.Warn("detail pass extracted no events",
			zap.Int("target_lines", len(targets)),
			zap.Int("failures", len(res.FailureLines)))
	}
	res.DetailExtracted = true
	res.Stats.Elapsed = time.Since(start)

	s.log.Info("detail pass complete",
		zap.Int("target_lines", len(targets)),
		zap.Int("detail_events", res.Stats.DetailEvents))
	return res, nil
}

func (s *Scanner) targetLines(failures []int, max int) map[int]struct{} {
	targets := make(map[int]struct{}, len(failures)*(2*s.window+1))
	for _, f := range failures {
		for n := f - s.window; n <= f+s.window; n++ {
			if n >= 1 && n <= max {
				targets[n] = struct{}{}
			}
		}
	}
	return targets
}

// isDeclared reports whether the line starts with any declared tag (or is
// blank/comment, which is never counted as unrecognized). Prefix compares
// only — this runs on every line of the cheap pass.
func isDeclared(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return true
	}
	for _, p := range grammar {
		if strings.HasPrefix(line, p.tag+"|") {
			return true
		}
	}
	return false
}

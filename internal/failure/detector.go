// Package failure finds the places where the alignment engine went wrong and
// assembles the evidence around each one.
package failure

// detector.go — Failure detection over the reassembled record stream.

import (
	"go.uber.org/zap"

	"matchtrace/internal/config"
	"matchtrace/internal/flatten"
)

// Class is the failure taxonomy.
type Class int

const (
	// Unmatched: the engine emitted NO_MATCH for the input.
	Unmatched Class = iota
	// LowConfidenceMatch: the engine matched, but below the confidence
	// threshold.
	LowConfidenceMatch
	// ScoreRegression: the final value fell sharply between adjacent rows
	// of one column.
	ScoreRegression
)

func (c Class) String() string {
	switch c {
	case Unmatched:
		return "unmatched"
	case LowConfidenceMatch:
		return "low_confidence_match"
	case ScoreRegression:
		return "score_regression"
	}
	return "unknown"
}

func (c Class) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Failure is one detected failure, anchored to the input block it happened in.
type Failure struct {
	Class     Class   `json:"class"`
	Column    int     `json:"column"`
	Pitch     int     `json:"pitch"`
	Time      float64 `json:"time"`
	Line      int     `json:"line"`
	Score     float64 `json:"score"`      // match score, or failing row final value
	PrevScore float64 `json:"prev_score"` // ScoreRegression only: preceding row final value
	Drop      float64 `json:"drop"`       // ScoreRegression only

	// Records are the failing block's reassembled rows.
	Records []*flatten.Record `json:"-"`
}

// Detector classifies blocks into failures.
type Detector struct {
	cfg config.Settings
	log *zap.Logger
}

func NewDetector(cfg config.Settings, log *zap.Logger) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Detector{cfg: cfg, log: log}
}

// Detect walks the records block by block, in stream order. outcomeCount is
// the number of terminal MATCH/NO_MATCH events the scan saw; an outcome with
// no preceding row decision produces no records and cannot be explained, so
// such failures are dropped and returned in the second result. The outcome
// check and the row-regression scan are independent: one block can yield
// both an Unmatched (or LowConfidenceMatch) failure and ScoreRegression
// failures from its row values.
func (d *Detector) Detect(records []*flatten.Record, outcomeCount int) ([]Failure, int) {
	var failures []Failure
	resolved := 0

	for _, block := range groupByColumn(records) {
		lead := block[0]
		if lead.Result == flatten.ResultUnprocessed {
			// Trailing block without an outcome: already warned at flatten
			// time, not a failure of the engine.
			d.log.Debug("skipping unprocessed block in detection",
				zap.Int("column", lead.InputColumn))
			continue
		}
		resolved++
		switch lead.Result {
		case flatten.ResultNoMatch:
			failures = append(failures, Failure{
				Class:   Unmatched,
				Column:  lead.InputColumn,
				Pitch:   lead.NoMatchPitch,
				Time:    lead.NoMatchTime,
				Line:    block[len(block)-1].LineNum,
				Records: block,
			})
		case flatten.ResultMatch:
			if score := lead.MatchScore; score < d.cfg.LowConfidenceThreshold {
				failures = append(failures, Failure{
					Class:   LowConfidenceMatch,
					Column:  lead.InputColumn,
					Pitch:   lead.MatchPitch,
					Time:    lead.MatchTime,
					Line:    block[len(block)-1].LineNum,
					Score:   score,
					Records: block,
				})
			}
		}
		failures = append(failures, d.rowRegressions(block)...)
	}
	dropped := outcomeCount - resolved
	if dropped < 0 {
		dropped = 0
	}
	if dropped > 0 {
		d.log.Warn("insufficient context: outcomes with no preceding row decision dropped",
			zap.Int("dropped", dropped))
	}
	d.log.Info("failure detection complete",
		zap.Int("failures", len(failures)),
		zap.Int("dropped", dropped))
	return failures, dropped
}

// rowRegressions scans one block's row-sorted records and reports every
// adjacent-row drop in final value exceeding the configured threshold.
func (d *Detector) rowRegressions(block []*flatten.Record) []Failure {
	lead := block[0]
	var out []Failure
	for i := 1; i < len(block); i++ {
		drop := block[i-1].FinalValue - block[i].FinalValue
		if drop > d.cfg.ScoreRegressionThreshold {
			out = append(out, Failure{
				Class:     ScoreRegression,
				Column:    lead.InputColumn,
				Pitch:     lead.InputPitch,
				Time:      lead.InputTime,
				Line:      block[i].LineNum,
				Score:     block[i].FinalValue,
				PrevScore: block[i-1].FinalValue,
				Drop:      drop,
				Records:   block,
			})
		}
	}
	return out
}

// groupByColumn splits the stream-ordered records into consecutive blocks.
// Records arrive sorted by block and by row within each block.
func groupByColumn(records []*flatten.Record) [][]*flatten.Record {
	var blocks [][]*flatten.Record
	start := 0
	for i := 1; i <= len(records); i++ {
		if i == len(records) || records[i].InputColumn != records[start].InputColumn {
			blocks = append(blocks, records[start:i])
			start = i
		}
	}
	return blocks
}

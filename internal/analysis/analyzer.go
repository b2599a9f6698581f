// Package analysis wires the whole pipeline: scan, reassemble, index,
// detect, synthesize, report. One Analyzer call takes a trace file and
// returns everything the CLI surfaces.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"matchtrace/internal/config"
	"matchtrace/internal/failure"
	"matchtrace/internal/flatten"
	"matchtrace/internal/joins"
	"matchtrace/internal/trace"
)

// ErrNoEvents means the trace contained no recognized events at all, so
// there is nothing to analyze. An empty or garbage trace file is a caller
// problem, not a degraded-but-successful run. A trace with outcomes but no
// row decisions is NOT this case: it analyzes to a report whose failures
// were dropped for insufficient context.
var ErrNoEvents = errors.New("analysis: trace contains no events")

// Metadata identifies one analysis run.
type Metadata struct {
	RunID       string        `json:"run_id"`
	GeneratedAt time.Time     `json:"generated_at"`
	TraceFile   string        `json:"trace_file"`
	Case        int           `json:"case,omitempty"`
	ScoreFile   string        `json:"score_file,omitempty"`
	PerfFile    string        `json:"performance_file,omitempty"`
	Scan        trace.Stats   `json:"scan"`
	Flatten     flatten.Stats `json:"flatten"`
}

// Summary is the run-level roll-up embedded in the artifact.
type Summary struct {
	TimeStart    float64              `json:"time_start"`
	TimeEnd      float64              `json:"time_end"`
	PitchMin     int                  `json:"pitch_min"`
	PitchMax     int                  `json:"pitch_max"`
	Matches      int                  `json:"matches"`
	NoMatches    int                  `json:"no_matches"`
	MatchRate    float64              `json:"match_rate"`
	ScoreMin     float64              `json:"score_min"`
	ScoreMax     float64              `json:"score_max"`
	ScoreMean    float64              `json:"score_mean"`
	DistinctRows int                  `json:"distinct_rows"`
	Patterns     flatten.PatternStats `json:"patterns"`
}

// Artifact is the persisted JSON analysis document: run identity, the core
// event stream, the windowed detail keyed by kind, and the summary. Two runs
// over the same trace produce identical artifacts except for RunID and
// GeneratedAt, which live only here in Metadata.
type Artifact struct {
	Metadata Metadata                     `json:"metadata"`
	Core     []trace.Event                `json:"core"`
	Detail   map[trace.Kind][]trace.Event `json:"detail"`
	Summary  Summary                      `json:"summary"`
}

// WriteFile persists the artifact as indented JSON.
func (a *Artifact) WriteFile(path string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// Run is everything one analysis produced.
type Run struct {
	Artifact *Artifact
	Records  []*flatten.Record
	Report   *failure.Report
	Index    *joins.Index
	Scan     *trace.Result
}

// Analyzer executes the pipeline under one settings set.
type Analyzer struct {
	cfg config.Settings
	log *zap.Logger
}

func New(cfg config.Settings, log *zap.Logger) *Analyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Analyzer{cfg: cfg, log: log}
}

// AnalyzeFile runs the full pipeline over the trace at path.
func (a *Analyzer) AnalyzeFile(path string) (*Run, error) {
	scanner := trace.NewScanner(a.cfg.DetailLineWindow, a.log)
	res, err := scanner.ScanFile(path)
	if err != nil {
		return nil, err
	}
	run, err := a.analyze(path, res)
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (a *Analyzer) analyze(path string, res *trace.Result) (*Run, error) {
	if len(res.Core) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoEvents)
	}

	merged := flatten.Merge(res.Core, res.Detail)
	fl := flatten.NewFlattener(a.log)
	records, fstats, err := fl.Flatten(merged)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	idx := joins.NewIndex(merged, a.cfg.WindowCacheRounding, a.log)

	detector := failure.NewDetector(a.cfg, a.log)
	failures, dropped := detector.Detect(records, res.Stats.Matches+res.Stats.NoMatches)

	var contexts []*failure.Context
	if len(failures) > 0 {
		if err := idx.Require(trace.KindInput, trace.KindRowDecision); err != nil {
			return nil, err
		}
		synth := failure.NewSynthesizer(a.cfg, idx, records, a.log)
		for _, f := range failures {
			ctx, err := synth.Synthesize(f)
			if err != nil {
				return nil, err
			}
			contexts = append(contexts, ctx)
		}
	}
	report := failure.BuildReport(path, contexts, dropped)

	artifact := &Artifact{
		Metadata: Metadata{
			RunID:       uuid.NewString(),
			GeneratedAt: time.Now().UTC(),
			TraceFile:   path,
			Scan:        res.Stats,
			Flatten:     fstats,
		},
		Core:    res.Core,
		Detail:  detailByKind(res.Detail),
		Summary: summarize(res, records),
	}
	if res.Header != nil {
		artifact.Metadata.Case = res.Header.Case
		artifact.Metadata.ScoreFile = res.Header.ScoreFile
		artifact.Metadata.PerfFile = res.Header.PerformanceFile
	}

	a.log.Info("analysis complete",
		zap.String("trace", path),
		zap.Int("records", len(records)),
		zap.Int("failures", len(contexts)))

	return &Run{
		Artifact: artifact,
		Records:  records,
		Report:   report,
		Index:    idx,
		Scan:     res,
	}, nil
}

func detailByKind(detail []trace.Event) map[trace.Kind][]trace.Event {
	out := make(map[trace.Kind][]trace.Event)
	for _, ev := range detail {
		out[ev.Kind()] = append(out[ev.Kind()], ev)
	}
	return out
}

func summarize(res *trace.Result, records []*flatten.Record) Summary {
	sum := Summary{
		Matches:   res.Stats.Matches,
		NoMatches: res.Stats.NoMatches,
		Patterns:  flatten.AnalyzePatterns(records),
	}
	if total := sum.Matches + sum.NoMatches; total > 0 {
		sum.MatchRate = float64(sum.Matches) / float64(total)
	}

	first := true
	scored := 0
	var scoreTotal float64
	rows := make(map[int]struct{})
	for _, rec := range records {
		rows[rec.Row] = struct{}{}
		if first || rec.InputTime < sum.TimeStart {
			sum.TimeStart = rec.InputTime
		}
		if first || rec.InputTime > sum.TimeEnd {
			sum.TimeEnd = rec.InputTime
		}
		if first || rec.InputPitch < sum.PitchMin {
			sum.PitchMin = rec.InputPitch
		}
		if first || rec.InputPitch > sum.PitchMax {
			sum.PitchMax = rec.InputPitch
		}
		first = false
		if rec.Result == flatten.ResultMatch {
			if scored == 0 || rec.MatchScore < sum.ScoreMin {
				sum.ScoreMin = rec.MatchScore
			}
			if scored == 0 || rec.MatchScore > sum.ScoreMax {
				sum.ScoreMax = rec.MatchScore
			}
			scoreTotal += rec.MatchScore
			scored++
		}
	}
	if scored > 0 {
		sum.ScoreMean = scoreTotal / float64(scored)
	}
	sum.DistinctRows = len(rows)
	return sum
}

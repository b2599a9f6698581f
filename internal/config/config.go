package config

// config.go — matchtrace configuration loaded from matchtrace.yaml.
//
// Every threshold the analyzer applies is a configuration input, not a
// constant: the calibration of the original tooling (regression drop 2.0,
// low-confidence cutoff 0.0, ±1.0s evidence window, ±50-line detail window)
// is preserved as defaults so reports stay comparable, but nothing in the
// pipeline hard-codes them.

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the settings file looked up relative to the working directory.
const FileName = "matchtrace.yaml"

// Settings holds all analyzer tuning.
type Settings struct {
	// ScoreRegressionThreshold flags an adjacent-row drop in final value
	// larger than this within one column.
	ScoreRegressionThreshold float64 `yaml:"score_regression_threshold"`
	// LowConfidenceThreshold flags a match outcome whose score is below it.
	LowConfidenceThreshold float64 `yaml:"low_confidence_threshold"`
	// ContextWindowSeconds is the half-width W of the evidence join window.
	ContextWindowSeconds float64 `yaml:"context_window_seconds"`
	// LargeGapSeconds marks an inter-onset gap as a timing issue.
	LargeGapSeconds float64 `yaml:"large_gap_seconds"`
	// FailureDelaySeconds marks a long silence before a failure as an issue.
	FailureDelaySeconds float64 `yaml:"failure_delay_seconds"`
	// DetailLineWindow is the ±K line window of the second scan pass.
	DetailLineWindow int `yaml:"detail_line_window"`
	// ContextDecisions is how many decision records precede each failure
	// context.
	ContextDecisions int `yaml:"context_decisions"`
	// PrecedingMatches is how many earlier matches each context carries.
	PrecedingMatches int `yaml:"preceding_matches"`
	// WindowCacheRounding is the granularity the join cache rounds window
	// bounds to before keying.
	WindowCacheRounding float64 `yaml:"window_cache_rounding"`
}

// Default returns the calibration of the original tooling.
func Default() Settings {
	return Settings{
		ScoreRegressionThreshold: 2.0,
		LowConfidenceThreshold:   0.0,
		ContextWindowSeconds:     1.0,
		LargeGapSeconds:          1.0,
		FailureDelaySeconds:      0.5,
		DetailLineWindow:         50,
		ContextDecisions:         5,
		PrecedingMatches:         3,
		WindowCacheRounding:      0.1,
	}
}

// Load reads the settings file under root, layering it over Default.
// A missing file is not an error: defaults are returned as-is.
func Load(root string) (Settings, error) {
	s := Default()
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func (s Settings) validate() error {
	if s.ScoreRegressionThreshold <= 0 {
		return fmt.Errorf("score_regression_threshold must be positive, got %v", s.ScoreRegressionThreshold)
	}
	if s.ContextWindowSeconds <= 0 {
		return fmt.Errorf("context_window_seconds must be positive, got %v", s.ContextWindowSeconds)
	}
	if s.DetailLineWindow <= 0 {
		return fmt.Errorf("detail_line_window must be positive, got %v", s.DetailLineWindow)
	}
	if s.WindowCacheRounding <= 0 {
		return fmt.Errorf("window_cache_rounding must be positive, got %v", s.WindowCacheRounding)
	}
	return nil
}

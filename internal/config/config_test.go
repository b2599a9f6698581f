package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("expected nil error for missing file, got: %v", err)
	}
	if s != Default() {
		t.Errorf("missing file should yield defaults, got %+v", s)
	}
}

func TestLoadOverridesLayerOverDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
score_regression_threshold: 3.5
detail_line_window: 20
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.ScoreRegressionThreshold != 3.5 {
		t.Errorf("ScoreRegressionThreshold = %v, want 3.5", s.ScoreRegressionThreshold)
	}
	if s.DetailLineWindow != 20 {
		t.Errorf("DetailLineWindow = %v, want 20", s.DetailLineWindow)
	}
	// Untouched fields keep their defaults.
	if s.ContextWindowSeconds != Default().ContextWindowSeconds {
		t.Errorf("ContextWindowSeconds = %v, want default", s.ContextWindowSeconds)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(":\tbad yaml:"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoadRejectsNonPositiveThresholds(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("detail_line_window: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected validation error for negative window")
	}
}

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helpText calls the help function and returns the output as a string.
func helpText() string {
	var sb strings.Builder
	printUsage(&sb)
	return sb.String()
}

func TestHelpContainsAllCommands(t *testing.T) {
	help := helpText()
	for _, cmd := range commands {
		if !strings.Contains(help, cmd.name) {
			t.Errorf("help output missing command %q", cmd.name)
		}
		if !strings.Contains(help, cmd.short) {
			t.Errorf("help output missing short description for %q", cmd.name)
		}
	}
}

func TestLongHelpForKnownCommands(t *testing.T) {
	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			var sb strings.Builder
			printCommandHelp(&sb, cmd.name)
			if !strings.Contains(sb.String(), cmd.usage) {
				t.Errorf("long help for %q missing usage line %q", cmd.name, cmd.usage)
			}
		})
	}
}

func TestDispatchHelpFlagsAndNoArgs(t *testing.T) {
	for _, args := range [][]string{nil, {"--help"}, {"-h"}, {"help"}, {"help", "analyze"}} {
		if err := dispatch(args); err != nil {
			t.Errorf("dispatch(%v) returned error: %v", args, err)
		}
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	err := dispatch([]string{"no-such-command"})
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	if !strings.Contains(err.Error(), "unknown") {
		t.Errorf("expected 'unknown' in error, got: %v", err)
	}
}

func TestSubcommandsRequireArgs(t *testing.T) {
	for _, name := range []string{"parse", "flatten", "analyze", "inspect"} {
		t.Run(name, func(t *testing.T) {
			err := dispatch([]string{name})
			if err == nil {
				t.Errorf("dispatch(%q) with no args should return error", name)
			} else if strings.Contains(err.Error(), "unknown command") {
				t.Errorf("dispatch(%q) gave 'unknown command', expected usage error", name)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// flag parsing
// ---------------------------------------------------------------------------

func TestParseOpts(t *testing.T) {
	opts, err := parseOpts("flatten", []string{"trace.log", "-o", "out.csv", "--analyze", "--verbose"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.path != "trace.log" || opts.out != "out.csv" || !opts.analyze || !opts.verbose {
		t.Errorf("parseOpts = %+v", opts)
	}

	if _, err := parseOpts("flatten", []string{"trace.log", "-o"}); err == nil {
		t.Error("dangling -o should error")
	}
	if _, err := parseOpts("flatten", []string{"a.log", "b.log"}); err == nil {
		t.Error("two positional args should error")
	}
	if _, err := parseOpts("flatten", nil); err == nil {
		t.Error("missing trace path should error")
	}
}

// ---------------------------------------------------------------------------
// end-to-end commands
// ---------------------------------------------------------------------------

func writeTrace(t *testing.T) string {
	t.Helper()
	lines := []string{
		"INPUT|c:1|p:60|t:1.000",
		"DP|c:1|r:1|p:60|t:1.000|vr:0|hr:2|f:2|m:1|u:[60]|uc:0",
		"MATCH|r:1|p:60|t:1.000|score:2",
		"INPUT|c:2|p:61|t:1.500",
		"CELL|r:2|v:1.0|u:[]|uc:1|t:1.400",
		"TIMING|pt:1.0|ct:1.5|ioi:0.5|span:0.5|lim:0.4|pass:nil|type:ioi",
		"DP|c:2|r:2|p:61|t:1.500|vr:0.5|hr:-1|f:0.5|m:0|u:[]|uc:1",
		"NO_MATCH|p:61|t:1.500",
	}
	path := filepath.Join(t.TempDir(), "trace.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunFlattenWritesCSV(t *testing.T) {
	trace := writeTrace(t)
	out := filepath.Join(t.TempDir(), "out.csv")
	if err := dispatch([]string{"flatten", trace, "-o", out}); err != nil {
		t.Fatalf("flatten: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// Header plus two records.
	if len(lines) != 3 {
		t.Errorf("CSV has %d lines, want 3", len(lines))
	}
}

func TestRunAnalyzeWritesReport(t *testing.T) {
	trace := writeTrace(t)
	out := filepath.Join(t.TempDir(), "report.json")
	if err := dispatch([]string{"analyze", trace, "-o", out}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	rep, err := loadReport(out)
	if err != nil {
		t.Fatalf("loadReport: %v", err)
	}
	if len(rep.Contexts) != 1 {
		t.Errorf("report has %d contexts, want 1", len(rep.Contexts))
	}
	if rep.Contexts[0].Failure.Class != "unmatched" {
		t.Errorf("failure class = %q, want unmatched", rep.Contexts[0].Failure.Class)
	}
}

func TestRunParseWritesArtifact(t *testing.T) {
	trace := writeTrace(t)
	out := filepath.Join(t.TempDir(), "artifact.json")
	if err := dispatch([]string{"parse", trace, "-o", out}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if _, ok := doc["summary"]; !ok {
		t.Error("artifact missing summary section")
	}
}

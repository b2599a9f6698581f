package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"matchtrace/internal/analysis"
	"matchtrace/internal/config"
	"matchtrace/internal/flatten"
	"matchtrace/internal/logging"
	"matchtrace/internal/trace"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []command{
	{
		name:  "parse",
		short: "Scan a trace and write the analysis artifact",
		usage: "matchtrace parse <trace.log> [-o out.json] [--verbose]",
		long: `Run the two-pass scan and reassembly over a trace file and write the
JSON analysis artifact (core events, windowed detail, summary).

The artifact is written next to the trace as <trace>.analysis.json unless
-o is given.
`,
		run: runParse,
	},
	{
		name:  "flatten",
		short: "Reassemble a trace into per-cell records as CSV",
		usage: "matchtrace flatten <trace.log> [-o out.csv] [--analyze] [--verbose]",
		long: `Reassemble the trace into one wide record per (column,row) decision and
write them as CSV.

With --analyze, also print pattern statistics (result distribution, match
kinds, timing bugs, score competition) to stdout.
`,
		run: runFlatten,
	},
	{
		name:  "analyze",
		short: "Run the full failure analysis pipeline",
		usage: "matchtrace analyze <trace.log> [-o report.json] [--verbose]",
		long: `Run the full pipeline: scan, reassemble, index, detect failures and
synthesize an evidence context for each one. Writes the failure report as
JSON (default <trace>.report.json) and prints the summary and
recommendations.
`,
		run: runAnalyze,
	},
	{
		name:  "inspect",
		short: "Browse a failure report in the terminal",
		usage: "matchtrace inspect <report.json>",
		long: `Open a saved failure report in an interactive browser.

Up/down or j/k select a failure, enter opens its evidence context,
esc goes back, q quits.
`,
		run: runInspect,
	},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "matchtrace — trace analysis for the score-following engine\n\n")
	fmt.Fprintf(w, "Usage:\n  matchtrace <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'matchtrace help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "matchtrace: unknown command %q\n\nRun 'matchtrace help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(os.Stdout, args[1])
		} else {
			printUsage(os.Stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'matchtrace help' for usage.", args[0])
}

// cmdOpts are the flags shared by the file-processing commands.
type cmdOpts struct {
	path    string
	out     string
	analyze bool
	verbose bool
}

func parseOpts(name string, args []string) (cmdOpts, error) {
	var o cmdOpts
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o", "--out":
			i++
			if i >= len(args) {
				return o, fmt.Errorf("%s: -o needs a path", name)
			}
			o.out = args[i]
		case "--analyze":
			o.analyze = true
		case "--verbose", "-v":
			o.verbose = true
		default:
			if o.path != "" {
				return o, fmt.Errorf("%s: unexpected argument %q", name, args[i])
			}
			o.path = args[i]
		}
	}
	if o.path == "" {
		return o, fmt.Errorf("usage: matchtrace %s <trace.log>", name)
	}
	return o, nil
}

// ---------------------------------------------------------------------------
// parse
// ---------------------------------------------------------------------------

func runParse(args []string) error {
	opts, err := parseOpts("parse", args)
	if err != nil {
		return err
	}
	logger := logging.New(opts.verbose)
	defer logger.Sync()

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	run, err := analysis.New(cfg, logger).AnalyzeFile(opts.path)
	if err != nil {
		return err
	}
	out := opts.out
	if out == "" {
		out = opts.path + ".analysis.json"
	}
	if err := run.Artifact.WriteFile(out); err != nil {
		return err
	}
	printScanSummary(run)
	fmt.Printf("artifact → %s\n", out)
	return nil
}

// ---------------------------------------------------------------------------
// flatten
// ---------------------------------------------------------------------------

func runFlatten(args []string) error {
	opts, err := parseOpts("flatten", args)
	if err != nil {
		return err
	}
	logger := logging.New(opts.verbose)
	defer logger.Sync()

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	scanner := trace.NewScanner(cfg.DetailLineWindow, logger)
	res, err := scanner.ScanFile(opts.path)
	if err != nil {
		return err
	}
	fl := flatten.NewFlattener(logger)
	records, stats, err := fl.Flatten(flatten.Merge(res.Core, res.Detail))
	if err != nil {
		return err
	}
	out := opts.out
	if out == "" {
		out = opts.path + ".csv"
	}
	if err := flatten.WriteCSVFile(out, records); err != nil {
		return err
	}
	fmt.Printf("%d records from %d blocks (%d incomplete) → %s\n",
		len(records), stats.Blocks, stats.IncompleteBlocks, out)

	if opts.analyze {
		printPatterns(flatten.AnalyzePatterns(records))
	}
	return nil
}

func printPatterns(p flatten.PatternStats) {
	fmt.Printf("\nPattern analysis over %d records:\n", p.TotalRecords)
	fmt.Printf("  results:")
	for result, n := range p.ByResult {
		fmt.Printf(" %s=%d", result, n)
	}
	fmt.Println()
	if len(p.ByMatchKind) > 0 {
		fmt.Printf("  match kinds:")
		for kind, n := range p.ByMatchKind {
			fmt.Printf(" %s=%d", kind, n)
		}
		fmt.Println()
	}
	fmt.Printf("  timing: %d failures, %d suspected bugs\n", p.TimingFailures, p.TimingBugs)
	fmt.Printf("  score competition: %d beat top, %d below\n", p.BeatsTop, p.BelowTop)
	if p.WithOrnaments > 0 {
		fmt.Printf("  ornaments: %d records, %d unmatched\n", p.WithOrnaments, p.OrnamentMisses)
	}
}

// ---------------------------------------------------------------------------
// analyze
// ---------------------------------------------------------------------------

func runAnalyze(args []string) error {
	opts, err := parseOpts("analyze", args)
	if err != nil {
		return err
	}
	logger := logging.New(opts.verbose)
	defer logger.Sync()

	cfg, err := config.Load(".")
	if err != nil {
		return err
	}
	run, err := analysis.New(cfg, logger).AnalyzeFile(opts.path)
	if err != nil {
		return err
	}
	out := opts.out
	if out == "" {
		out = opts.path + ".report.json"
	}
	if err := run.Report.WriteFile(out); err != nil {
		return err
	}

	printScanSummary(run)
	sum := run.Report.Summary
	fmt.Printf("failures: %d", sum.TotalFailures)
	for class, n := range sum.ByClass {
		fmt.Printf("  %s=%d", class, n)
	}
	fmt.Println()
	if sum.Dropped > 0 {
		fmt.Printf("dropped (no preceding decision): %d\n", sum.Dropped)
	}
	if len(run.Report.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range run.Report.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
	fmt.Printf("\nreport → %s\n", out)
	return nil
}

func printScanSummary(run *analysis.Run) {
	stats := run.Scan.Stats
	sum := run.Artifact.Summary
	fmt.Printf("scanned %d lines: %d row decisions, %d matches, %d no-matches (%.1f%% matched)\n",
		stats.LinesScanned, stats.RowDecisions, stats.Matches, stats.NoMatches,
		sum.MatchRate*100)
	if stats.UnrecognizedLines > 0 {
		fmt.Printf("unrecognized lines: %d\n", stats.UnrecognizedLines)
	}
	if run.Scan.DetailExtracted {
		fmt.Printf("detail: %d events around %d failure lines\n",
			stats.DetailEvents, len(run.Scan.FailureLines))
	}
}

// ---------------------------------------------------------------------------
// inspect
// ---------------------------------------------------------------------------

func runInspect(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: matchtrace inspect <report.json>")
	}
	return inspectReport(args[0])
}

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

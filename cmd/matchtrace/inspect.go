package main

// inspect.go — Terminal browser for saved failure reports.

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// reportView is the loosely-typed shape inspect reads back from a report
// file. Event payloads stay raw: the browser shows counts and summaries, it
// does not re-run analysis.
type reportView struct {
	RunID           string        `json:"run_id"`
	GeneratedAt     time.Time     `json:"generated_at"`
	TraceFile       string        `json:"trace_file"`
	Contexts        []contextView `json:"contexts"`
	Summary         summaryView   `json:"summary"`
	Recommendations []string      `json:"recommendations"`
}

type summaryView struct {
	TotalFailures int            `json:"total_failures"`
	Dropped       int            `json:"dropped_no_context"`
	ByClass       map[string]int `json:"by_class"`
	TimingIssues  int            `json:"timing_issues"`
}

type contextView struct {
	Failure struct {
		Class     string  `json:"class"`
		Column    int     `json:"column"`
		Pitch     int     `json:"pitch"`
		Time      float64 `json:"time"`
		Line      int     `json:"line"`
		Score     float64 `json:"score"`
		PrevScore float64 `json:"prev_score"`
		Drop      float64 `json:"drop"`
	} `json:"failure"`
	WindowStart float64                      `json:"window_start"`
	WindowEnd   float64                      `json:"window_end"`
	Events      map[string][]json.RawMessage `json:"events"`
	EventCount  int                          `json:"event_count"`
	TimingPass  int                          `json:"timing_pass"`
	TimingFail  int                          `json:"timing_fail"`
	BeatsTop    int                          `json:"beats_top"`
	BelowTop    int                          `json:"below_top"`
	Insights    []string                     `json:"insights"`
	Timing      struct {
		MeanIOI       float64  `json:"mean_ioi"`
		MaxGap        float64  `json:"max_gap"`
		TimeToFailure float64  `json:"time_to_failure"`
		Issues        []string `json:"issues"`
	} `json:"timing"`
}

func loadReport(path string) (*reportView, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rep reportView
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &rep, nil
}

func inspectReport(path string) error {
	rep, err := loadReport(path)
	if err != nil {
		return err
	}
	if len(rep.Contexts) == 0 {
		fmt.Printf("%s: no failures in report (trace %s)\n", path, rep.TraceFile)
		return nil
	}
	m := newInspectModel(rep)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// inspectModel is a two-screen browser: failure list, then one failure's
// evidence in a scrollable viewport.
type inspectModel struct {
	report   *reportView
	cursor   int
	detail   bool
	viewport viewport.Model
	width    int
	height   int
}

func newInspectModel(rep *reportView) inspectModel {
	return inspectModel{report: rep, viewport: viewport.New(80, 24)}
}

func (m inspectModel) Init() tea.Cmd { return nil }

func (m inspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 2
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.detail {
				m.detail = false
				return m, nil
			}
			return m, tea.Quit
		case "up", "k":
			if !m.detail && m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if !m.detail && m.cursor < len(m.report.Contexts)-1 {
				m.cursor++
			}
		case "enter":
			if !m.detail {
				m.detail = true
				m.viewport.SetContent(renderContext(&m.report.Contexts[m.cursor]))
				m.viewport.GotoTop()
				return m, nil
			}
		}
	}
	if m.detail {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m inspectModel) View() string {
	if m.detail {
		return m.viewport.View() + "\n esc back · q quit"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "failure report — %s (%d failures)\n\n", m.report.TraceFile, len(m.report.Contexts))
	for i, ctx := range m.report.Contexts {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		f := ctx.Failure
		fmt.Fprintf(&b, "%s[%d] t=%7.3f  pitch %3d  %-20s  %d events\n",
			marker, i+1, f.Time, f.Pitch, f.Class, ctx.EventCount)
	}
	b.WriteString("\n")
	for _, rec := range m.report.Recommendations {
		fmt.Fprintf(&b, "  - %s\n", rec)
	}
	b.WriteString("\n enter open · j/k move · q quit")
	return b.String()
}

func renderContext(ctx *contextView) string {
	var b strings.Builder
	f := ctx.Failure
	fmt.Fprintf(&b, "%s at t=%.3f (line %d)\n", f.Class, f.Time, f.Line)
	fmt.Fprintf(&b, "column %d, pitch %d", f.Column, f.Pitch)
	if f.Class != "unmatched" {
		fmt.Fprintf(&b, ", score %.2f", f.Score)
	}
	if f.Drop > 0 {
		fmt.Fprintf(&b, " (down %.2f from %.2f)", f.Drop, f.PrevScore)
	}
	fmt.Fprintf(&b, "\nwindow [%.3f, %.3f], %d events\n\n", ctx.WindowStart, ctx.WindowEnd, ctx.EventCount)

	if len(ctx.Events) > 0 {
		b.WriteString("evidence by kind:\n")
		kinds := make([]string, 0, len(ctx.Events))
		for kind := range ctx.Events {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(&b, "  %-20s %d\n", kind, len(ctx.Events[kind]))
		}
		b.WriteString("\n")
	}

	if ctx.TimingPass+ctx.TimingFail > 0 {
		fmt.Fprintf(&b, "timing checks: %d passed, %d failed\n", ctx.TimingPass, ctx.TimingFail)
	}
	if ctx.BeatsTop+ctx.BelowTop > 0 {
		fmt.Fprintf(&b, "score competition: %d beat top, %d below\n", ctx.BeatsTop, ctx.BelowTop)
	}
	if ctx.Timing.MeanIOI > 0 {
		fmt.Fprintf(&b, "input rhythm: mean IOI %.3fs, max gap %.3fs, failure delay %.3fs\n",
			ctx.Timing.MeanIOI, ctx.Timing.MaxGap, ctx.Timing.TimeToFailure)
	}
	if len(ctx.Insights) > 0 {
		b.WriteString("\ninsights:\n")
		for _, ins := range ctx.Insights {
			fmt.Fprintf(&b, "  - %s\n", ins)
		}
	}
	return b.String()
}

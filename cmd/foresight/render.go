package main

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nvandessel/foresight/internal/backup"
	"github.com/nvandessel/foresight/internal/field"
	"github.com/nvandessel/foresight/internal/resonance"
	"github.com/nvandessel/foresight/internal/simulate"
	"github.com/nvandessel/foresight/internal/store"
)

var (
	colorAccent  = lipgloss.Color("#2CD7C7")
	colorPrimary = lipgloss.Color("#20B9B4")
	colorMuted   = lipgloss.Color("#5C7A84")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
)

var styles = struct {
	Title    lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Bar      lipgloss.Style
	Leader   lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Inactive lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(colorMuted),
	Bar:      lipgloss.NewStyle().Foreground(colorPrimary),
	Leader:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Warning:  lipgloss.NewStyle().Foreground(colorWarning),
	Error:    lipgloss.NewStyle().Foreground(colorError),
	Inactive: lipgloss.NewStyle().Foreground(colorMuted).Strikethrough(true),
}

const barWidth = 30

// bar renders p in [0,1] as a fixed-width bar.
func bar(p float64) string {
	n := int(math.Round(p * barWidth))
	n = max(0, min(barWidth, n))
	return styles.Bar.Render(strings.Repeat("█", n)) + styles.Muted.Render(strings.Repeat("░", barWidth-n))
}

func nameWidth(states []resonance.ScenarioState) int {
	w := 0
	for _, s := range states {
		w = max(w, lipgloss.Width(s.Name))
	}
	return w
}

// renderState prints the ranked distribution with bars.
func renderState(w io.Writer, st resonance.State) {
	width := nameWidth(st.Scenarios)
	for i, s := range st.Scenarios {
		name := lipgloss.NewStyle().Width(width).Render(s.Name)
		if i == 0 {
			name = styles.Leader.Render(name)
		}
		fmt.Fprintf(w, "  %s  %s %5.1f%%\n", name, bar(s.Probability), s.Percent)
		for _, h := range s.MatchedHeadlines {
			fmt.Fprintf(w, "  %s  %s\n", strings.Repeat(" ", width), styles.Muted.Render("↳ "+h))
		}
	}
	fmt.Fprintf(w, "\n  %s %s   %s %.4f bits\n",
		styles.Bold.Render("Dominant:"), st.Dominant,
		styles.Bold.Render("Entropy:"), st.Entropy)
}

// renderHistory prints one line per snapshot.
func renderHistory(w io.Writer, history []resonance.Snapshot) {
	for _, snap := range history {
		fmt.Fprintf(w, "  %s %s %s\n",
			styles.Muted.Render(fmt.Sprintf("%2d.", snap.Iteration)),
			styles.Bold.Render(snap.Realized),
			styles.Muted.Render("→ "+snap.Feedback))
	}
}

func renderFieldSummary(w io.Writer, fs simulate.FieldSummary) {
	switch fs.Status {
	case simulate.StatusNotFetched:
		fmt.Fprintln(w, styles.Muted.Render("  Field context: not fetched"))
	case field.StatusNoData:
		fmt.Fprintln(w, styles.Warning.Render("  Field context: no data"))
	default:
		fmt.Fprintf(w, "  Field context: %d headlines, crisis level %.1f, topics: %s\n",
			fs.HeadlinesCount, fs.CrisisLevel, joinOrNone(fs.HotTopics))
	}
}

func renderSimulation(w io.Writer, res *simulate.Result) {
	fmt.Fprintln(w, styles.Title.Render("Simulation"))
	fmt.Fprintf(w, "  Argument: %s\n", res.Argument)
	if res.Translated != "" {
		fmt.Fprintf(w, "  Translated: %s\n", res.Translated)
	}
	renderFieldSummary(w, res.FieldContext)
	fmt.Fprintln(w)

	fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("History (%d steps)", res.Steps)))
	renderHistory(w, res.History)
	fmt.Fprintln(w)

	fmt.Fprintln(w, styles.Title.Render("Final state"))
	renderState(w, res.FinalState)
}

func renderStep(w io.Writer, res *simulate.StepResult) {
	fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("Step %d", res.Iteration)))
	fmt.Fprintf(w, "  Argument: %s\n", res.Argument)
	if res.Translated != "" {
		fmt.Fprintf(w, "  Translated: %s\n", res.Translated)
	}
	fmt.Fprintf(w, "  Realized: %s\n", styles.Bold.Render(res.Realized))
	fmt.Fprintf(w, "  Feedback: %s\n\n", res.Feedback)
	renderState(w, res.State)
}

func renderBattle(w io.Writer, res *simulate.BattleResult) {
	fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("Battle (%d rounds)", len(res.Rounds))))
	renderSide(w, resonance.SideA, res.A)
	renderSide(w, resonance.SideB, res.B)
	renderFieldSummary(w, res.FieldContext)
	fmt.Fprintln(w)

	for _, r := range res.Rounds {
		fmt.Fprintf(w, "  %s %s %s\n",
			styles.Muted.Render(fmt.Sprintf("%2d.", r.Round)),
			styles.Bold.Render(r.Realized),
			styles.Muted.Render("→ "+r.Feedback))
	}
	fmt.Fprintln(w)

	switch res.Winner {
	case resonance.Draw:
		fmt.Fprintln(w, styles.Warning.Render("  Result: draw"))
	default:
		fmt.Fprintln(w, styles.Leader.Render("  Winner: argument "+res.Winner))
	}
	fmt.Fprintln(w)
	renderState(w, res.Final)
}

func renderSide(w io.Writer, side string, s resonance.BattleSide) {
	fmt.Fprintf(w, "  %s %s\n", styles.Bold.Render(side+":"), s.Argument)
	fmt.Fprintf(w, "     prefers %s, holding %.1f%%\n", joinOrNone(s.Preferred), s.Share*100)
}

func renderField(w io.Writer, fc *field.Context) {
	fmt.Fprintln(w, styles.Title.Render("Information field"))
	if fc.Status == field.StatusNoData {
		fmt.Fprintln(w, styles.Warning.Render("  No headlines could be fetched."))
		return
	}

	crisis := fmt.Sprintf("%.1f / 10", fc.CrisisLevel)
	if fc.CrisisLevel >= 5 {
		crisis = styles.Error.Render(crisis)
	}
	fmt.Fprintf(w, "  Crisis level: %s\n", crisis)
	fmt.Fprintf(w, "  Hot topics:   %s\n", joinOrNone(fc.HotTopics))
	fmt.Fprintf(w, "  Feeds:        %d\n\n", fc.FeedsFetched)
	for _, h := range fc.Headlines {
		fmt.Fprintf(w, "  • %s\n", h)
	}
}

func renderScenarios(w io.Writer, records []store.ScenarioRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No scenarios in the catalog.")
		return
	}
	fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("Scenarios (%d)", len(records))))
	for _, r := range records {
		name := r.Name
		if !r.IsActive {
			name = styles.Inactive.Render(name)
		} else {
			name = styles.Bold.Render(name)
		}
		tag := ""
		if r.IsDefault {
			tag = styles.Muted.Render(" [default]")
		}
		fmt.Fprintf(w, "\n  %s%s  %s\n", name, tag, styles.Muted.Render(r.ID))
		fmt.Fprintf(w, "    %s\n", r.CoreLogic)
		fmt.Fprintf(w, "    %s\n", styles.Muted.Render("keywords: "+strings.Join(r.Keywords, ", ")))
	}
}

func renderBackups(w io.Writer, dir string, backups []backup.Info) {
	if len(backups) == 0 {
		fmt.Fprintf(w, "No backups in %s\n", dir)
		return
	}
	fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("Backups (%d)", len(backups))))
	fmt.Fprintln(w, styles.Muted.Render("  "+dir))
	for _, b := range backups {
		detail := styles.Muted.Render(fmt.Sprintf("%d scenarios, %.1f KB", b.ScenarioCount, float64(b.Size)/1024))
		if !b.Valid {
			detail = styles.Error.Render("unreadable")
		}
		fmt.Fprintf(w, "  %s  %s  %s\n",
			b.CreatedAt.Local().Format("2006-01-02 15:04:05"), filepath.Base(b.Path), detail)
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

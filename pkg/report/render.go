package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/raulpineda/wirecheck/pkg/executor"
)

var (
	verdictStyles = map[Verdict]lipgloss.Style{
		VerdictBugConfirmed:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		VerdictBugAbsent:        lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		VerdictUnrelatedFailure: lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		VerdictAnomalous:        lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
	}
	dimStyle = lipgloss.NewStyle().Faint(true)
)

// Render produces the styled terminal summary: the verdict banner and a
// per-path table. Both raw outcomes are always shown so the classification
// can be audited.
func Render(res *DifferentialResult) string {
	var b strings.Builder

	style, ok := verdictStyles[res.Verdict]
	if !ok {
		style = lipgloss.NewStyle().Bold(true)
	}
	fmt.Fprintf(&b, "\n  %s  %s\n\n", style.Render(string(res.Verdict)), dimStyle.Render(res.Scenario))

	rows := [][]string{
		{"path", "status", "class", "events", "duration"},
		outcomeRow(res.InProcess),
		outcomeRow(res.Remote),
	}
	b.WriteString(renderTable(rows))

	for _, out := range []*executor.Outcome{res.InProcess, res.Remote} {
		if out != nil && out.Failure != nil {
			fmt.Fprintf(&b, "\n  %s error: %s\n", out.Path, out.Failure.Message)
		}
	}
	return b.String()
}

func outcomeRow(out *executor.Outcome) []string {
	if out == nil {
		return []string{"?", "missing", "", "", ""}
	}
	status := "success"
	class := ""
	if !out.Success {
		status = "failure"
		if out.Failure != nil {
			class = string(out.Failure.Class)
		}
	}
	return []string{
		out.Path,
		status,
		class,
		fmt.Sprintf("%d", len(out.Events)),
		fmt.Sprintf("%dms", out.DurationMs),
	}
}

// renderTable lays out rows with runewidth-aware column padding.
func renderTable(rows [][]string) string {
	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	var b strings.Builder
	for ri, row := range rows {
		b.WriteString("  ")
		for i, cell := range row {
			b.WriteString(runewidth.FillRight(cell, widths[i]+2))
		}
		b.WriteString("\n")
		if ri == 0 {
			b.WriteString("  ")
			for _, w := range widths {
				b.WriteString(strings.Repeat("-", w) + "  ")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Markdown renders the result as a markdown document, suitable for glamour
// display or for dropping into an issue report.
func Markdown(res *DifferentialResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Differential run: %s\n\n", res.Scenario)
	fmt.Fprintf(&b, "**Verdict:** `%s`\n\n", res.Verdict)
	fmt.Fprintf(&b, "| path | status | class | events | duration |\n")
	fmt.Fprintf(&b, "|------|--------|-------|--------|----------|\n")
	for _, out := range []*executor.Outcome{res.InProcess, res.Remote} {
		row := outcomeRow(out)
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", row[0], row[1], row[2], row[3], row[4])
	}
	for _, out := range []*executor.Outcome{res.InProcess, res.Remote} {
		if out != nil && out.Failure != nil {
			fmt.Fprintf(&b, "\n### %s error\n\n```\n%s\n```\n", out.Path, out.Failure.Message)
		}
	}
	return b.String()
}

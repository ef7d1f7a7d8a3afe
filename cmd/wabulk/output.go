package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/swatto/wabulk/internal/campaign"
	"github.com/swatto/wabulk/internal/store"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// statusMark is the one-character status shown in progress lines.
func statusMark(s campaign.Status) string {
	switch s {
	case campaign.StatusSent:
		return okStyle.Render("✓")
	case campaign.StatusFailed:
		return failStyle.Render("✗")
	default:
		return mutedStyle.Render("-")
	}
}

func printProgress(w io.Writer, p campaign.Progress) {
	a := p.Attempt
	line := fmt.Sprintf("[%d/%d] %s %s (%s)", p.Index, p.Total, statusMark(a.Status), a.Name, a.Phone)
	if a.Error != "" {
		line += " " + mutedStyle.Render(a.Error)
	}
	_, _ = fmt.Fprintln(w, line)
}

// printPreview shows the message the first selected contact would get.
func printPreview(w io.Writer, name, phone, body string) {
	_, _ = fmt.Fprintln(w, titleStyle.Render("Preview for "+name+" ("+phone+")"))
	_, _ = fmt.Fprintln(w, boxStyle.Render(body))
}

// printSummary prints totals and the failed list of a finished run.
func printSummary(w io.Writer, r *campaign.Report) {
	s := r.Summary()
	lines := []string{
		titleStyle.Render("Run " + r.RunID),
		fmt.Sprintf("Total:    %d", s.Total),
		okStyle.Render(fmt.Sprintf("Sent:     %d", s.Sent)),
		failStyle.Render(fmt.Sprintf("Failed:   %d", s.Failed)),
		mutedStyle.Render(fmt.Sprintf("Skipped:  %d", s.Skipped)),
		fmt.Sprintf("Success:  %.1f%%", s.SuccessRate),
	}
	if !r.FinishedAt.IsZero() && !r.StartedAt.IsZero() {
		lines = append(lines, fmt.Sprintf("Duration: %s", r.FinishedAt.Sub(r.StartedAt).Round(time.Second)))
	}
	if r.Error != "" {
		lines = append(lines, failStyle.Render("Error:    "+r.Error))
	}
	_, _ = fmt.Fprintln(w, boxStyle.Render(strings.Join(lines, "\n")))

	failed := r.Failed()
	if len(failed) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, titleStyle.Render("Failed contacts"))
	for _, a := range failed {
		_, _ = fmt.Fprintf(w, "  row %d  %s (%s): %s\n", a.Row, a.Name, a.Phone, failStyle.Render(a.Error))
	}
}

var runColumns = []struct {
	title string
	width int
}{
	{"ID", 38},
	{"STARTED", 21},
	{"TOTAL", 7},
	{"SENT", 7},
	{"FAILED", 8},
	{"SKIPPED", 9},
	{"SUCCESS", 8},
}

func cell(i int, s string) string {
	return lipgloss.NewStyle().Width(runColumns[i].width).Render(s)
}

// printRuns prints the run history as a table, newest first.
func printRuns(w io.Writer, runs []store.RunInfo) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, mutedStyle.Render("No runs yet."))
		return
	}
	header := make([]string, len(runColumns))
	for i, c := range runColumns {
		header[i] = cell(i, headerStyle.Render(c.title))
	}
	_, _ = fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Top, header...))

	for _, r := range runs {
		s := r.Summary
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			cell(0, r.ID),
			cell(1, r.StartedAt.Local().Format(time.DateTime)),
			cell(2, fmt.Sprint(s.Total)),
			cell(3, okStyle.Render(fmt.Sprint(s.Sent))),
			cell(4, failStyle.Render(fmt.Sprint(s.Failed))),
			cell(5, fmt.Sprint(s.Skipped)),
			cell(6, fmt.Sprintf("%.1f%%", s.SuccessRate)),
		)
		_, _ = fmt.Fprintln(w, row)
	}
}

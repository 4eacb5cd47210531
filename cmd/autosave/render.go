package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jmoiron/monet/pkg/autosave/difflines"
	"github.com/jmoiron/monet/pkg/autosave/versions"
	"github.com/jmoiron/monet/pkg/flash"
)

var (
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c757d"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f9fb0")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d16d7a")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Bold(true)

	diffStyles = map[difflines.Class]lipgloss.Style{
		difflines.FileHeader: lipgloss.NewStyle().Bold(true),
		difflines.HunkHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("#5f9fb0")),
		difflines.Removed:    lipgloss.NewStyle().Foreground(lipgloss.Color("#d16d7a")),
		difflines.Added:      lipgloss.NewStyle().Foreground(lipgloss.Color("#5fb06d")),
		difflines.Context:    lipgloss.NewStyle(),
		difflines.Empty:      mutedStyle.Italic(true),
	}
)

func renderDiff(w io.Writer, lines []difflines.Line) {
	for _, l := range lines {
		fmt.Fprintln(w, diffStyles[l.Class].Render(l.Text))
	}
}

func renderRows(w io.Writer, rows []versions.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, mutedStyle.Render(versions.EmptyMessage))
		return
	}
	for _, r := range rows {
		line := fmt.Sprintf("%6d  %s  %s", r.ID, r.CreatedAt.Local().Format(time.DateTime), titleStyle.Render(r.Title))
		if r.Identical {
			line += "  " + mutedStyle.Render("(same as saved)")
		}
		fmt.Fprintln(w, line)
	}
}

// notifier prints status messages on w, colored by level.
func notifier(w io.Writer) flash.Notifier {
	return flash.Func(func(msg string, level flash.Level) {
		style := noticeStyle
		if level == flash.Error {
			style = errorStyle
		}
		fmt.Fprintln(w, style.Render(msg))
	})
}

// A promptConfirmer asks on out and reads a yes or no from in.  Anything
// other than yes, including a read error, is a no.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
	yes bool
}

func (p *promptConfirmer) Confirm(prompt string) bool {
	if p.yes {
		return true
	}
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && len(line) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Package difflines breaks a unified diff into classified, display-ready lines.
package difflines

import (
	"html"
	"strings"
)

// A Class says what role a line plays in a unified diff.
type Class string

const (
	FileHeader Class = "diff-file"
	HunkHeader Class = "diff-hunk"
	Removed    Class = "diff-del"
	Added      Class = "diff-add"
	Context    Class = "diff-ctx"
	// Empty marks the placeholder shown when there is no diff at all.
	Empty Class = "diff-empty"
)

// NoDifferences is the placeholder text for an empty diff.
const NoDifferences = "No differences"

// A Line is one rendered diff line.  Text is the raw line; HTML is the same
// line escaped for embedding, with blank lines as a non-breaking space so
// they keep their height.
type Line struct {
	Class Class
	Text  string
	HTML  string
}

// Render splits diff into lines and classifies each by its leading marker.
// An empty diff renders as a single NoDifferences placeholder.
func Render(diff string) []Line {
	if len(diff) == 0 {
		return []Line{{Class: Empty, Text: NoDifferences, HTML: NoDifferences}}
	}

	// a trailing newline terminates the last line, it does not start another
	raw := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	lines := make([]Line, len(raw))
	for i, text := range raw {
		text = strings.TrimSuffix(text, "\r")
		lines[i] = Line{Class: Classify(text), Text: text, HTML: escape(text)}
	}
	return lines
}

// Classify returns the class of a single diff line.
func Classify(line string) Class {
	switch {
	case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		return FileHeader
	case strings.HasPrefix(line, "@@"):
		return HunkHeader
	case strings.HasPrefix(line, "-"):
		return Removed
	case strings.HasPrefix(line, "+"):
		return Added
	default:
		return Context
	}
}

func escape(s string) string {
	if len(s) == 0 {
		return "&nbsp;"
	}
	return html.EscapeString(s)
}

// HTML renders lines as a sequence of classed divs.
func HTML(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(`<div class="`)
		b.WriteString(string(l.Class))
		b.WriteString(`">`)
		b.WriteString(l.HTML)
		b.WriteString("</div>\n")
	}
	return b.String()
}

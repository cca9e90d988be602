package urllist

import (
	"regexp"
	"strings"
)

var schemeRe = regexp.MustCompile(`(?i)^https?://`)

// StripScheme is the stored form of a row: trimmed, without a leading
// http:// or https://.
func StripScheme(raw string) string {
	return schemeRe.ReplaceAllString(strings.TrimSpace(raw), "")
}

// Qualify is the submitted form of a stored row. The scheme is always http.
func Qualify(stored string) string {
	return "http://" + strings.TrimSpace(stored)
}

// Editor is an ordered list of URL rows. Blank rows are placeholders.
type Editor struct {
	minRows int
	rows    []string
}

func New(minRows int) *Editor {
	e := &Editor{minRows: minRows}
	e.Reset()
	return e
}

func (e *Editor) Rows() []string {
	out := make([]string, len(e.rows))
	copy(out, e.rows)
	return out
}

func (e *Editor) Len() int { return len(e.rows) }

func (e *Editor) Row(i int) string {
	if i < 0 || i >= len(e.rows) {
		return ""
	}
	return e.rows[i]
}

func (e *Editor) AddRow() int {
	e.rows = append(e.rows, "")
	return len(e.rows) - 1
}

func (e *Editor) RemoveRow(i int) {
	if i < 0 || i >= len(e.rows) {
		return
	}
	e.rows = append(e.rows[:i:i], e.rows[i+1:]...)
}

// UpdateRow stores the scheme-stripped value and returns it.
func (e *Editor) UpdateRow(i int, raw string) string {
	if i < 0 || i >= len(e.rows) {
		return ""
	}
	e.rows[i] = StripScheme(raw)
	return e.rows[i]
}

// Set replaces all rows with a single entry.
func (e *Editor) Set(raw string) {
	e.rows = []string{StripScheme(raw)}
}

// HasContent reports whether any row is non-blank.
func (e *Editor) HasContent() bool {
	for _, r := range e.rows {
		if strings.TrimSpace(r) != "" {
			return true
		}
	}
	return false
}

// Submission returns the non-blank rows requalified for transmission.
func (e *Editor) Submission() []string {
	out := make([]string, 0, len(e.rows))
	for _, r := range e.rows {
		if strings.TrimSpace(r) == "" {
			continue
		}
		out = append(out, Qualify(r))
	}
	return out
}

func (e *Editor) Reset() {
	e.rows = make([]string, e.minRows)
}

package conversation

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Log is an append-only record of entries in insertion order.
type Log struct {
	entries []Entry
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(e Entry) {
	l.entries = append(l.entries, e)
}

func (l *Log) Len() int { return len(l.entries) }

func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last returns the newest entry of the given kind.
func (l *Log) Last(kind Kind) (Entry, bool) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Kind == kind {
			return l.entries[i], true
		}
	}
	return Entry{}, false
}

// Markdown renders the log oldest-first so the newest entry is at the end.
func (l *Log) Markdown() string {
	return BuildMarkdown(l.entries)
}

func BuildMarkdown(entries []Entry) string {
	var b strings.Builder
	query := 0
	for _, e := range entries {
		switch e.Kind {
		case KindUser:
			query++
			header := "## Query " + strconv.Itoa(query)
			if !e.Time.IsZero() {
				header += " · " + e.Time.Format("15:04:05")
			}
			b.WriteString(header + "\n\n")
			if text := strings.TrimSpace(e.Text); text != "" {
				b.WriteString(text + "\n\n")
			}
			if len(e.Files) > 0 {
				b.WriteString("📎 " + strings.Join(e.Files, ", ") + "\n\n")
			}
			if len(e.URLs) > 0 {
				b.WriteString("🔗 " + strings.Join(e.URLs, ", ") + "\n\n")
			}
		case KindAssistant:
			header := "## Response"
			if !e.Time.IsZero() {
				header += " · " + e.Time.Format("15:04:05")
			}
			b.WriteString(header + "\n\n")
			b.WriteString(strings.TrimSpace(e.Text) + "\n\n")
		case KindError:
			b.WriteString("> **Error:** " + strings.TrimSpace(e.Text) + "\n\n")
		}
	}
	return strings.TrimSpace(b.String()) + "\n"
}

// ClampLongLines shortens lines longer than max for display, keeping the
// head and tail of each.
func ClampLongLines(s string, max int) string {
	if max <= 0 || len(s) == 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if len(line) <= max {
			continue
		}
		h, t := max/2, len(line)-max/2
		for h > 0 && !utf8.RuneStart(line[h]) {
			h--
		}
		for t < len(line) && !utf8.RuneStart(line[t]) {
			t++
		}
		head := line[:h]
		tail := line[t:]
		lines[i] = head + "... [line truncated " + strconv.Itoa(len(line)-max) + " chars] ..." + tail
	}
	return strings.Join(lines, "\n")
}

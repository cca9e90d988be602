package highlight

import (
	"regexp"
	"strings"
)

var ansiCSI = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

// Result is the highlighted text plus the line number of every line that
// holds at least one match.
type Result struct {
	Text      string
	Count     int
	LineIndex []int
}

// ApplyANSI wraps case-insensitive matches of query in input. Escape
// sequences are copied through untouched and a match never spans one.
func ApplyANSI(input, query string, wrap func(string) string) Result {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{Text: input}
	}
	if wrap == nil {
		wrap = func(s string) string { return s }
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(query))

	lines := strings.Split(input, "\n")
	res := Result{}
	for i, line := range lines {
		var n int
		lines[i], n = markLine(line, re, wrap)
		if n > 0 {
			res.Count += n
			res.LineIndex = append(res.LineIndex, i)
		}
	}
	res.Text = strings.Join(lines, "\n")
	return res
}

func markLine(line string, re *regexp.Regexp, wrap func(string) string) (string, int) {
	var out strings.Builder
	count := 0
	pos := 0
	mark := func(plain string) {
		count += len(re.FindAllStringIndex(plain, -1))
		out.WriteString(re.ReplaceAllStringFunc(plain, wrap))
	}
	for _, idx := range ansiCSI.FindAllStringIndex(line, -1) {
		mark(line[pos:idx[0]])
		out.WriteString(line[idx[0]:idx[1]])
		pos = idx[1]
	}
	mark(line[pos:])
	return out.String(), count
}

// Cursor walks the matched lines of a Result, wrapping at both ends.
type Cursor struct {
	lines []int
	count int
	index int
}

func NewCursor(res Result) Cursor {
	return Cursor{lines: append([]int(nil), res.LineIndex...), count: res.Count, index: -1}
}

func (c Cursor) Count() int { return c.count }

func (c Cursor) Empty() bool { return len(c.lines) == 0 }

// Position is the 1-based index of the current line, 0 before the first move.
func (c Cursor) Position() int { return c.index + 1 }

func (c Cursor) Lines() int { return len(c.lines) }

// Move steps delta matched lines and returns the line number to show.
func (c *Cursor) Move(delta int) (int, bool) {
	if len(c.lines) == 0 {
		return 0, false
	}
	n := len(c.lines)
	switch {
	case c.index < 0 && delta < 0:
		c.index = n - 1
	case c.index < 0:
		c.index = 0
	default:
		c.index = ((c.index+delta)%n + n) % n
	}
	return c.lines[c.index], true
}

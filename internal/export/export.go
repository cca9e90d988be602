package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"neuroreverse/internal/conversation"
)

// Transcript is what gets written: the page it came from, the session id in
// use and the log itself.
type Transcript struct {
	Page      string
	SessionID string
	Entries   []conversation.Entry
}

type Exporter struct {
	overrideDir string
	cwd         string
	now         func() time.Time
}

func New(overrideDir string) (*Exporter, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolve cwd: %w", err)
	}
	return &Exporter{overrideDir: strings.TrimSpace(overrideDir), cwd: cwd, now: time.Now}, nil
}

func (e *Exporter) Export(t Transcript) (string, error) {
	now := e.now().UTC()
	path := e.outputPath(t, now)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	md := BuildMarkdown(t, now)
	if err := os.WriteFile(path, []byte(md), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

func BuildMarkdown(t Transcript, now time.Time) string {
	var b strings.Builder
	b.WriteString("# NeuroReverse " + safeValue(t.Page) + " transcript\n\n")
	b.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")
	b.WriteString("```text\n")
	b.WriteString("session_id: " + safeValue(t.SessionID) + "\n")
	b.WriteString(fmt.Sprintf("entry_count: %d\n", len(t.Entries)))
	b.WriteString("```\n\n")
	body := conversation.BuildMarkdown(t.Entries)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func (e *Exporter) outputPath(t Transcript, now time.Time) string {
	name := safeFileName(t.Page) + "-" + safeFileName(t.SessionID) + "-" + now.Format("20060102T150405") + ".md"
	if e.overrideDir != "" {
		dir := e.overrideDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(e.cwd, dir)
		}
		return filepath.Join(dir, name)
	}

	root := e.cwd
	if repoRoot := findRepoRoot(e.cwd); repoRoot != "" {
		root = repoRoot
	}
	return filepath.Join(root, "docs", "neuroreverse", name)
}

func findRepoRoot(start string) string {
	if start == "" {
		return ""
	}
	path := filepath.Clean(start)
	for {
		if st, err := os.Stat(filepath.Join(path, ".git")); err == nil && st != nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return ""
		}
		path = parent
	}
}

func safeFileName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "session"
	}
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	return strings.ToLower(replacer.Replace(s))
}

func safeValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "n/a"
	}
	return s
}

package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"neuroreverse/internal/conversation"
)

var exportedAt = time.Date(2025, 4, 2, 8, 15, 0, 0, time.UTC)

func sample() Transcript {
	return Transcript{
		Page:      "AI Assistant",
		SessionID: "session_1700000000000",
		Entries: []conversation.Entry{
			conversation.UserEntry("what is inside?", []string{"teardown.pdf"}, nil, exportedAt),
			conversation.AssistantEntry("a brushless motor", exportedAt),
		},
	}
}

func TestBuildMarkdownHeaderAndBody(t *testing.T) {
	md := BuildMarkdown(sample(), exportedAt)
	for _, want := range []string{
		"# NeuroReverse AI Assistant transcript",
		"Exported: 2025-04-02T08:15:00Z",
		"session_id: session_1700000000000",
		"entry_count: 2",
		"a brushless motor",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestBuildMarkdownMissingSession(t *testing.T) {
	md := BuildMarkdown(Transcript{Page: "Bench"}, exportedAt)
	if !strings.Contains(md, "session_id: n/a") {
		t.Fatalf("expected n/a session, got:\n%s", md)
	}
}

func TestExportUsesOverrideDir(t *testing.T) {
	dir := t.TempDir()
	e := &Exporter{overrideDir: "out", cwd: dir, now: func() time.Time { return exportedAt }}
	path, err := e.Export(sample())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	want := filepath.Join(dir, "out", "ai_assistant-session_1700000000000-20250402T081500.md")
	if path != want {
		t.Fatalf("unexpected path\nwant: %s\ngot:  %s", want, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "what is inside?") {
		t.Fatalf("export missing content:\n%s", data)
	}
}

func TestExportDefaultsToRepoDocs(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatalf("mkdir .git: %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}
	e := &Exporter{cwd: nested, now: func() time.Time { return exportedAt }}
	path, err := e.Export(Transcript{Page: "Bench", SessionID: "42"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, "docs", "neuroreverse") {
		t.Fatalf("expected export under repo docs, got %s", path)
	}
}

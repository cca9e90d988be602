package ui

import (
	"neuroreverse/internal/config"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

const homeMarkdown = `# NeuroReverse

Reverse-engineer competing products with AI.

NeuroReverse reads product documents and web pages and answers questions
about how a product is built, priced and positioned.

## Pages

- **Benchmarking** compares your product files with a competitor's and
  returns an analysis.
- **Bench** is a chat that takes a question, up to four files and any number
  of product urls in one go.
- **AI Assistant** uploads files once, opens a session and then answers
  follow-up questions about them.

## Accepted files

PDF, TXT, CSV, DOCX and XLSX.
`

// staticPage renders a fixed markdown document. Sidebar entries without a
// page of their own get one with an empty body.
type staticPage struct {
	title    string
	markdown string
	keys     keyMap
	viewport viewport.Model
	width    int
}

func newHomePage(keys keyMap) *staticPage {
	return &staticPage{title: "Home", markdown: homeMarkdown, keys: keys, viewport: viewport.New(40, 10)}
}

func newPlaceholderPage(title, path string, keys keyMap) *staticPage {
	md := "# " + title + "\n\n_Nothing is available at `" + path + "` yet._\n"
	return &staticPage{title: title, markdown: md, keys: keys, viewport: viewport.New(40, 10)}
}

func (p *staticPage) Title() string { return p.title }

func (p *staticPage) Busy() bool { return false }

func (p *staticPage) Focus() tea.Cmd { return nil }

func (p *staticPage) Blur() {}

func (p *staticPage) SetSize(width, height int) {
	if width < 10 {
		width = 10
	}
	if height < 3 {
		height = 3
	}
	p.viewport.Width = width
	p.viewport.Height = height
	if p.width != width {
		p.width = width
		p.viewport.SetContent(renderStatic(p.markdown, width))
	}
}

func renderStatic(md string, width int) string {
	wrap := width - 2
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(config.DefaultGlamourStyle),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func (p *staticPage) Update(tea.Msg) tea.Cmd { return nil }

func (p *staticPage) HandleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, p.keys.Back):
		return false, nil
	case key.Matches(msg, p.keys.PageUp):
		p.viewport.HalfViewUp()
		return true, nil
	case key.Matches(msg, p.keys.PageDown):
		p.viewport.HalfViewDown()
		return true, nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return true, cmd
}

func (p *staticPage) HelpKeys() []key.Binding {
	return []key.Binding{p.keys.PageUp, p.keys.PageDown, p.keys.Back}
}

func (p *staticPage) View() string {
	if p.width == 0 {
		return p.markdown
	}
	return p.viewport.View()
}

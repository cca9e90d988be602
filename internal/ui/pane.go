package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"neuroreverse/internal/clipboard"
	"neuroreverse/internal/config"
	"neuroreverse/internal/conversation"
	"neuroreverse/internal/export"
	"neuroreverse/internal/highlight"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

const (
	maxDisplayLine = 4000
	maxRenderBytes = 500_000
)

// conversationPane shows a conversation log. It owns rendering, search,
// export and copy for whichever page embeds it.
type conversationPane struct {
	page      pageID
	title     string
	log       *conversation.Log
	sessionID func() string
	exporter  *export.Exporter
	copier    *clipboard.Copier
	keys      keyMap

	viewport    viewport.Model
	search      textinput.Model
	searching   bool
	query       string
	cursor      highlight.Cursor
	rendered    string
	rendering   bool
	renderNonce int
	emptyText   string
	status      string
}

func newConversationPane(page pageID, title string, log *conversation.Log, sessionID func() string, exp *export.Exporter, cp *clipboard.Copier, keys keyMap) *conversationPane {
	search := textinput.New()
	search.Placeholder = "Search conversation"
	search.Prompt = "/ "
	search.CharLimit = 200

	vp := viewport.New(40, 10)
	p := &conversationPane{
		page:      page,
		title:     title,
		log:       log,
		sessionID: sessionID,
		exporter:  exp,
		copier:    cp,
		keys:      keys,
		viewport:  vp,
		search:    search,
		emptyText: "_No messages yet._",
	}
	p.viewport.SetContent(p.emptyText)
	return p
}

func (p *conversationPane) SetSize(width, height int) {
	if width < 10 {
		width = 10
	}
	if height < 3 {
		height = 3
	}
	p.viewport.Width = width
	p.viewport.Height = height
	p.search.Width = width - 4
}

// Refresh shows the raw markdown right away, scrolled to the bottom, and
// starts a glamour render that replaces it when done.
func (p *conversationPane) Refresh() tea.Cmd {
	if p.log.Len() == 0 {
		p.rendered = p.emptyText
		p.apply(true)
		return nil
	}
	md := p.log.Markdown()
	p.rendered = conversation.ClampLongLines(md, maxDisplayLine)
	p.apply(true)

	p.rendering = true
	p.renderNonce++
	wrap := p.viewport.Width - 2
	if wrap < 20 {
		wrap = 20
	}
	return renderMarkdownCmd(p.page, md, wrap, p.renderNonce)
}

func renderMarkdownCmd(page pageID, md string, wrap, nonce int) tea.Cmd {
	return func() tea.Msg {
		md = conversation.ClampLongLines(md, maxDisplayLine)
		if len(md) > maxRenderBytes {
			return renderMsg{page: page, rendered: md, nonce: nonce}
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return renderMsg{page: page, rendered: md, nonce: nonce, err: err}
		}
		out, err := r.Render(md)
		if err != nil {
			return renderMsg{page: page, rendered: md, nonce: nonce, err: err}
		}
		return renderMsg{page: page, rendered: out, nonce: nonce}
	}
}

func (p *conversationPane) apply(bottom bool) {
	content := p.rendered
	if strings.TrimSpace(p.query) != "" {
		res := highlight.ApplyANSI(p.rendered, p.query, func(s string) string {
			return searchMatchStyle.Render(s)
		})
		content = res.Text
		p.cursor = highlight.NewCursor(res)
	} else {
		p.cursor = highlight.Cursor{}
	}
	p.viewport.SetContent(content)
	if bottom {
		p.viewport.GotoBottom()
	}
}

// Update handles the pane's own messages. It reports whether msg was one.
func (p *conversationPane) Update(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case renderMsg:
		if msg.page != p.page {
			return false, nil
		}
		if msg.nonce != p.renderNonce {
			return true, nil
		}
		p.rendering = false
		p.rendered = msg.rendered
		p.apply(true)
		return true, nil
	case exportMsg:
		if msg.page != p.page {
			return false, nil
		}
		if msg.err != nil {
			p.status = "export failed: " + msg.err.Error()
		} else {
			p.status = "exported " + msg.path
		}
		return true, nil
	case copyMsg:
		if msg.page != p.page {
			return false, nil
		}
		switch {
		case errors.Is(msg.err, clipboard.ErrNothingToCopy):
			p.status = "no reply to copy yet"
		case msg.err != nil:
			p.status = "copy failed: " + msg.err.Error()
		default:
			p.status = "copied last reply"
		}
		return true, nil
	}
	return false, nil
}

// HandleKey consumes search, scroll, export and copy keys.
func (p *conversationPane) HandleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if p.searching {
		switch msg.String() {
		case "enter":
			p.searching = false
			p.search.Blur()
			p.query = strings.TrimSpace(p.search.Value())
			p.apply(false)
			p.jump(1)
			return true, nil
		case "esc":
			p.searching = false
			p.search.Blur()
			p.search.SetValue(p.query)
			return true, nil
		}
		var cmd tea.Cmd
		p.search, cmd = p.search.Update(msg)
		return true, cmd
	}

	switch {
	case key.Matches(msg, p.keys.Search):
		p.searching = true
		p.search.SetValue(p.query)
		p.search.CursorEnd()
		return true, p.search.Focus()
	case key.Matches(msg, p.keys.NextMatch):
		p.jump(1)
		return true, nil
	case key.Matches(msg, p.keys.PrevMatch):
		p.jump(-1)
		return true, nil
	case key.Matches(msg, p.keys.PageUp):
		p.viewport.HalfViewUp()
		return true, nil
	case key.Matches(msg, p.keys.PageDown):
		p.viewport.HalfViewDown()
		return true, nil
	case key.Matches(msg, p.keys.Export):
		return true, p.exportCmd()
	case key.Matches(msg, p.keys.Copy):
		return true, p.copyCmd()
	}
	return false, nil
}

func (p *conversationPane) jump(delta int) {
	if p.query == "" {
		return
	}
	line, ok := p.cursor.Move(delta)
	if !ok {
		p.status = "No search matches in conversation"
		return
	}
	p.viewport.SetYOffset(p.clampOffset(line))
	p.status = fmt.Sprintf("Match %d/%d", p.cursor.Position(), p.cursor.Lines())
}

func (p *conversationPane) clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	maxOffset := p.viewport.TotalLineCount() - p.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if offset > maxOffset {
		return maxOffset
	}
	return offset
}

func (p *conversationPane) exportCmd() tea.Cmd {
	if p.exporter == nil {
		p.status = "export unavailable"
		return nil
	}
	t := export.Transcript{
		Page:      p.title,
		SessionID: p.sessionID(),
		Entries:   p.log.Entries(),
	}
	exp := p.exporter
	page := p.page
	p.status = "exporting..."
	return func() tea.Msg {
		path, err := exp.Export(t)
		return exportMsg{page: page, path: path, err: err}
	}
}

func (p *conversationPane) copyCmd() tea.Cmd {
	if p.copier == nil {
		p.status = "clipboard unavailable"
		return nil
	}
	reply, ok := p.log.Last(conversation.KindAssistant)
	text := ""
	if ok {
		text = reply.Text
	}
	cp := p.copier
	page := p.page
	return func() tea.Msg {
		return copyMsg{page: page, err: cp.Copy(context.Background(), text)}
	}
}

func (p *conversationPane) Searching() bool { return p.searching }

// Status is the one-line summary shown under the pane.
func (p *conversationPane) Status() string {
	var parts []string
	if p.query != "" {
		if n := p.cursor.Count(); n > 0 {
			parts = append(parts, fmt.Sprintf("[search %q: %d]", p.query, n))
		} else {
			parts = append(parts, fmt.Sprintf("[search %q: 0]", p.query))
		}
	}
	if p.rendering {
		parts = append(parts, "[rendering]")
	}
	if s := strings.TrimSpace(p.status); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "  ")
}

func (p *conversationPane) View() string {
	return p.viewport.View()
}

// Footer is the search prompt while searching, the status line otherwise.
func (p *conversationPane) Footer() string {
	if p.searching {
		return p.search.View()
	}
	return dimStyle.Render(p.Status())
}

package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"neuroreverse/internal/clipboard"
	"neuroreverse/internal/export"
	"neuroreverse/internal/upload"
	"neuroreverse/internal/urllist"
	"neuroreverse/internal/workflow"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const (
	thinkingText = "AI is thinking..."
	holdOnText   = "Please hold on... We are processing your request and uploading files."
	chooseFiles  = "Choose files..."
)

const benchGuide = `How to use Bench:
  1. Type a question, attach up to 4 files (ctrl+o) or add product URLs (ctrl+u).
  2. Press enter to send everything in one request.
  3. Replies appear above; ctrl+f searches, ctrl+e exports, ctrl+y copies.`

const (
	focusMessage = iota
	focusPicker
	focusURL
)

// chatPage is a conversation page. The combined variant sends message,
// attachments and urls together; the session variants upload first and then
// query against the initialized session.
type chatPage struct {
	id      pageID
	title   string
	keys    keyMap
	notices *noticeQueue

	session *workflow.Session
	files   *upload.Field
	urls    *urllist.Editor
	pane    *conversationPane

	message  textinput.Model
	picker   textinput.Model
	urlRows  []textinput.Model
	spinner  spinner.Model
	focus    int
	selected int

	showGuide bool
	showURL   bool

	width  int
	height int
}

func newChatPage(id pageID, title string, session *workflow.Session, notices *noticeQueue, exp *export.Exporter, cp *clipboard.Copier, keys keyMap) *chatPage {
	combined := session.Variant() == workflow.VariantCombined

	message := textinput.New()
	message.Prompt = "> "
	message.CharLimit = 4000
	if combined {
		message.Placeholder = "Ask about a product, attach files or add urls"
	} else {
		message.Placeholder = "Enter your query"
	}

	picker := textinput.New()
	picker.Prompt = "📎 "
	picker.Placeholder = "path/to/file.pdf, docs/*.csv"
	picker.CharLimit = 1024

	sp := spinner.New()
	sp.Spinner = spinner.Points

	minRows := 0
	maxFiles := 0
	if combined {
		minRows = 1
		maxFiles = upload.MaxFiles
	}

	p := &chatPage{
		id:        id,
		title:     title,
		keys:      keys,
		notices:   notices,
		session:   session,
		files:     upload.NewField(maxFiles),
		urls:      urllist.New(minRows),
		message:   message,
		picker:    picker,
		spinner:   sp,
		showGuide: combined,
	}
	p.pane = newConversationPane(id, title, session.Log(), session.SessionID, exp, cp, keys)
	p.syncURLRows()
	return p
}

func (p *chatPage) combined() bool {
	return p.session.Variant() == workflow.VariantCombined
}

func (p *chatPage) Title() string { return p.title }

func (p *chatPage) Busy() bool { return p.session.Busy() }

func (p *chatPage) Focus() tea.Cmd {
	return p.setFocus(p.focus)
}

func (p *chatPage) Blur() {
	p.message.Blur()
	p.picker.Blur()
	for i := range p.urlRows {
		p.urlRows[i].Blur()
	}
}

func (p *chatPage) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.layout()
}

func (p *chatPage) layout() {
	w := p.width
	if w < 20 {
		w = 20
	}
	p.message.Width = w - 4
	p.picker.Width = w - 6
	for i := range p.urlRows {
		p.urlRows[i].Width = w - 8
	}
	p.pane.SetSize(w, p.height-p.chromeHeight())
}

// chromeHeight counts the lines drawn around the conversation pane.
func (p *chatPage) chromeHeight() int {
	// header, pane footer, activity line, attachments, picker and message
	n := 6
	if p.showGuide {
		n += lipgloss.Height(benchGuide) + 1
	}
	if p.combined() || p.showURL {
		n += len(p.urlRows)
	}
	return n
}

// syncURLRows rebuilds the url inputs from the editor so the rows on screen
// always show the stored, scheme-stripped values.
func (p *chatPage) syncURLRows() {
	rows := p.urls.Rows()
	inputs := make([]textinput.Model, len(rows))
	for i, v := range rows {
		var in textinput.Model
		if i < len(p.urlRows) {
			in = p.urlRows[i]
		} else {
			in = textinput.New()
			in.Placeholder = "example.com/product"
			in.CharLimit = 2048
		}
		in.Prompt = "🔗 http://"
		if in.Value() != v {
			in.SetValue(v)
			in.CursorEnd()
		}
		inputs[i] = in
	}
	p.urlRows = inputs
	p.layout()
}

func (p *chatPage) focusOrder() []int {
	order := []int{focusMessage}
	if p.combined() || p.showURL {
		for i := range p.urlRows {
			order = append(order, focusURL+i)
		}
	}
	return append(order, focusPicker)
}

func (p *chatPage) setFocus(target int) tea.Cmd {
	order := p.focusOrder()
	valid := false
	for _, f := range order {
		if f == target {
			valid = true
			break
		}
	}
	if !valid {
		target = focusMessage
	}
	p.Blur()
	p.focus = target
	switch {
	case target == focusMessage:
		return p.message.Focus()
	case target == focusPicker:
		return p.picker.Focus()
	default:
		return p.urlRows[target-focusURL].Focus()
	}
}

func (p *chatPage) cycle(delta int) tea.Cmd {
	order := p.focusOrder()
	pos := 0
	for i, f := range order {
		if f == p.focus {
			pos = i
			break
		}
	}
	pos = (pos + delta + len(order)) % len(order)
	return p.setFocus(order[pos])
}

func (p *chatPage) Update(msg tea.Msg) tea.Cmd {
	if ok, cmd := p.pane.Update(msg); ok {
		return cmd
	}
	switch msg := msg.(type) {
	case chatResultMsg:
		if msg.page != p.id {
			return nil
		}
		p.session.Complete(msg.res)
		return p.pane.Refresh()
	case uploadDoneMsg:
		if msg.page != p.id {
			return nil
		}
		initReq, err := p.session.CompleteUpload(msg.res)
		if err != nil {
			p.notices.Push(workflow.UploadFailedNotice)
			return nil
		}
		p.notices.Push(workflow.UploadSucceededNotice)
		return p.initCmd(initReq)
	case initDoneMsg:
		if msg.page != p.id {
			return nil
		}
		if err := p.session.CompleteInit(msg.res); err != nil {
			p.notices.Push(workflow.UploadFailedNotice)
			return nil
		}
		p.notices.Push(workflow.SessionReadyNotice)
		return nil
	case spinner.TickMsg:
		if !p.session.Busy() {
			return nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return cmd
	}
	return nil
}

// HandleKey reports false only for keys the shell should handle.
func (p *chatPage) HandleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	if ok, cmd := p.pane.HandleKey(msg); ok {
		return true, cmd
	}

	switch {
	case key.Matches(msg, p.keys.Back):
		return false, nil
	case key.Matches(msg, p.keys.NextField):
		return true, p.cycle(1)
	case key.Matches(msg, p.keys.PrevField):
		return true, p.cycle(-1)
	case key.Matches(msg, p.keys.Attach):
		return true, p.setFocus(focusPicker)
	case key.Matches(msg, p.keys.AddURL) && p.combined():
		i := p.urls.AddRow()
		p.syncURLRows()
		return true, p.setFocus(focusURL + i)
	case key.Matches(msg, p.keys.ToggleURL) && !p.combined():
		return true, p.toggleURL()
	case key.Matches(msg, p.keys.Remove):
		return true, p.remove()
	case p.focus == focusPicker && p.combined() && key.Matches(msg, p.keys.ChipPrev):
		p.moveSelection(-1)
		return true, nil
	case p.focus == focusPicker && p.combined() && key.Matches(msg, p.keys.ChipNext):
		p.moveSelection(1)
		return true, nil
	case key.Matches(msg, p.keys.Submit):
		if p.focus == focusPicker {
			return true, p.attach()
		}
		return true, p.submit()
	}
	return true, p.updateFocused(msg)
}

func (p *chatPage) updateFocused(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case p.focus == focusMessage:
		p.message, cmd = p.message.Update(msg)
	case p.focus == focusPicker:
		p.picker, cmd = p.picker.Update(msg)
		p.files.SetPicker(p.picker.Value())
	default:
		i := p.focus - focusURL
		if i < 0 || i >= len(p.urlRows) {
			return nil
		}
		before := p.urlRows[i].Value()
		p.urlRows[i], cmd = p.urlRows[i].Update(msg)
		after := p.urlRows[i].Value()
		if after == before {
			return cmd
		}
		var stored string
		if p.combined() {
			stored = p.urls.UpdateRow(i, after)
		} else {
			p.urls.Set(after)
			stored = p.urls.Row(0)
		}
		if stored != after {
			p.urlRows[i].SetValue(stored)
			p.urlRows[i].CursorEnd()
		}
	}
	return cmd
}

func (p *chatPage) toggleURL() tea.Cmd {
	p.showURL = !p.showURL
	if p.showURL && p.urls.Len() == 0 {
		p.urls.AddRow()
	}
	p.syncURLRows()
	if p.showURL {
		return p.setFocus(focusURL)
	}
	return p.setFocus(focusPicker)
}

func (p *chatPage) remove() tea.Cmd {
	switch {
	case p.focus >= focusURL && p.combined():
		p.urls.RemoveRow(p.focus - focusURL)
		p.syncURLRows()
		if p.focus-focusURL >= len(p.urlRows) {
			return p.setFocus(focusURL + len(p.urlRows) - 1)
		}
		return p.setFocus(p.focus)
	case p.focus == focusPicker && p.files.Len() > 0:
		p.files.Remove(p.selected)
		if p.selected >= p.files.Len() {
			p.selected = p.files.Len() - 1
		}
		if p.selected < 0 {
			p.selected = 0
		}
		p.layout()
	}
	return nil
}

func (p *chatPage) moveSelection(delta int) {
	n := p.files.Len()
	if n == 0 {
		p.selected = 0
		return
	}
	p.selected = (p.selected + delta + n) % n
}

// attach resolves the picker line into files. The combined variant collects
// them for the next submission; the session variants upload right away.
func (p *chatPage) attach() tea.Cmd {
	files, err := upload.OpenAll(p.picker.Value())
	if err != nil {
		p.notices.Push(err.Error())
		return nil
	}
	if len(files) == 0 {
		return nil
	}

	if p.combined() {
		if _, err := p.files.AddFiles(files); err != nil {
			p.notices.Push(err.Error())
			return nil
		}
		p.picker.SetValue("")
		p.files.SetPicker("")
		p.layout()
		return nil
	}

	req, err := p.session.BeginUpload(files, p.urls.Submission())
	if err != nil {
		if !errors.Is(err, workflow.ErrBusy) && !errors.Is(err, workflow.ErrNoFiles) {
			p.notices.Push(err.Error())
		}
		return nil
	}
	p.picker.SetValue("")
	p.files.SetPicker("")
	return tea.Batch(p.spinner.Tick, p.uploadCmd(req))
}

func (p *chatPage) submit() tea.Cmd {
	in := workflow.Input{Message: p.message.Value()}
	if p.combined() {
		in.Files = p.files.Files()
		in.URLs = p.urls.Submission()
	}

	req, err := p.session.Begin(in)
	switch {
	case err == nil:
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrEmptySubmission):
		return nil
	default:
		p.notices.Push(err.Error())
		return nil
	}

	p.message.SetValue("")
	var focusCmd tea.Cmd
	if p.combined() {
		p.files.Clear()
		p.picker.SetValue("")
		p.selected = 0
		p.urls.Reset()
		p.showGuide = false
		p.syncURLRows()
		if p.focus != focusMessage {
			focusCmd = p.setFocus(focusMessage)
		}
	}
	p.layout()
	return tea.Batch(focusCmd, p.pane.Refresh(), p.spinner.Tick, p.queryCmd(req))
}

func (p *chatPage) queryCmd(req *workflow.Request) tea.Cmd {
	s, id := p.session, p.id
	return func() tea.Msg {
		return chatResultMsg{page: id, res: s.Execute(context.Background(), req)}
	}
}

func (p *chatPage) uploadCmd(req *workflow.UploadRequest) tea.Cmd {
	s, id := p.session, p.id
	return func() tea.Msg {
		return uploadDoneMsg{page: id, res: s.ExecuteUpload(context.Background(), req)}
	}
}

func (p *chatPage) initCmd(req *workflow.InitRequest) tea.Cmd {
	s, id := p.session, p.id
	return func() tea.Msg {
		return initDoneMsg{page: id, res: s.ExecuteInit(context.Background(), req)}
	}
}

func (p *chatPage) HelpKeys() []key.Binding {
	if p.pane.Searching() {
		return []key.Binding{p.keys.Submit, p.keys.Back}
	}
	keys := []key.Binding{p.keys.Submit, p.keys.NextField, p.keys.Attach}
	if p.combined() {
		keys = append(keys, p.keys.AddURL, p.keys.Remove)
	} else {
		keys = append(keys, p.keys.ToggleURL)
	}
	return append(keys, p.keys.Search, p.keys.Export, p.keys.Copy, p.keys.PageUp, p.keys.Back)
}

func (p *chatPage) header() string {
	id := p.session.SessionID()
	if id == "" {
		id = "none"
	}
	line := fmt.Sprintf("%s  session=%s  state=%s", p.title, id, p.session.State())
	return labelStyle.Render(ansi.Truncate(line, p.width, "…"))
}

func (p *chatPage) activity() string {
	if !p.session.Busy() {
		return ""
	}
	text := thinkingText
	switch p.session.State() {
	case workflow.StateUploading, workflow.StateInitializing:
		text = holdOnText
	}
	return thinkingStyle.Render(ansi.Truncate(p.spinner.View()+" "+text, p.width, "…"))
}

func (p *chatPage) attachments() string {
	if !p.combined() {
		names := make([]string, 0)
		for _, f := range p.session.Uploaded() {
			names = append(names, f.Name)
		}
		label := chooseFiles
		if len(names) > 0 {
			label = strings.Join(names, ", ")
		}
		return dimStyle.Render(ansi.Truncate("files: "+label, p.width, "…"))
	}
	if p.files.Len() == 0 {
		return dimStyle.Render(fmt.Sprintf("no files attached (0/%d)", p.files.Max()))
	}
	chips := make([]string, 0, p.files.Len())
	for i, name := range p.files.Names() {
		style := chipStyle
		if p.focus == focusPicker && i == p.selected {
			style = chipSelectedStyle
		}
		chips = append(chips, style.Render(ansi.Truncate(name, 24, "…")))
	}
	line := strings.Join(chips, " ") + dimStyle.Render(fmt.Sprintf("  (%d/%d)", p.files.Len(), p.files.Max()))
	return ansi.Truncate(line, p.width, "…")
}

func (p *chatPage) View() string {
	parts := []string{p.header()}
	if p.showGuide {
		parts = append(parts, dimStyle.Render(benchGuide), "")
	}
	parts = append(parts, p.pane.View(), p.pane.Footer(), p.activity(), p.attachments())
	if p.combined() || p.showURL {
		for i, row := range p.urlRows {
			parts = append(parts, fieldStyle(p.focus == focusURL+i).Render(row.View()))
		}
	}
	parts = append(parts,
		fieldStyle(p.focus == focusPicker).Render(p.picker.View()),
		fieldStyle(p.focus == focusMessage).Render(p.message.View()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

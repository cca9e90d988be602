package ui

import (
	"context"
	"errors"
	"strings"

	"neuroreverse/internal/upload"
	"neuroreverse/internal/workflow"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const (
	focusUserFiles = iota
	focusCompetitorFiles
	focusAnalyze
)

const analyzingText = "Analyzing..."

type benchmarkPage struct {
	id      pageID
	keys    keyMap
	notices *noticeQueue
	flow    *workflow.Benchmark

	pickers [2]textinput.Model
	focus   int
	spinner spinner.Model
	result  viewport.Model
	nonce   int
	width   int
	height  int
}

func newBenchmarkPage(id pageID, flow *workflow.Benchmark, notices *noticeQueue, keys keyMap) *benchmarkPage {
	var pickers [2]textinput.Model
	for i, prompt := range []string{"Your product: ", "Competitor:   "} {
		in := textinput.New()
		in.Prompt = prompt
		in.Placeholder = chooseFiles
		in.CharLimit = 1024
		pickers[i] = in
	}
	sp := spinner.New()
	sp.Spinner = spinner.Points

	p := &benchmarkPage{
		id:      id,
		keys:    keys,
		notices: notices,
		flow:    flow,
		pickers: pickers,
		spinner: sp,
		result:  viewport.New(40, 10),
	}
	p.result.SetContent(dimStyle.Render("Select files for either side and run the analysis."))
	return p
}

func (p *benchmarkPage) Title() string { return "Benchmarking" }

func (p *benchmarkPage) Busy() bool { return p.flow.Busy() }

func (p *benchmarkPage) Focus() tea.Cmd { return p.setFocus(p.focus) }

func (p *benchmarkPage) Blur() {
	for i := range p.pickers {
		p.pickers[i].Blur()
	}
}

func (p *benchmarkPage) setFocus(target int) tea.Cmd {
	p.Blur()
	p.focus = target
	if target == focusAnalyze {
		return nil
	}
	return p.pickers[target].Focus()
}

func (p *benchmarkPage) SetSize(width, height int) {
	p.width = width
	p.height = height
	for i := range p.pickers {
		p.pickers[i].Width = width - 18
	}
	p.result.Width = width
	// header, two pickers with their file lines, button, blank, status
	p.result.Height = max(height-8, 3)
}

func (p *benchmarkPage) field(i int) *upload.Field {
	if i == focusCompetitorFiles {
		return p.flow.Competitor
	}
	return p.flow.User
}

func (p *benchmarkPage) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case benchmarkDoneMsg:
		if msg.page != p.id {
			return nil
		}
		if err := p.flow.Complete(msg.res); err != nil {
			p.notices.Push(workflow.AnalysisFailedNotice)
			p.result.SetContent(dimStyle.Render("No analysis available."))
			return nil
		}
		p.result.SetContent(p.flow.Result())
		p.nonce++
		return renderMarkdownCmd(p.id, p.flow.Result(), max(p.result.Width-2, 20), p.nonce)
	case renderMsg:
		if msg.page != p.id || msg.nonce != p.nonce {
			return nil
		}
		p.result.SetContent(msg.rendered)
		p.result.GotoTop()
		return nil
	case spinner.TickMsg:
		if !p.flow.Busy() {
			return nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (p *benchmarkPage) HandleKey(msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, p.keys.Back):
		return false, nil
	case key.Matches(msg, p.keys.NextField):
		return true, p.setFocus((p.focus + 1) % 3)
	case key.Matches(msg, p.keys.PrevField):
		return true, p.setFocus((p.focus + 2) % 3)
	case key.Matches(msg, p.keys.Analyze):
		return true, p.analyze()
	case key.Matches(msg, p.keys.PageUp):
		p.result.HalfViewUp()
		return true, nil
	case key.Matches(msg, p.keys.PageDown):
		p.result.HalfViewDown()
		return true, nil
	case key.Matches(msg, p.keys.Submit):
		if p.focus == focusAnalyze {
			return true, p.analyze()
		}
		p.choose(p.focus)
		return true, nil
	}
	if p.focus == focusAnalyze {
		return true, nil
	}
	var cmd tea.Cmd
	p.pickers[p.focus], cmd = p.pickers[p.focus].Update(msg)
	return true, cmd
}

// choose replaces one side's selection with the allowed files on its picker
// line.
func (p *benchmarkPage) choose(side int) {
	files, err := upload.OpenAll(p.pickers[side].Value())
	if err != nil {
		p.notices.Push(err.Error())
		return
	}
	if len(files) == 0 {
		return
	}
	if _, err := p.field(side).Replace(files); err != nil {
		p.notices.Push(err.Error())
	}
	p.pickers[side].SetValue("")
}

func (p *benchmarkPage) analyze() tea.Cmd {
	req, err := p.flow.Begin()
	if err != nil {
		if !errors.Is(err, workflow.ErrBusy) {
			p.notices.Push(err.Error())
		}
		return nil
	}
	p.result.SetContent("")
	flow, id := p.flow, p.id
	return tea.Batch(p.spinner.Tick, func() tea.Msg {
		return benchmarkDoneMsg{page: id, res: flow.Execute(context.Background(), req)}
	})
}

func (p *benchmarkPage) HelpKeys() []key.Binding {
	return []key.Binding{p.keys.Submit, p.keys.NextField, p.keys.Analyze, p.keys.PageUp, p.keys.Back}
}

func (p *benchmarkPage) selection(side int) string {
	names := p.field(side).Names()
	label := chooseFiles
	if len(names) > 0 {
		label = strings.Join(names, ", ")
	}
	return dimStyle.Render(ansi.Truncate("  "+label, p.width, "…"))
}

func (p *benchmarkPage) View() string {
	button := buttonStyle
	label := "Analyze"
	if p.flow.Busy() {
		button = buttonDisabledStyle
		label = p.spinner.View() + " " + analyzingText
	} else if p.focus == focusAnalyze {
		button = button.Underline(true)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		labelStyle.Render("Benchmarking"),
		fieldStyle(p.focus == focusUserFiles).Render(p.pickers[0].View()),
		p.selection(focusUserFiles),
		fieldStyle(p.focus == focusCompetitorFiles).Render(p.pickers[1].View()),
		p.selection(focusCompetitorFiles),
		button.Render(label),
		"",
		p.result.View(),
	)
}

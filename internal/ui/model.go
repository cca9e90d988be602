package ui

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"neuroreverse/internal/clipboard"
	"neuroreverse/internal/config"
	"neuroreverse/internal/conversation"
	"neuroreverse/internal/export"
	"neuroreverse/internal/workflow"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

type page interface {
	Title() string
	Busy() bool
	Focus() tea.Cmd
	Blur()
	SetSize(width, height int)
	Update(msg tea.Msg) tea.Cmd
	// HandleKey returns false for keys the shell should act on instead.
	HandleKey(msg tea.KeyMsg) (bool, tea.Cmd)
	HelpKeys() []key.Binding
	View() string
}

type route struct {
	path    string
	aliases []string
	title   string
}

var routes = []route{
	{path: "/", title: "Home"},
	{path: "/benchmarking", title: "Benchmarking"},
	{path: "/bench", title: "Bench"},
	{path: "/patent-risk-analysis", title: "Patent Analysis"},
	{path: "/market-trends", title: "Market Trends"},
	{path: "/ai-insights", title: "AI Insights"},
	{path: "/ai-assistant", aliases: []string{"/chat"}, title: "AI Assistant"},
}

// Resolve returns the sidebar position of the route serving path.
func Resolve(path string) (int, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for i, r := range routes {
		if r.path == path {
			return i, true
		}
		for _, a := range r.aliases {
			if a == path {
				return i, true
			}
		}
	}
	return 0, false
}

type routeItem struct {
	route
}

func (i routeItem) Title() string       { return i.title }
func (i routeItem) Description() string { return i.path }
func (i routeItem) FilterValue() string { return i.title }

// Deps are the collaborators the pages are built from.
type Deps struct {
	Chat      workflow.ChatService
	Benchmark workflow.BenchmarkService
	Variant   workflow.Variant
	Exporter  *export.Exporter
	Copier    *clipboard.Copier
	Logger    *slog.Logger
	Timeout   time.Duration
}

type Model struct {
	keys    keyMap
	help    help.Model
	sidebar list.Model
	notices *noticeQueue
	pages   map[string]page

	current      string
	focusSidebar bool
	width        int
	height       int
	logger       *slog.Logger
}

func NewModel(cfg config.AppConfig, deps Deps) Model {
	keys := defaultKeys()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notices := &noticeQueue{}

	items := make([]list.Item, 0, len(routes))
	for _, r := range routes {
		items = append(items, routeItem{route: r})
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	l := list.New(items, delegate, 0, 0)
	l.Title = "NeuroReverse"
	l.Styles.Title = brandStyle
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowPagination(false)
	l.DisableQuitKeybindings()

	opts := []workflow.Option{workflow.WithLogger(logger), workflow.WithTimeout(deps.Timeout)}
	bench := workflow.NewSession(workflow.VariantCombined, deps.Chat, conversation.NewLog(), opts...)
	assistant := workflow.NewSession(deps.Variant, deps.Chat, conversation.NewLog(), opts...)
	benchmark := workflow.NewBenchmark(deps.Benchmark, logger, deps.Timeout)

	pages := map[string]page{
		"/":             newHomePage(keys),
		"/benchmarking": newBenchmarkPage("/benchmarking", benchmark, notices, keys),
		"/bench":        newChatPage("/bench", "Bench", bench, notices, deps.Exporter, deps.Copier, keys),
		"/ai-assistant": newChatPage("/ai-assistant", "AI Assistant", assistant, notices, deps.Exporter, deps.Copier, keys),
	}
	for _, r := range routes {
		if _, ok := pages[r.path]; !ok {
			pages[r.path] = newPlaceholderPage(r.title, r.path, keys)
		}
	}

	start, ok := Resolve(cfg.StartPage)
	if !ok {
		logger.Warn("unknown start page", "page", cfg.StartPage)
	}
	l.Select(start)

	return Model{
		keys:         keys,
		help:         help.New(),
		sidebar:      l,
		notices:      notices,
		pages:        pages,
		current:      routes[start].path,
		focusSidebar: start == 0,
		logger:       logger,
	}
}

func (m Model) Init() tea.Cmd {
	if m.focusSidebar {
		return nil
	}
	return m.page().Focus()
}

func (m Model) page() page {
	return m.pages[m.current]
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.ForceQuit) {
			return m, tea.Quit
		}
		if _, ok := m.notices.Current(); ok {
			if key.Matches(msg, m.keys.Dismiss) {
				m.notices.Dismiss()
			}
			return m, nil
		}
		if m.focusSidebar {
			return m.updateSidebar(msg)
		}
		handled, cmd := m.page().HandleKey(msg)
		if !handled && key.Matches(msg, m.keys.Back) {
			m.page().Blur()
			m.focusSidebar = true
		}
		return m, cmd
	}

	// Results and ticks go to every page; each ignores what is not its own.
	var cmds []tea.Cmd
	for _, r := range routes {
		if cmd := m.pages[r.path].Update(msg); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) updateSidebar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Open):
		m.focusSidebar = false
		return m, m.page().Focus()
	}

	var cmd tea.Cmd
	m.sidebar, cmd = m.sidebar.Update(msg)
	if item, ok := m.sidebar.SelectedItem().(routeItem); ok && item.path != m.current {
		m.logger.Debug("navigate", "from", m.current, "to", item.path)
		m.current = item.path
	}
	return m, cmd
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	left, right := m.paneWidths()
	bodyHeight := m.bodyHeight()
	m.sidebar.SetSize(left-2, bodyHeight-2)
	for _, p := range m.pages {
		p.SetSize(right-4, bodyHeight-2)
	}
}

func (m Model) bodyHeight() int {
	h := m.height - 2
	if h < 8 {
		h = 8
	}
	return h
}

func (m Model) paneWidths() (int, int) {
	left := m.width / 5
	if left < 22 {
		left = 22
	}
	if left > 32 {
		left = 32
	}
	right := m.width - left - 2
	if right < 30 {
		right = 30
	}
	return left, right
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	left, right := m.paneWidths()
	bodyHeight := m.bodyHeight()
	leftPane := panelStyle(m.focusSidebar).Width(left).Height(bodyHeight - 2).Render(m.sidebar.View())
	rightPane := panelStyle(!m.focusSidebar).Width(right).Height(bodyHeight - 2).Render(m.page().View())
	body := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		body,
		m.footer(),
	)
}

func (m Model) statusLine() string {
	status := m.page().Title() + "  " + m.current
	if m.page().Busy() {
		status += "  [working]"
	}
	if n := m.notices.Len(); n > 1 {
		status += "  [" + strconv.Itoa(n) + " notices]"
	}
	return statusStyle.Render(ansi.Truncate(status, m.width-2, "…"))
}

// footer is the pending notice when there is one, key help otherwise.
func (m Model) footer() string {
	if text, ok := m.notices.Current(); ok {
		return noticeStyle.Render(ansi.Truncate(text+"   (enter to dismiss)", m.width-2, "…"))
	}
	var bindings []key.Binding
	if m.focusSidebar {
		bindings = []key.Binding{m.keys.Up, m.keys.Down, m.keys.Open, m.keys.Quit}
	} else {
		bindings = m.page().HelpKeys()
	}
	return ansi.Truncate(m.help.ShortHelpView(bindings), m.width, "…")
}

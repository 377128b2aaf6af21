package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/iksnae/agent-chat/internal"
	"github.com/iksnae/agent-chat/internal/render"
)

type pane int

const (
	paneTranscript pane = iota
	paneResults
	paneCharts
)

func (p pane) String() string {
	switch p {
	case paneResults:
		return "Results"
	case paneCharts:
		return "Charts"
	default:
		return "Transcript"
	}
}

const (
	defaultTimeout = 30 * time.Second
	chromeHeight   = 6
)

var (
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1)
	activeTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).Underline(true).Padding(0, 1)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	annotateStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Options wires the chat screen to a session and the chat endpoint
type Options struct {
	Session   *internal.ChatSession
	Submitter internal.Submitter
	// Timeout bounds one submission; zero means 30s
	Timeout  time.Duration
	ImageDir string
	// PageSize is how many results or charts one page shows
	PageSize int
}

type model struct {
	ctx        context.Context
	opts       Options
	normalizer *internal.Normalizer

	input    textinput.Model
	view     viewport.Model
	spin     spinner.Model
	pane     pane
	results  render.Pager
	charts   render.Pager
	annotate bool

	snap   internal.Snapshot
	width  int
	height int
	ready  bool
}

type sessionChangedMsg struct{}

type submitDoneMsg struct {
	ack *internal.ChatAck
	err error
}

// Run starts the interactive chat screen and blocks until the user quits or
// ctx is cancelled
func Run(ctx context.Context, opts Options) error {
	m := initialModel(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func initialModel(ctx context.Context, opts Options) model {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 1
	}

	ti := textinput.New()
	ti.Placeholder = "Ask the agent about your data"
	ti.CharLimit = 4096
	ti.Width = 60
	ti.Prompt = "› "
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := model{
		ctx:        ctx,
		opts:       opts,
		normalizer: internal.NewNormalizer(),
		input:      ti,
		view:       viewport.New(80, 20),
		spin:       sp,
		width:      80,
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spin.Tick, waitForChange(m.opts.Session))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.view.Width = msg.Width
		m.view.Height = max(msg.Height-chromeHeight, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m.submit()
		case "tab":
			m.pane = (m.pane + 1) % 3
			m.refresh()
			return m, nil
		case "shift+tab":
			m.pane = (m.pane + 2) % 3
			m.refresh()
			return m, nil
		case "ctrl+n":
			m.currentPager().Next()
			m.refresh()
			return m, nil
		case "ctrl+p":
			m.currentPager().Prev()
			m.refresh()
			return m, nil
		case "ctrl+a":
			m.annotate = !m.annotate
			return m, nil
		case "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.view, cmd = m.view.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case sessionChangedMsg:
		m.refresh()
		return m, waitForChange(m.opts.Session)

	case submitDoneMsg:
		m.opts.Session.CompleteTurn(msg.ack, msg.err)
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit records the turn synchronously, so the reset of results and charts
// is visible before the request leaves
func (m model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if m.annotate && strings.TrimSpace(text) != "" {
		if r, ok := m.currentResult(); ok {
			text = internal.FormatContextMessage(fmt.Sprintf("Following up on %q", r.Objective), text)
		}
	}

	req, err := m.opts.Session.BeginTurn(text)
	m.input.Reset()
	m.annotate = false
	m.pane = paneTranscript
	m.refresh()
	if err != nil {
		return m, nil
	}
	return m, submitCmd(m.ctx, m.opts.Submitter, req, m.opts.Timeout)
}

func (m *model) currentPager() *render.Pager {
	if m.pane == paneCharts {
		return &m.charts
	}
	return &m.results
}

func (m model) currentResult() (internal.TabularResult, bool) {
	page, _ := render.Page(m.snap.Results, m.results.Index, m.opts.PageSize)
	if len(page) == 0 {
		return internal.TabularResult{}, false
	}
	return page[0], true
}

// refresh re-reads the session and redraws the active pane
func (m *model) refresh() {
	m.snap = m.opts.Session.Snapshot()
	_, resultPages := render.Page(m.snap.Results, 0, m.opts.PageSize)
	_, chartPages := render.Page(m.snap.Suggestions, 0, m.opts.PageSize)
	m.results.SetTotal(resultPages)
	m.charts.SetTotal(chartPages)

	atBottom := m.view.AtBottom()
	m.view.SetContent(m.paneContent())
	if m.pane == paneTranscript && atBottom {
		m.view.GotoBottom()
	} else if m.pane != paneTranscript {
		m.view.GotoTop()
	}
}

func (m model) paneContent() string {
	switch m.pane {
	case paneResults:
		page, _ := render.Page(m.snap.Results, m.results.Index, m.opts.PageSize)
		if len(page) == 0 {
			return helpStyle.Render("No results yet.")
		}
		parts := make([]string, 0, len(page))
		for _, r := range page {
			parts = append(parts, render.Result(r, render.DefaultMaxRows))
		}
		return strings.Join(parts, "\n\n")
	case paneCharts:
		page, _ := render.Page(m.snap.Suggestions, m.charts.Index, m.opts.PageSize)
		if len(page) == 0 {
			return helpStyle.Render("No charts suggested yet.")
		}
		parts := make([]string, 0, len(page))
		for _, s := range page {
			out := m.normalizer.Prepare(s, m.snap.Results)
			parts = append(parts, render.Chart(out, render.ChartOptions{Width: m.width - 2, ImageDir: m.opts.ImageDir}))
		}
		return strings.Join(parts, "\n\n")
	default:
		if len(m.snap.Transcript) == 0 {
			return helpStyle.Render("Type a question and press enter.")
		}
		return render.Transcript(m.snap.Transcript, m.width-2)
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(render.Header(m.snap) + "\n")
	b.WriteString(m.tabs() + "\n")
	b.WriteString(m.view.View() + "\n")

	if status := render.Status(m.snap); status != "" {
		b.WriteString(m.spin.View() + " " + status)
	}
	b.WriteString("\n")
	if m.annotate {
		b.WriteString(annotateStyle.Render("↳ follow-up on the selected result") + "\n")
	}
	b.WriteString(m.input.View() + "\n")
	b.WriteString(helpStyle.Render("enter send • tab switch pane • ctrl+n/p page • ctrl+a annotate • pgup/pgdn scroll • esc quit"))
	return b.String()
}

func (m model) tabs() string {
	parts := make([]string, 0, 3)
	for _, p := range []pane{paneTranscript, paneResults, paneCharts} {
		label := p.String()
		switch p {
		case paneResults:
			if l := m.results.Label(); l != "" {
				label += " " + l
			}
		case paneCharts:
			if l := m.charts.Label(); l != "" {
				label += " " + l
			}
		}
		if p == m.pane {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func waitForChange(s *internal.ChatSession) tea.Cmd {
	return func() tea.Msg {
		<-s.Changed()
		return sessionChangedMsg{}
	}
}

func submitCmd(ctx context.Context, sub internal.Submitter, req internal.ChatRequest, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		ack, err := sub.Submit(ctx, req)
		return submitDoneMsg{ack: ack, err: err}
	}
}

// Package tui implements the interactive decision analysis screen.
package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"

	"github.com/hay-kot/tradeoff/internal/core/eventbus"
	"github.com/hay-kot/tradeoff/internal/core/identity"
	"github.com/hay-kot/tradeoff/internal/core/notify"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
	"github.com/hay-kot/tradeoff/internal/tradeoff"
)

type focus int

const (
	focusDecision focus = iota
	focusImagePath
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// chromeHeight is the space taken by everything but the analysis viewport.
	chromeHeight = 18
)

// Options configures the TUI model.
type Options struct {
	Context       context.Context
	Session       *workflow.Session
	Notifications *notify.Center
	Health        *tradeoff.HealthService // optional
	Bus           *eventbus.EventBus      // optional
	Identity      identity.Provider       // optional; drives the signed-in user
	Backend       string
	Warnings      []string // shown as toasts on start
}

// workflowMsg wraps the outcome of a workflow command.
type workflowMsg struct {
	msg workflow.Msg
}

// authChangedMsg carries the signed-in user, nil when signed out.
type authChangedMsg struct {
	user *identity.User
}

func toAuthMsg(u *identity.User) tea.Msg {
	return authChangedMsg{user: u}
}

// healthMsg carries a backend health check result.
type healthMsg tradeoff.HealthStatus

// Model is the bubbletea model for the analysis screen.
type Model struct {
	ctx      context.Context
	session  *workflow.Session
	center   *notify.Center
	health   *tradeoff.HealthService
	bus      *eventbus.EventBus
	feed     *latestFeed[notify.Change]
	auth     *latestFeed[*identity.User]
	toasts   ToastController
	username string
	backend  string
	warnings []string

	keys      keyMap
	help      help.Model
	input     textinput.Model
	pathInput textinput.Model
	spinner   spinner.Model
	bar       progress.Model
	analysis  viewport.Model
	focus     focus

	exampleIdx  int
	renderedFor string
	status      *tradeoff.HealthStatus
	width       int
	height      int
	quitting    bool
}

// New creates the model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	input := textinput.New()
	input.Placeholder = "Describe a decision you're weighing..."
	input.CharLimit = 500
	input.Prompt = "› "
	input.Focus()

	pathInput := textinput.New()
	pathInput.Placeholder = "path to a photo (png, jpeg, gif, webp)"
	pathInput.Prompt = "📷 "

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	vp := viewport.New(defaultWidth, defaultHeight-chromeHeight)
	vp.KeyMap = viewport.KeyMap{
		PageDown: key.NewBinding(key.WithKeys("pgdown")),
		PageUp:   key.NewBinding(key.WithKeys("pgup")),
	}

	m := Model{
		ctx:       ctx,
		session:   opts.Session,
		center:    opts.Notifications,
		health:    opts.Health,
		bus:       opts.Bus,
		backend:   opts.Backend,
		warnings:  opts.Warnings,
		keys:      defaultKeyMap(),
		help:      help.New(),
		input:     input,
		pathInput: pathInput,
		spinner:   sp,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(24)),
		analysis:  vp,
		width:     defaultWidth,
		height:    defaultHeight,
	}
	m.exampleIdx = -1
	if m.center != nil {
		m.feed = newToastFeed(m.center)
	}
	if opts.Identity != nil {
		m.auth = newLatestFeed[*identity.User]()
		if err := opts.Identity.OnAuthChange(ctx, m.auth.send); err != nil {
			log.Warn().Err(err).Msg("subscribe to auth changes")
		}
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if m.feed != nil {
		cmds = append(cmds, m.feed.wait(toNotifyMsg))
		for _, w := range m.warnings {
			m.center.Errorf("Configuration warning", "%s", w)
		}
	}
	if m.auth != nil {
		cmds = append(cmds, m.auth.wait(toAuthMsg))
	}
	if m.health != nil {
		cmds = append(cmds, m.checkHealth(false))
	}
	if m.bus != nil {
		m.bus.PublishTuiStarted(eventbus.TUIStartedPayload{})
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case workflowMsg:
		m.session.Apply(msg.msg)
		m.syncInput()
		m.refreshAnalysis()
		return m, nil

	case notifyChangeMsg:
		m.toasts.Apply(notify.Change(msg))
		return m, m.feed.wait(toNotifyMsg)

	case authChangedMsg:
		m.applyUser(msg.user)
		return m, m.auth.wait(toAuthMsg)

	case healthMsg:
		st := tradeoff.HealthStatus(msg)
		m.status = &st
		return m, nil

	case spinner.TickMsg:
		if !m.session.Phase().Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateInputs(msg)
}

// applyUser shows the signed-in user and attributes later completions to
// them.
func (m *Model) applyUser(u *identity.User) {
	if u == nil {
		m.username = ""
		m.session.SetUser("")
		return
	}
	m.username = u.Username
	m.session.SetUser(u.ID)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.quitting = true
		if m.bus != nil {
			m.bus.PublishTuiStopped(eventbus.TUIStoppedPayload{})
		}
		return m, tea.Quit
	}

	if m.focus == focusImagePath {
		return m.handlePathKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Submit):
		if m.session.Phase().Busy() {
			return m, nil
		}
		cmd, err := m.session.Submit(m.input.Value())
		if err != nil {
			return m, nil
		}
		m.syncInput()
		return m, tea.Batch(m.run(cmd), m.spinner.Tick)

	case key.Matches(msg, m.keys.Example):
		examples := m.session.Examples()
		if len(examples) == 0 || m.session.Phase().Busy() {
			return m, nil
		}
		m.exampleIdx = (m.exampleIdx + 1) % len(examples)
		if err := m.session.PickExample(m.exampleIdx); err != nil {
			return m, nil
		}
		m.input.SetValue(m.session.Snapshot().DecisionText)
		m.input.CursorEnd()
		return m, nil

	case key.Matches(msg, m.keys.Attach):
		if !m.session.Snapshot().CanAttachImage() || m.session.Phase().Busy() {
			return m, nil
		}
		m.focus = focusImagePath
		m.input.Blur()
		m.pathInput.SetValue("")
		return m, m.pathInput.Focus()

	case key.Matches(msg, m.keys.Remove):
		m.session.RemoveVerificationImage()
		return m, nil

	case key.Matches(msg, m.keys.Verify):
		cmd, err := m.session.SubmitVerification()
		if err != nil {
			return m, nil
		}
		return m, tea.Batch(m.run(cmd), m.spinner.Tick)

	case key.Matches(msg, m.keys.Reset):
		m.session.Reset()
		m.exampleIdx = -1
		m.syncInput()
		m.refreshAnalysis()
		return m, nil

	case key.Matches(msg, m.keys.Dismiss):
		if m.center != nil {
			m.center.Dismiss()
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.health == nil {
			return m, nil
		}
		return m, m.checkHealth(true)
	}

	return m.updateInputs(msg)
}

func (m Model) handlePathKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.focus = focusDecision
		m.pathInput.Blur()
		return m, m.input.Focus()

	case tea.KeyEnter:
		path := expandHome(strings.TrimSpace(m.pathInput.Value()))
		m.focus = focusDecision
		m.pathInput.Blur()
		focusCmd := m.input.Focus()
		if path == "" {
			return m, focusCmd
		}
		cmd, err := m.session.SelectVerificationFile(path)
		if err != nil {
			var verr *workflow.ValidationError
			if !errors.As(err, &verr) {
				log.Debug().Err(err).Str("path", path).Msg("select verification file")
			}
			return m, focusCmd
		}
		return m, tea.Batch(focusCmd, m.run(cmd))
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if m.focus == focusDecision && !m.session.Phase().Busy() {
		before := m.input.Value()
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		if after := m.input.Value(); after != before {
			if err := m.session.SetDecisionText(after); err != nil {
				m.input.SetValue(before)
			}
		}
	}

	m.analysis, cmd = m.analysis.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// run adapts a workflow command to a bubbletea command.
func (m Model) run(cmd workflow.Cmd) tea.Cmd {
	if cmd == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return workflowMsg{msg: cmd(ctx)}
	}
}

func (m Model) checkHealth(force bool) tea.Cmd {
	ctx := m.ctx
	h := m.health
	return func() tea.Msg {
		if force {
			return healthMsg(h.Refresh(ctx))
		}
		return healthMsg(h.Check(ctx))
	}
}

// syncInput mirrors the session's decision text into the input.
func (m *Model) syncInput() {
	text := m.session.Snapshot().DecisionText
	if m.input.Value() != text {
		m.input.SetValue(text)
		m.input.CursorEnd()
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width
	m.input.Width = max(width-8, 20)
	m.pathInput.Width = max(width-8, 20)
	m.analysis.Width = max(width-4, 20)
	m.analysis.Height = max(height-chromeHeight, 3)
	m.renderedFor = ""
	m.refreshAnalysis()
}

// refreshAnalysis renders the current result into the viewport when it changed.
func (m *Model) refreshAnalysis() {
	result := m.session.Snapshot().AnalysisResult
	if result == m.renderedFor {
		return
	}
	m.renderedFor = result
	m.analysis.SetContent(renderMarkdown(result, m.analysis.Width))
	m.analysis.GotoTop()
}

func renderMarkdown(text string, width int) string {
	if text == "" {
		return ""
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(max(width-2, 20)),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

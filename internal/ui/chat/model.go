// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/replichat/internal/config"
	"github.com/jeranaias/replichat/internal/conversation"
	"github.com/jeranaias/replichat/internal/model"
	"github.com/jeranaias/replichat/internal/session"
	"github.com/jeranaias/replichat/internal/ui/components"
	"github.com/jeranaias/replichat/internal/ui/styles"
	"github.com/jeranaias/replichat/internal/util"
)

// =============================================================================
// EDIT MODES
// =============================================================================

// Mode is what the input area is currently editing.
type Mode int

const (
	ModeChat Mode = iota
	ModeEditSystem
	ModeEditCredential
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeEditSystem:
		return "system"
	case ModeEditCredential:
		return "credential"
	default:
		return "chat"
	}
}

// statusDuration is how long a transient status line stays visible.
const statusDuration = 4 * time.Second

// =============================================================================
// MODEL
// =============================================================================

// Options configures a chat Model.
type Options struct {
	State  *session.State
	Runner *conversation.Runner
	Config *config.Config
	Theme  *styles.Theme

	// SaveCredential persists a newly entered token. Optional.
	SaveCredential func(token string) error

	// ExportDir is where ctrl+e writes transcripts. Default: "."
	ExportDir string
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	state          *session.State
	runner         *conversation.Runner
	cfg            *config.Config
	theme          *styles.Theme
	renderer       *components.Renderer
	saveCredential func(string) error
	exportDir      string

	keys     KeyMap
	help     help.Model
	input    textinput.Model
	token    textinput.Model
	editor   textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	mode      Mode
	width     int
	height    int
	ready     bool
	showHelp  bool
	showHints bool

	sendMu sync.Mutex
	send   func(tea.Msg)

	// Reply being generated
	streaming    bool
	streamSeq    int
	streamText   strings.Builder
	streamStart  time.Time
	buffer       *StreamingBuffer
	cancelStream context.CancelFunc

	// Outcome of the last turn
	lastErr     error
	lastPartial string
	lastStats   *model.Statistics

	status      string
	statusIsErr bool
	statusSeq   int

	// Rendered turns by ID, valid for renderWidth
	renderCache map[string]string
	renderWidth int

	unsubscribe func()
}

// New creates a chat Model.
func New(opts Options) *Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}
	state := opts.State
	if state == nil {
		state = session.New()
	}
	state.Initialize()

	input := textinput.New()
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.PlaceholderStyle = theme.InputPlaceholder
	input.CharLimit = 0

	token := textinput.New()
	token.Prompt = "token: "
	token.PromptStyle = theme.EditTitle
	token.EchoMode = textinput.EchoPassword
	token.EchoCharacter = '*'
	token.Placeholder = "r8_..."

	editor := textarea.New()
	editor.ShowLineNumbers = false
	editor.CharLimit = 0
	editor.Placeholder = "System prompt"

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := &Model{
		state:          state,
		runner:         opts.Runner,
		cfg:            cfg,
		theme:          theme,
		renderer:       components.NewRenderer(theme, cfg.UI.Markdown),
		saveCredential: opts.SaveCredential,
		exportDir:      opts.ExportDir,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		input:          input,
		token:          token,
		editor:         editor,
		viewport:       viewport.New(80, 20),
		spinner:        sp,
		showHints:      cfg.UI.ShowHints,
		buffer:         NewStreamingBuffer(),
		renderCache:    make(map[string]string),
	}
	m.help.Styles.ShortKey = theme.ShortcutKey
	m.help.Styles.ShortDesc = theme.ShortcutDesc
	m.help.Styles.FullKey = theme.ShortcutKey
	m.help.Styles.FullDesc = theme.ShortcutDesc

	m.unsubscribe = state.Subscribe(func(c session.Change) {
		// Observers may run inside Update; never block the loop
		go m.deliver(StateChangedMsg{Change: c})
	})
	m.syncInput()
	return m
}

// SetSender installs the function used to deliver messages from background
// goroutines, normally (*tea.Program).Send.
func (m *Model) SetSender(send func(tea.Msg)) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()
	m.send = send
}

// deliver sends msg to the program. Fragments are buffered directly when no
// sender is installed.
func (m *Model) deliver(msg tea.Msg) {
	m.sendMu.Lock()
	send := m.send
	m.sendMu.Unlock()

	if send != nil {
		send(msg)
		return
	}
	if f, ok := msg.(FragmentMsg); ok {
		m.buffer.Write(f.Text)
	}
}

// Close releases the state subscription. An in-flight request is torn down
// with it, which only happens when the program exits.
func (m *Model) Close() {
	if m.cancelStream != nil {
		m.cancelStream()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Mode returns the current edit mode.
func (m *Model) Mode() Mode {
	return m.mode
}

// Streaming reports whether a reply is being generated.
func (m *Model) Streaming() bool {
	return m.streaming
}

// LastError returns the error from the most recent turn, if any.
func (m *Model) LastError() error {
	return m.lastErr
}

// Status returns the transient status line.
func (m *Model) Status() string {
	return m.status
}

// InputEnabled reports whether a message can be typed and sent.
func (m *Model) InputEnabled() bool {
	return m.state.HasCredential() && !m.streaming && !m.state.InFlight()
}

// syncInput focuses or disables the message input to match the state.
func (m *Model) syncInput() {
	switch {
	case !m.state.HasCredential():
		m.input.Placeholder = "No API token. Press ctrl+k to enter your Replicate token."
		m.input.Blur()
	case m.streaming:
		m.input.Placeholder = "Waiting for " + m.state.Model().ID + "..."
		m.input.Blur()
	default:
		m.input.Placeholder = "Type a message and press enter"
		if m.mode == ModeChat {
			m.input.Focus()
		}
	}
}

// setStatus shows a transient status line and schedules its removal.
func (m *Model) setStatus(text string, isErr bool) tea.Cmd {
	m.statusSeq++
	seq := m.statusSeq
	m.status = text
	m.statusIsErr = isErr
	if isErr {
		log.Printf("[replichat] %s", text)
	}
	return tea.Tick(statusDuration, func(time.Time) tea.Msg {
		return statusExpiredMsg{seq: seq}
	})
}

// =============================================================================
// STREAMING
// =============================================================================

// submit starts a turn for the typed message.
func (m *Model) submit() tea.Cmd {
	if !m.InputEnabled() || m.runner == nil {
		return nil
	}
	text := util.CleanInput(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()

	m.streamSeq++
	seq := m.streamSeq
	m.streaming = true
	m.streamText.Reset()
	m.streamStart = time.Now()
	m.buffer.Reset()
	m.lastErr = nil
	m.lastPartial = ""
	m.lastStats = nil
	m.syncInput()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelStream = cancel
	runner := m.runner

	run := func() tea.Msg {
		defer cancel()
		result, err := runner.Submit(ctx, text, func(fragment string) {
			m.deliver(FragmentMsg{Seq: seq, Text: fragment})
		})
		if err != nil {
			return StreamErrorMsg{Seq: seq, Err: err, Result: result}
		}
		return StreamDoneMsg{Seq: seq, Result: result}
	}

	m.refresh()
	return tea.Batch(run, streamTickCmd(seq, m.buffer.Interval()), m.spinner.Tick)
}

// finishStream folds buffered fragments into the view and ends streaming.
func (m *Model) finishStream() {
	if rest, ok := m.buffer.ForceFlush(); ok {
		m.streamText.WriteString(rest)
	}
	m.streaming = false
	m.cancelStream = nil
	m.syncInput()
}

// =============================================================================
// EDIT MODES
// =============================================================================

func (m *Model) beginEditSystem() tea.Cmd {
	m.mode = ModeEditSystem
	m.editor.SetValue(m.state.Config().SystemPrompt)
	m.input.Blur()
	m.layout()
	return m.editor.Focus()
}

func (m *Model) beginEditCredential() tea.Cmd {
	m.mode = ModeEditCredential
	m.token.Reset()
	m.input.Blur()
	m.layout()
	return m.token.Focus()
}

func (m *Model) leaveEdit() {
	m.mode = ModeChat
	m.editor.Blur()
	m.token.Blur()
	m.token.Reset()
	m.syncInput()
	m.layout()
}

func (m *Model) saveSystemPrompt() tea.Cmd {
	if err := m.state.SetSystemPrompt(m.editor.Value()); err != nil {
		return m.setStatus("System prompt not changed: "+err.Error(), true)
	}
	m.leaveEdit()
	return m.setStatus("System prompt updated", false)
}

func (m *Model) saveToken() tea.Cmd {
	token := strings.TrimSpace(m.token.Value())
	if err := m.state.SetCredential(token); err != nil {
		m.token.Reset()
		return m.setStatus("Invalid token: must start with r8_ and be 40 characters", true)
	}
	m.leaveEdit()
	if m.saveCredential != nil {
		if err := m.saveCredential(token); err != nil {
			return m.setStatus("Token set for this session but not saved: "+err.Error(), true)
		}
		return m.setStatus("Token saved", false)
	}
	return m.setStatus("Token set for this session", false)
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

// applyConfig takes the UI options and credential from a reloaded config.
// Model and generation parameters belong to the running session and are
// left alone.
func (m *Model) applyConfig(cfg *config.Config) tea.Cmd {
	m.cfg = cfg
	m.showHints = cfg.UI.ShowHints
	if cfg.UI.Markdown != m.renderer.Markdown() {
		m.renderer.SetMarkdown(cfg.UI.Markdown)
		m.renderCache = make(map[string]string)
	}
	if tok := cfg.Replicate.APIToken; tok != "" && tok != m.state.Credential() {
		if err := m.state.SetCredential(tok); err != nil {
			return m.setStatus("Config reloaded; token ignored: "+err.Error(), true)
		}
	}
	m.syncInput()
	m.refresh()
	return m.setStatus("Config reloaded", false)
}

// Package tui implements the terminal review surface: it renders the current
// working copy and issues commands against the session controller. All state
// lives in the controller; the model here only tracks presentation concerns
// (cursor, input mode, last status message).
//
// Single-threaded by design: everything runs inside the bubbletea event loop.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/roadsight/vannot/internal/report"
	"github.com/roadsight/vannot/internal/schema"
	"github.com/roadsight/vannot/internal/session"
	"github.com/roadsight/vannot/internal/store"
)

type mode int

const (
	modeBrowse mode = iota
	modeEdit
	modeJump
	modeConfirmUnverify
)

// Model is the bubbletea model for the review session.
type Model struct {
	sess         *session.Session
	st           *store.Store
	reportPrefix string

	mode       mode
	attrCursor int // highlighted categorical attribute row
	optCursor  int // highlighted option while editing
	input      textinput.Model
	confirm    string

	status   string
	width    int
	height   int
	quitting bool
}

// New builds the review model over an existing session.
func New(sess *session.Session, st *store.Store, reportPrefix string) Model {
	ti := textinput.New()
	ti.CharLimit = 64
	return Model{
		sess:         sess,
		st:           st,
		reportPrefix: reportPrefix,
		input:        ti,
		status:       sess.StatusLine(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeEdit:
			return m.updateEdit(msg)
		case modeJump:
			return m.updateJump(msg)
		case modeConfirmUnverify:
			return m.updateConfirm(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		// Final implicit save so navigation-away semantics hold on exit too.
		if saved, err := m.sess.SaveIfDirty(); err == nil && saved != "" {
			m.status = saved
		}
		m.quitting = true
		return m, tea.Quit

	case "down", "j":
		if m.attrCursor < len(schema.CategoricalKeys)-1 {
			m.attrCursor++
		}

	case "up", "k":
		if m.attrCursor > 0 {
			m.attrCursor--
		}

	case "right", "n":
		m.apply(m.sess.Next())

	case "left", "p":
		m.apply(m.sess.Prev())

	case "g":
		m.mode = modeJump
		m.input.Placeholder = fmt.Sprintf("1-%d", m.sess.Count())
		m.input.SetValue("")
		m.input.Focus()

	case "enter", "e":
		if _, ok := m.sess.CurrentID(); ok {
			m.startEdit()
		}

	case "d":
		m.apply(m.sess.Edit(m.currentAttr(), ""))

	case "s":
		m.apply(m.sess.Save())

	case "u":
		m.apply(m.sess.Undo())

	case "r":
		m.apply(m.sess.Reset())

	case "v":
		m.apply(m.sess.Verify())

	case "V":
		if id, ok := m.sess.CurrentID(); ok && m.sess.Verified() {
			m.mode = modeConfirmUnverify
			m.confirm = ""
			m.status = fmt.Sprintf("Unmark %s as verified? This deletes its verified output document.", id)
		} else {
			m.apply("", session.ErrNotVerified)
		}

	case "f":
		m.apply(m.sess.Filter(nextFilter(m.sess.Mode())))

	case "x":
		path, err := report.Export(m.st, m.reportPrefix, time.Now())
		if err != nil {
			m.status = fmt.Sprintf("Error exporting report: %v", err)
		} else {
			m.status = fmt.Sprintf("Report exported to %s", path)
		}
	}
	return m, nil
}

func (m *Model) startEdit() {
	attr := m.currentAttr()
	m.mode = modeEdit
	m.optCursor = -1
	m.input.Placeholder = ""
	m.input.SetValue(currentString(m.sess.Working(), attr))
	m.input.CursorEnd()
	m.input.Focus()
}

func (m Model) updateEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	attr := m.currentAttr()
	opts := schema.Options(attr)

	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.input.Blur()
		m.status = m.sess.StatusLine()
		return m, nil

	case "down":
		if m.optCursor < len(opts)-1 {
			m.optCursor++
			m.input.SetValue(opts[m.optCursor])
			m.input.CursorEnd()
		}
		return m, nil

	case "up":
		if m.optCursor > 0 {
			m.optCursor--
			m.input.SetValue(opts[m.optCursor])
			m.input.CursorEnd()
		}
		return m, nil

	case "enter":
		m.mode = modeBrowse
		m.input.Blur()
		m.apply(m.sess.Edit(attr, m.input.Value()))
		return m, nil
	}

	// Anything else is free-text editing; a keystroke invalidates the
	// option-list position.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.optCursor = -1
	return m, cmd
}

func (m Model) updateJump(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeBrowse
		m.input.Blur()
		m.status = m.sess.StatusLine()
		return m, nil

	case "enter":
		m.mode = modeBrowse
		m.input.Blur()
		n, err := strconv.Atoi(m.input.Value())
		if err != nil {
			m.status = fmt.Sprintf("Invalid sample number: %q", m.input.Value())
			return m, nil
		}
		m.apply(m.sess.Select(n - 1))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updateConfirm requires the reviewer to type "yes" before a destructive
// unverify, mirroring the confirmation step of the form-based UI.
func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.mode = modeBrowse
		if m.confirm == "yes" {
			m.apply(m.sess.Unverify())
		} else {
			m.status = "Unmarking cancelled"
		}
		m.confirm = ""

	case "esc":
		m.mode = modeBrowse
		m.confirm = ""
		m.status = "Unmarking cancelled"

	case "backspace":
		if len(m.confirm) > 0 {
			m.confirm = m.confirm[:len(m.confirm)-1]
		}

	default:
		if len(msg.String()) == 1 {
			m.confirm += msg.String()
		}
	}
	return m, nil
}

// apply folds a session result into the status line. State errors are
// messages here, never failures: the session stays usable.
func (m *Model) apply(status string, err error) {
	if err != nil {
		m.status = capitalize(err.Error())
		return
	}
	m.status = status
}

func (m Model) currentAttr() string {
	return schema.CategoricalKeys[m.attrCursor]
}

func nextFilter(mode session.FilterMode) session.FilterMode {
	switch mode {
	case session.FilterAll:
		return session.FilterPending
	case session.FilterPending:
		return session.FilterVerified
	default:
		return session.FilterAll
	}
}

func currentString(attrs map[string]any, key string) string {
	if v, ok := attrs[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

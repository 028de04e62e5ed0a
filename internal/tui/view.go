package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/roadsight/vannot/internal/schema"
)

// optionWindow is how many options are visible at once while editing.
const optionWindow = 9

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Session closed.\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("vannot · vehicle attribute review"))
	b.WriteString("\n")
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	switch m.mode {
	case modeEdit:
		b.WriteString(m.renderEdit())
	case modeConfirmUnverify:
		b.WriteString(m.renderConfirm())
	default:
		b.WriteString(m.renderRecord())
	}

	b.WriteString("\n")
	b.WriteString(m.renderIssues())
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status))
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	line := m.sess.StatusLine()

	var badge string
	if _, ok := m.sess.CurrentID(); ok {
		if m.sess.Verified() {
			badge = verifiedBadge.Render("verified")
		} else {
			badge = pendingBadge.Render("pending")
		}
		if m.sess.Dirty() {
			badge += " " + dirtyStyle.Render("*modified*")
		}
	}

	progress := ""
	if stats, err := m.sess.Stats(); err == nil {
		progress = mutedStyle.Render(fmt.Sprintf("progress %d/%d (%.2f%%) · filter: %s",
			stats.Verified, stats.Total, stats.Percent, m.sess.Mode()))
	}
	return line + "  " + badge + "\n" + progress
}

func (m Model) renderRecord() string {
	working := m.sess.Working()
	if _, ok := m.sess.CurrentID(); !ok {
		return mutedStyle.Render("No sample selected.")
	}

	var b strings.Builder

	imgPath, hasImage := m.sess.ImageInfo()
	if hasImage {
		fmt.Fprintf(&b, "image: %s  %s × %s\n", imgPath,
			currentString(working, "width"), currentString(working, "height"))
	} else {
		fmt.Fprintf(&b, "image: %s\n", mutedStyle.Render("no image found ("+imgPath+")"))
	}
	b.WriteString("\n")

	for i, key := range schema.CategoricalKeys {
		cursor := "  "
		if i == m.attrCursor {
			cursor = cursorStyle.Render("> ")
		}
		value := currentString(working, key)
		rendered := value
		switch {
		case value == "":
			rendered = mutedStyle.Render("(unset)")
		case key != "special_type" && !schema.IsValid(key, value):
			rendered = invalidStyle.Render(value)
		case value == schema.Sentinel:
			rendered = mutedStyle.Render(value)
		}
		fmt.Fprintf(&b, "%s%-14s %s\n", cursor, key, rendered)
	}
	return b.String()
}

func (m Model) renderEdit() string {
	attr := m.currentAttr()
	opts := schema.Options(attr)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render("edit "+attr))
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	// Scroll the option list so the highlighted entry stays visible.
	start := 0
	if m.optCursor >= optionWindow {
		start = m.optCursor - optionWindow + 1
	}
	end := start + optionWindow
	if end > len(opts) {
		end = len(opts)
	}
	for i := start; i < end; i++ {
		if i == m.optCursor {
			fmt.Fprintf(&b, "%s\n", cursorStyle.Render("> "+opts[i]))
		} else {
			fmt.Fprintf(&b, "  %s\n", opts[i])
		}
	}
	if end < len(opts) {
		fmt.Fprintf(&b, "%s\n", mutedStyle.Render(fmt.Sprintf("  … %d more", len(opts)-end)))
	}
	b.WriteString(mutedStyle.Render("↑/↓ pick option · type for free text · enter apply · esc cancel"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderConfirm() string {
	var b strings.Builder
	b.WriteString(invalidStyle.Render("Confirm unverify"))
	b.WriteString("\n")
	b.WriteString("Type \"yes\" and press enter to delete the verified output document: ")
	b.WriteString(m.confirm)
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("esc cancels"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderIssues() string {
	issues := m.sess.Issues()
	if len(issues) == 0 {
		return okStyle.Render("No issues detected")
	}
	var b strings.Builder
	for _, issue := range issues {
		b.WriteString(invalidStyle.Render("! " + issue))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderFooter() string {
	keys := "n/p sample · ↑/↓ attribute · enter edit · d clear · s save · u undo · r reset"
	keys2 := "v verify · V unverify · f filter · g jump · x report · q quit"
	return mutedStyle.Render(keys) + "\n" + mutedStyle.Render(keys2)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	invalidStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dirtyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	verifiedBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Background(lipgloss.Color("22")).
			Padding(0, 1)

	pendingBadge = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Background(lipgloss.Color("58")).
			Padding(0, 1)
)

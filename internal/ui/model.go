// ABOUTME: Bubbletea model for the coaching TUI
// ABOUTME: Holds transcript, suggestions and session stats with update logic
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/salescoach/pkg/coach"
	"github.com/harperreed/salescoach/pkg/protocol"
)

const (
	maxTranscriptLines = 200
	maxSuggestions     = 50
	boxWidth           = 54
)

// transcriptLine is a run of consecutive fragments from one speaker
type transcriptLine struct {
	source protocol.TranscriptSource
	text   string
}

// Model represents the TUI state
type Model struct {
	// Session
	sessionID string
	endpoint  string
	state     coach.State
	lastError string

	// Conversation
	transcript  []transcriptLine
	suggestions []coach.Suggestion

	// Stats
	stats coach.Stats

	// Clipboard
	copyText func(string) error
	notice   string

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StateMsg:
		m.state = msg.State
		if msg.State == coach.StateReady {
			m.lastError = ""
		}
	case TranscriptMsg:
		m.appendTranscript(msg.Transcript)
	case SuggestionMsg:
		m.appendSuggestion(msg.Suggestion)
	case StatsMsg:
		m.stats = msg.Stats
	case ErrorMsg:
		if msg.Err != nil {
			m.lastError = msg.Err.Error()
		}
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderSuggestions())
	b.WriteString(m.renderTranscript())
	b.WriteString(m.renderStats())

	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	b.WriteString(m.renderHelp())

	return b.String()
}

// renderHeader renders session state
func (m Model) renderHeader() string {
	icon := "✗"
	switch m.state {
	case coach.StateReady:
		icon = "✓"
	case coach.StateConnecting:
		icon = "…"
	case coach.StateDisconnected:
		icon = "⚠"
	}

	s := "┌─ Sales Coach " + strings.Repeat("─", boxWidth-14) + "┐\n"
	s += row(fmt.Sprintf("Status: %s %s", icon, m.state))
	if m.lastError != "" {
		s += row("Error:  " + m.lastError)
	}
	if m.notice != "" {
		s += row(m.notice)
	}
	s += divider()
	return s
}

// renderSuggestions renders the most recent coaching advice
func (m Model) renderSuggestions() string {
	s := row("Suggestions:")
	if len(m.suggestions) == 0 {
		return s + row("  (listening)")
	}

	for _, sg := range lastN(m.suggestions, m.suggestionRows()) {
		s += row(fmt.Sprintf("  %s %s", sg.At.Format("15:04:05"), sg.Text))
	}
	return s
}

// renderTranscript renders the tail of the conversation
func (m Model) renderTranscript() string {
	s := divider() + row("Transcript:")
	if len(m.transcript) == 0 {
		return s + row("  (no speech yet)")
	}

	for _, line := range lastN(m.transcript, m.transcriptRows()) {
		s += row(fmt.Sprintf("  %s: %s", speaker(line.source), line.text))
	}
	return s
}

// renderStats renders pipeline counters
func (m Model) renderStats() string {
	return divider() +
		row(fmt.Sprintf("Mic: %d Hz  Sent: %d  Dropped: %d", m.stats.CaptureRate, m.stats.BlocksSent, m.stats.BlocksDropped)) +
		row(fmt.Sprintf("Played: %d  Playing: %d  Interrupts: %d", m.stats.BuffersScheduled, m.stats.ActiveSources, m.stats.Interruptions))
}

// renderDebug renders debug information
func (m Model) renderDebug() string {
	return row("DEBUG:") +
		row("  Session:  "+m.sessionID) +
		row("  Endpoint: "+m.endpoint) +
		row(fmt.Sprintf("  Bytes sent: %d  Decode errors: %d", m.stats.BytesSent, m.stats.DecodeErrors)) +
		row(fmt.Sprintf("  Tool calls: %d  Turns: %d", m.stats.ToolCalls, m.stats.TurnsCompleted))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return divider() +
		row("c:Copy transcript  x:Clear  d:Debug  q:Quit") +
		"└" + strings.Repeat("─", boxWidth) + "┘\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "c":
		m.copyTranscript()
	case "x":
		m.transcript = nil
		m.suggestions = nil
		m.notice = ""
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) copyTranscript() {
	if m.copyText == nil {
		m.notice = "Clipboard unavailable"
		return
	}
	if len(m.transcript) == 0 {
		m.notice = "Nothing to copy"
		return
	}
	if err := m.copyText(m.TranscriptText()); err != nil {
		m.notice = "Copy failed: " + err.Error()
		return
	}
	m.notice = fmt.Sprintf("Copied %d lines", len(m.transcript))
}

// TranscriptText renders the full transcript as plain text
func (m Model) TranscriptText() string {
	var b strings.Builder
	for _, line := range m.transcript {
		fmt.Fprintf(&b, "%s: %s\n", speaker(line.source), line.text)
	}
	return b.String()
}

func (m *Model) appendTranscript(t protocol.Transcript) {
	text := strings.TrimSpace(t.Text)
	if text == "" {
		return
	}

	if n := len(m.transcript); n > 0 && m.transcript[n-1].source == t.Source {
		m.transcript[n-1].text += " " + text
		return
	}

	m.transcript = append(m.transcript, transcriptLine{source: t.Source, text: text})
	if len(m.transcript) > maxTranscriptLines {
		m.transcript = m.transcript[len(m.transcript)-maxTranscriptLines:]
	}
}

func (m *Model) appendSuggestion(sg coach.Suggestion) {
	if strings.TrimSpace(sg.Text) == "" {
		return
	}
	if sg.At.IsZero() {
		sg.At = time.Now()
	}

	m.suggestions = append(m.suggestions, sg)
	if len(m.suggestions) > maxSuggestions {
		m.suggestions = m.suggestions[len(m.suggestions)-maxSuggestions:]
	}
}

func (m Model) suggestionRows() int {
	if m.height <= 0 {
		return 3
	}
	return max(1, m.height/6)
}

func (m Model) transcriptRows() int {
	if m.height <= 0 {
		return 8
	}
	return max(1, m.height-m.suggestionRows()-14)
}

// StateMsg reports a session lifecycle change
type StateMsg struct {
	State coach.State
}

// TranscriptMsg carries a transcription fragment
type TranscriptMsg struct {
	Transcript protocol.Transcript
}

// SuggestionMsg carries coaching advice
type SuggestionMsg struct {
	Suggestion coach.Suggestion
}

// StatsMsg carries a stats snapshot
type StatsMsg struct {
	Stats coach.Stats
}

// ErrorMsg reports a background session error
type ErrorMsg struct {
	Err error
}

// Utility functions
func row(text string) string {
	return fmt.Sprintf("│ %-*s │\n", boxWidth-2, truncate(text, boxWidth-2))
}

func divider() string {
	return "├" + strings.Repeat("─", boxWidth) + "┤\n"
}

func speaker(source protocol.TranscriptSource) string {
	if source == protocol.TranscriptOutput {
		return "Coach"
	}
	return "You"
}

func lastN[T any](items []T, n int) []T {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}

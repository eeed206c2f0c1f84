// ABOUTME: TUI initialization and session wiring
// ABOUTME: Wraps the bubbletea program and feeds it session callbacks
package ui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/salescoach/pkg/coach"
	"github.com/harperreed/salescoach/pkg/protocol"
)

// NewModel creates a new TUI model
func NewModel(sessionID, endpoint string) Model {
	return Model{
		sessionID: sessionID,
		endpoint:  endpoint,
		state:     coach.StateIdle,
		copyText:  clipboard.WriteAll,
	}
}

// Run creates the TUI program
func Run(sessionID, endpoint string) *tea.Program {
	return tea.NewProgram(NewModel(sessionID, endpoint), tea.WithAltScreen())
}

// Hooks returns session callbacks that forward through send
func Hooks(send func(tea.Msg)) (func(protocol.Transcript), func(coach.Suggestion), func(coach.State), func(error)) {
	return func(t protocol.Transcript) { send(TranscriptMsg{Transcript: t}) },
		func(sg coach.Suggestion) { send(SuggestionMsg{Suggestion: sg}) },
		func(st coach.State) { send(StateMsg{State: st}) },
		func(err error) { send(ErrorMsg{Err: err}) }
}

// PollStats sends stats snapshots to the program until ctx is done
func PollStats(ctx context.Context, p *tea.Program, stats func() coach.Stats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Send(StatsMsg{Stats: stats()})
		}
	}
}

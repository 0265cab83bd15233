package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/ui"
)

type detailKeyMap struct {
	Back key.Binding
	Open key.Binding
	Up   key.Binding
	Down key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k detailKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Back}
}

// FullHelp returns keybindings for the expanded help view
func (k detailKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Up, k.Down, k.Open, k.Back}}
}

// DetailModel shows every field of one resolved service, TXT records
// included, in a scrolling viewport.
type DetailModel struct {
	Service       service.Resolved
	BackRequested bool
	Viewport      viewport.Model
	Keys          detailKeyMap
}

// NewDetailModel creates a detail screen for svc
func NewDetailModel(svc service.Resolved, width, height int) DetailModel {
	vp := viewport.New(max(width-6, 20), max(height-8, 5))
	vp.SetContent(renderDetails(svc))
	return DetailModel{
		Service:  svc,
		Viewport: vp,
		Keys: detailKeyMap{
			Back: key.NewBinding(key.WithKeys("esc", "backspace", "q"), key.WithHelp("esc", "back")),
			Open: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
			Up:   key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
			Down: key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
		},
	}
}

// Update handles scrolling and the back key
func (m DetailModel) Update(msg tea.Msg) (DetailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Viewport.Width = max(msg.Width-6, 20)
		m.Viewport.Height = max(msg.Height-8, 5)
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, m.Keys.Back) {
			m.BackRequested = true
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	return m, cmd
}

// View renders the detail screen content
func (m DetailModel) View() string {
	return TitleStyle.Render(m.Service.ServiceName) + "\n" + m.Viewport.View()
}

func renderDetails(svc service.Resolved) string {
	details := ui.ServiceDetails(svc)
	width := 0
	for _, d := range details {
		width = max(width, len(d.Key))
	}
	lines := make([]string, len(details))
	for i, d := range details {
		lines[i] = SubtitleStyle.Render(d.Key+":"+strings.Repeat(" ", width-len(d.Key))) + "  " + ItemStyle.Render(d.Value)
	}
	return strings.Join(lines, "\n")
}

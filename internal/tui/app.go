package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/mdnshelper/internal/config"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenBrowse Screen = "browse"
	ScreenDetail Screen = "detail"
)

// Config wires the browser to its collaborators
type Config struct {
	Orchestrator Orchestrator
	Store        *config.Store // bookmarks and shortcuts, optional
	Opener       Opener        // URL launcher, optional
	ScanTimeout  time.Duration // for the progress bar
	Backends     string        // shown in the header, e.g. "bonjour/bonjour"
	AutoScan     bool          // start a scan when the program starts
}

// AppModel is the top-level model that routes messages between screens
type AppModel struct {
	CurrentScreen Screen

	Browse BrowseModel
	Detail DetailModel

	cfg    Config
	ctx    context.Context
	Width  int
	Height int
}

// NewAppModel creates the application model. The bridge must already be
// subscribed to the orchestrator.
func NewAppModel(ctx context.Context, cfg Config, bridge *eventBridge) AppModel {
	return AppModel{
		CurrentScreen: ScreenBrowse,
		Browse:        NewBrowseModel(ctx, cfg, bridge),
		cfg:           cfg,
		ctx:           ctx,
	}
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	cmd := m.Browse.Init()
	if m.cfg.AutoScan {
		orch := m.cfg.Orchestrator
		ctx := m.ctx
		return tea.Batch(cmd, func() tea.Msg {
			orch.StartDiscovery(ctx)
			return nil
		})
	}
	return cmd
}

// Update handles all messages and routes them to the active screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd tea.Cmd
		m.Detail, cmd = m.Detail.Update(msg)
		browse, bcmd := m.Browse.Update(msg)
		m.Browse = browse.(BrowseModel)
		return m, tea.Batch(cmd, bcmd)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.CurrentScreen == ScreenDetail {
			if key.Matches(msg, m.Detail.Keys.Open) {
				return m, openURL(m.ctx, m.cfg.Opener, m.Detail.Service)
			}
			var cmd tea.Cmd
			m.Detail, cmd = m.Detail.Update(msg)
			if m.Detail.BackRequested {
				m.CurrentScreen = ScreenBrowse
			}
			return m, cmd
		}
	}

	// Events and action results always reach the browse model so the
	// list stays current while the detail screen is shown.
	browse, cmd := m.Browse.Update(msg)
	m.Browse = browse.(BrowseModel)

	if m.Browse.DetailRequested {
		m.Browse.DetailRequested = false
		if svc, ok := m.Browse.SelectedService(); ok {
			m.Detail = NewDetailModel(svc, m.Width, m.Height)
			m.CurrentScreen = ScreenDetail
		}
	}
	return m, cmd
}

// View renders the current screen inside the application container
func (m AppModel) View() string {
	header := BuildHeaderContent(m.cfg.Backends)
	switch m.CurrentScreen {
	case ScreenDetail:
		return RenderApplicationContainer(header, m.Detail.View(), m.Browse.Help.View(m.Detail.Keys), m.Width, m.Height)
	default:
		return RenderApplicationContainer(header, m.Browse.View(), m.Browse.Help.View(m.Browse.Keys), m.Width, m.Height)
	}
}

// Run subscribes to the orchestrator and runs the browser until the user
// quits or ctx ends.
func Run(ctx context.Context, cfg Config, opts ...tea.ProgramOption) error {
	if cfg.Orchestrator == nil {
		return fmt.Errorf("tui: orchestrator is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := newEventBridge()
	unsubscribe := cfg.Orchestrator.Subscribe(bridge.push)
	defer unsubscribe()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewAppModel(ctx, cfg, bridge), opts...)
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		// interrupted by the caller
		return nil
	}
	return err
}

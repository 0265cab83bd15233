package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/ui"
	"github.com/muurk/mdnshelper/internal/urls"
)

// statusMsg reports the outcome of a background action
type statusMsg struct {
	text string
	err  error
}

// browseKeyMap defines key bindings for the browse screen
type browseKeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Details  key.Binding
	Scan     key.Binding
	Resolve  key.Binding
	Bookmark key.Binding
	Open     key.Binding
	Pin      key.Binding
	Clear    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Scan, k.Details, k.Open, k.Bookmark, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Details},
		{k.Scan, k.Resolve, k.Clear},
		{k.Bookmark, k.Pin, k.Open},
		{k.Help, k.Quit},
	}
}

func newBrowseKeyMap() browseKeyMap {
	return browseKeyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
		Details:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
		Scan:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start/stop scan")),
		Resolve:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "resolve again")),
		Bookmark: key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "bookmark")),
		Open:     key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open")),
		Pin:      key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pin shortcut")),
		Clear:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear list")),
		Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		Quit:     key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
	}
}

// serviceItem wraps a resolved service for use with bubbles/list
type serviceItem struct {
	svc        service.Resolved
	bookmarked bool
}

func (i serviceItem) FilterValue() string {
	return i.svc.ServiceName + " " + i.svc.ServiceType + " " + i.svc.HostAddress
}

// serviceDelegate renders one service per two lines
type serviceDelegate struct{}

func (d serviceDelegate) Height() int  { return 2 }
func (d serviceDelegate) Spacing() int { return 1 }

func (d serviceDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d serviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(serviceItem)
	if !ok {
		return
	}

	marker := "  "
	if it.bookmarked {
		marker = BookmarkStyle.Render(ui.BookmarkMarker) + " "
	}

	name := it.svc.ServiceName
	if index == m.Index() {
		name = SelectedItemStyle.Render("→ " + name)
	} else {
		name = ItemStyle.Render("  " + name)
	}

	detail := SubtitleStyle.Render(it.svc.ServiceType)
	if it.svc.HasAddress() {
		detail += "  " + AddressStyle.Render(it.svc.Address())
	}

	_, _ = fmt.Fprintf(w, "%s%s\n    %s", marker, name, detail)
}

// BrowseModel is the live service list: scan state, resolved services and
// the actions available on the selected one.
type BrowseModel struct {
	orch    Orchestrator
	store   *config.Store
	opener  Opener
	bridge  *eventBridge
	ctx     context.Context
	timeout time.Duration

	Scanning  bool
	ScanStart time.Time
	Status    string
	Err       string

	// DetailRequested is set when the user asks for the selected
	// service's details; the app switches screens and clears it.
	DetailRequested bool

	Width       int
	Height      int
	ServiceList list.Model
	Spinner     spinner.Model
	ProgressBar progress.Model
	Help        help.Model
	Keys        browseKeyMap
}

// NewBrowseModel creates the browse screen model
func NewBrowseModel(ctx context.Context, cfg Config, bridge *eventBridge) BrowseModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	l := list.New(nil, serviceDelegate{}, 0, 0)
	l.Title = "Services"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.KeyMap.Quit.SetEnabled(false)
	l.Styles.Title = TitleStyle

	m := BrowseModel{
		orch:        cfg.Orchestrator,
		store:       cfg.Store,
		opener:      cfg.Opener,
		bridge:      bridge,
		ctx:         ctx,
		timeout:     cfg.ScanTimeout,
		ServiceList: l,
		Spinner:     s,
		ProgressBar: bar,
		Help:        help.New(),
		Keys:        newBrowseKeyMap(),
	}
	m.Scanning = m.orch.State() == discovery.StateDiscovering
	m.refresh()
	return m
}

// Init starts listening for orchestrator events
func (m BrowseModel) Init() tea.Cmd {
	return tea.Batch(m.bridge.wait(m.ctx), m.Spinner.Tick)
}

// Update handles messages and updates the model
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.ServiceList.SetSize(msg.Width-4, max(msg.Height-12, 4))
		return m, nil

	case eventMsg:
		m.applyEvent(discovery.Event(msg))
		return m, m.bridge.wait(m.ctx)

	case statusMsg:
		if msg.err != nil {
			m.Err = msg.err.Error()
			m.Status = ""
		} else {
			m.Err = ""
			m.Status = msg.text
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.ServiceList.FilterState() != list.Filtering {
			if handled, next, cmd := m.handleKey(msg); handled {
				return next, cmd
			}
		}
	}

	var cmd tea.Cmd
	m.ServiceList, cmd = m.ServiceList.Update(msg)
	return m, cmd
}

func (m BrowseModel) handleKey(msg tea.KeyMsg) (bool, BrowseModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		if msg.String() == "esc" && m.ServiceList.FilterState() == list.FilterApplied {
			return false, m, nil // esc clears the filter first
		}
		return true, m, tea.Quit

	case key.Matches(msg, m.Keys.Help):
		m.Help.ShowAll = !m.Help.ShowAll
		return true, m, nil

	case key.Matches(msg, m.Keys.Scan):
		if m.Scanning {
			m.orch.StopDiscovery()
			m.Status = "Stopping scan"
		} else {
			m.orch.StartDiscovery(m.ctx)
			m.Status = "Starting scan"
		}
		m.Err = ""
		return true, m, nil

	case key.Matches(msg, m.Keys.Clear):
		m.orch.ClearServices()
		m.refresh()
		m.Status = "List cleared"
		return true, m, nil
	}

	svc, ok := m.selected()
	if !ok {
		return false, m, nil
	}

	switch {
	case key.Matches(msg, m.Keys.Details):
		m.DetailRequested = true
		return true, m, nil

	case key.Matches(msg, m.Keys.Resolve):
		m.orch.ResolveService(m.ctx, svc.Identity)
		return true, m, nil

	case key.Matches(msg, m.Keys.Open):
		return true, m, openURL(m.ctx, m.opener, svc)

	case key.Matches(msg, m.Keys.Bookmark):
		return true, m, toggleBookmark(m.store, svc)

	case key.Matches(msg, m.Keys.Pin):
		return true, m, pinShortcut(m.store, svc)
	}
	return false, m, nil
}

func (m *BrowseModel) applyEvent(ev discovery.Event) {
	switch ev.Kind {
	case discovery.EventRunning:
		m.Scanning = ev.Running
		if ev.Running {
			m.ScanStart = ev.At
			m.Status = "Scanning"
		} else {
			m.Status = "Scan stopped"
		}
	case discovery.EventFound:
		m.Status = "Found " + ev.Service.ServiceName
	case discovery.EventLost:
		m.Status = "Lost " + ev.Name
	case discovery.EventResolving:
		m.Status = "Resolving " + ev.Identity.String()
	case discovery.EventResolveFailed:
		m.Err = fmt.Sprintf("Could not resolve %s (%s)", ev.Identity, ev.Status)
	case discovery.EventError:
		m.Err = ev.Message
	}
	m.refresh()
}

// refresh rebuilds the list from the orchestrator's snapshot, keeping the
// selection on the same service when it is still present.
func (m *BrowseModel) refresh() {
	var keep service.Key
	if svc, ok := m.selected(); ok {
		keep = svc.Key()
	}

	services := m.orch.Services()
	items := make([]list.Item, len(services))
	sel := 0
	for i, svc := range services {
		bookmarked := svc.Bookmarked
		if m.store != nil {
			bookmarked = m.store.IsBookmarked(svc.ServiceType, svc.ServiceName)
		}
		items[i] = serviceItem{svc: svc, bookmarked: bookmarked}
		if svc.Key() == keep {
			sel = i
		}
	}
	m.ServiceList.SetItems(items)
	if len(items) > 0 {
		m.ServiceList.Select(sel)
	}
}

func (m BrowseModel) selected() (service.Resolved, bool) {
	it, ok := m.ServiceList.SelectedItem().(serviceItem)
	if !ok {
		return service.Resolved{}, false
	}
	return it.svc, true
}

// SelectedService returns the service under the cursor
func (m BrowseModel) SelectedService() (service.Resolved, bool) {
	return m.selected()
}

// View renders the browse screen content (without the container)
func (m BrowseModel) View() string {
	var b strings.Builder

	if m.Scanning {
		line := m.Spinner.View() + " " + SubtitleStyle.Render("Scanning")
		if m.timeout > 0 && !m.ScanStart.IsZero() {
			elapsed := time.Since(m.ScanStart)
			pct := float64(elapsed) / float64(m.timeout)
			if pct > 1 {
				pct = 1
			}
			line += "  " + m.ProgressBar.ViewAs(pct)
		}
		if q := m.orch.QueueLen(); q > 0 {
			line += "  " + SubtitleStyle.Render(fmt.Sprintf("%d queued", q))
		}
		b.WriteString(line)
	} else {
		b.WriteString(SubtitleStyle.Render("Idle. Press s to scan."))
	}
	b.WriteString("\n")

	if len(m.ServiceList.Items()) == 0 {
		b.WriteString("\n")
		if m.Scanning {
			b.WriteString(SubtitleStyle.Render("  Waiting for services..."))
		} else {
			b.WriteString(WarningStyle.Render("  ⚠ No services found"))
		}
		b.WriteString("\n")
	} else {
		b.WriteString(m.ServiceList.View())
		b.WriteString("\n")
	}

	if m.store != nil {
		if missing := m.store.UnavailableBookmarks(m.orch.Services()); len(missing) > 0 {
			names := make([]string, len(missing))
			for i, bm := range missing {
				names[i] = bm.Name
			}
			b.WriteString("\n")
			b.WriteString(SubtitleStyle.Render("Unavailable bookmarks: " + strings.Join(names, ", ")))
			b.WriteString("\n")
		}
	}

	switch {
	case m.Err != "":
		b.WriteString("\n" + ErrorStyle.Render("✗ "+m.Err))
	case m.Status != "":
		b.WriteString("\n" + StatusStyle.Render(m.Status))
	}

	return lipgloss.NewStyle().PaddingLeft(1).Render(b.String())
}

func toggleBookmark(store *config.Store, svc service.Resolved) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		var on bool
		err := store.Update(func(r *config.Registry) error {
			on = r.ToggleBookmark(svc.ServiceType, svc.ServiceName)
			return nil
		})
		if err != nil {
			return statusMsg{err: fmt.Errorf("save bookmark: %w", err)}
		}
		if on {
			return statusMsg{text: "Bookmarked " + svc.ServiceName}
		}
		return statusMsg{text: "Removed bookmark " + svc.ServiceName}
	}
}

func pinShortcut(store *config.Store, svc service.Resolved) tea.Cmd {
	if store == nil {
		return nil
	}
	return func() tea.Msg {
		var id string
		err := store.Update(func(r *config.Registry) error {
			sc, err := r.PinShortcut(config.Shortcut{
				Type:     svc.ServiceType,
				Name:     svc.ServiceName,
				Domain:   svc.Domain,
				LastHost: svc.HostAddress,
				LastPort: svc.Port,
			})
			if err != nil {
				return err
			}
			id = sc.ID()
			return nil
		})
		if err != nil {
			return statusMsg{err: fmt.Errorf("pin shortcut: %w", err)}
		}
		return statusMsg{text: "Pinned shortcut " + id}
	}
}

func openURL(ctx context.Context, opener Opener, svc service.Resolved) tea.Cmd {
	u := urls.ServiceURL(svc)
	if u == "" {
		return func() tea.Msg {
			return statusMsg{err: fmt.Errorf("%s has no address", svc.ServiceName)}
		}
	}
	if opener == nil {
		return func() tea.Msg { return statusMsg{text: u} }
	}
	return func() tea.Msg {
		if err := opener.Open(ctx, u); err != nil {
			return statusMsg{err: fmt.Errorf("open %s: %w", u, err)}
		}
		return statusMsg{text: "Opened " + u}
	}
}

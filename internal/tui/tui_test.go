package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/service"
)

type fakeOrch struct {
	state    discovery.State
	services []service.Resolved
	started  int
	stopped  int
	cleared  int
	resolved []service.Identity
}

func (f *fakeOrch) StartDiscovery(context.Context) { f.started++ }
func (f *fakeOrch) StopDiscovery()                 { f.stopped++ }
func (f *fakeOrch) ResolveService(_ context.Context, id service.Identity) {
	f.resolved = append(f.resolved, id)
}
func (f *fakeOrch) Subscribe(func(discovery.Event)) func() { return func() {} }
func (f *fakeOrch) Services() []service.Resolved           { return f.services }
func (f *fakeOrch) ClearServices()                         { f.cleared++; f.services = nil }
func (f *fakeOrch) State() discovery.State                 { return f.state }
func (f *fakeOrch) QueueLen() int                          { return 0 }

type fakeOpener struct{ opened []string }

func (o *fakeOpener) Open(_ context.Context, url string) error {
	o.opened = append(o.opened, url)
	return nil
}

func nas() service.Resolved {
	return service.Resolved{
		Identity:    service.NewBonjourInstance("nas", "_http._tcp", "local."),
		ServiceType: "_http._tcp",
		ServiceName: "nas",
		Domain:      "local.",
		HostAddress: "192.168.1.10",
		Port:        5000,
	}
}

func printer() service.Resolved {
	return service.Resolved{
		Identity:    service.NewBonjourInstance("printer", "_ipp._tcp", "local."),
		ServiceType: "_ipp._tcp",
		ServiceName: "printer",
		Domain:      "local.",
		HostAddress: "192.168.1.20",
		Port:        631,
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestBrowse(t *testing.T, orch *fakeOrch, store *config.Store, opener Opener) BrowseModel {
	t.Helper()
	m := NewBrowseModel(context.Background(), Config{
		Orchestrator: orch,
		Store:        store,
		Opener:       opener,
	}, newEventBridge())
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(BrowseModel)
}

func update(t *testing.T, m BrowseModel, msg tea.Msg) (BrowseModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	bm, ok := next.(BrowseModel)
	require.True(t, ok)
	return bm, cmd
}

func TestBrowseScanToggle(t *testing.T) {
	orch := &fakeOrch{}
	m := newTestBrowse(t, orch, nil, nil)
	assert.False(t, m.Scanning)

	m, _ = update(t, m, runes("s"))
	assert.Equal(t, 1, orch.started)

	m, cmd := update(t, m, eventMsg{Kind: discovery.EventRunning, Running: true})
	assert.True(t, m.Scanning)
	assert.NotNil(t, cmd, "browse keeps waiting for events")

	m, _ = update(t, m, runes("s"))
	assert.Equal(t, 1, orch.stopped)

	m, _ = update(t, m, eventMsg{Kind: discovery.EventRunning, Running: false})
	assert.False(t, m.Scanning)
	assert.Equal(t, "Scan stopped", m.Status)
}

func TestBrowseEventsRefreshList(t *testing.T) {
	orch := &fakeOrch{}
	m := newTestBrowse(t, orch, nil, nil)
	assert.Empty(t, m.ServiceList.Items())

	orch.services = []service.Resolved{nas(), printer()}
	m, _ = update(t, m, eventMsg{Kind: discovery.EventFound, Service: printer()})
	require.Len(t, m.ServiceList.Items(), 2)
	assert.Equal(t, "Found printer", m.Status)

	// selection follows the service across refreshes
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	sel, ok := m.SelectedService()
	require.True(t, ok)
	assert.Equal(t, "printer", sel.ServiceName)

	orch.services = []service.Resolved{printer()}
	m, _ = update(t, m, eventMsg{Kind: discovery.EventLost, Name: "nas"})
	sel, ok = m.SelectedService()
	require.True(t, ok)
	assert.Equal(t, "printer", sel.ServiceName)
	assert.Equal(t, "Lost nas", m.Status)

	m, _ = update(t, m, eventMsg{Kind: discovery.EventError, Message: "socket closed"})
	assert.Equal(t, "socket closed", m.Err)
}

func TestBrowseResolveAndClear(t *testing.T) {
	orch := &fakeOrch{services: []service.Resolved{nas()}}
	m := newTestBrowse(t, orch, nil, nil)

	m, _ = update(t, m, runes("r"))
	require.Len(t, orch.resolved, 1)
	assert.Equal(t, nas().Identity, orch.resolved[0])

	m, _ = update(t, m, runes("c"))
	assert.Equal(t, 1, orch.cleared)
	assert.Empty(t, m.ServiceList.Items())
}

func TestBrowseBookmarkAndPin(t *testing.T) {
	store := config.NewStore(config.NewRegistry(), false)
	orch := &fakeOrch{services: []service.Resolved{nas()}}
	m := newTestBrowse(t, orch, store, nil)

	m, cmd := update(t, m, runes("b"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.True(t, store.IsBookmarked("_http._tcp", "nas"))
	assert.Equal(t, "Bookmarked nas", m.Status)
	item := m.ServiceList.Items()[0].(serviceItem)
	assert.True(t, item.bookmarked)

	m, cmd = update(t, m, runes("p"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Empty(t, m.Err)
	shortcuts := store.Shortcuts()
	require.Len(t, shortcuts, 1)
	assert.Equal(t, "192.168.1.10", shortcuts[0].LastHost)
}

func TestBrowseOpen(t *testing.T) {
	opener := &fakeOpener{}
	noAddr := nas()
	noAddr.ServiceName = "nas-offline"
	noAddr.HostAddress = ""
	orch := &fakeOrch{services: []service.Resolved{nas(), noAddr}}
	m := newTestBrowse(t, orch, nil, opener)

	m, cmd := update(t, m, runes("o"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, []string{"http://192.168.1.10:5000"}, opener.opened)
	assert.Equal(t, "Opened http://192.168.1.10:5000", m.Status)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, cmd = update(t, m, runes("o"))
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.Err, "no address")
	assert.Len(t, opener.opened, 1)
}

func TestAppDetailScreen(t *testing.T) {
	orch := &fakeOrch{services: []service.Resolved{nas()}}
	app := NewAppModel(context.Background(), Config{Orchestrator: orch}, newEventBridge())

	next, _ := app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	app = next.(AppModel)
	require.Equal(t, ScreenDetail, app.CurrentScreen)
	assert.Equal(t, "nas", app.Detail.Service.ServiceName)
	assert.Contains(t, app.View(), "192.168.1.10:5000")

	// events still reach the list while details are shown
	orch.services = []service.Resolved{nas(), printer()}
	next, _ = app.Update(eventMsg{Kind: discovery.EventFound, Service: printer()})
	app = next.(AppModel)
	assert.Len(t, app.Browse.ServiceList.Items(), 2)

	next, _ = app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app = next.(AppModel)
	assert.Equal(t, ScreenBrowse, app.CurrentScreen)
}

func TestAppQuit(t *testing.T) {
	app := NewAppModel(context.Background(), Config{Orchestrator: &fakeOrch{}}, newEventBridge())
	_, cmd := app.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestEventBridge(t *testing.T) {
	b := newEventBridge()
	for i := 0; i < eventBuffer+10; i++ {
		b.push(discovery.Event{Kind: discovery.EventFound})
	}
	assert.EqualValues(t, 10, b.dropped.Load())

	msg := b.wait(context.Background())()
	assert.IsType(t, eventMsg{}, msg)

	empty := newEventBridge()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, empty.wait(ctx)())
}

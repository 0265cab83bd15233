package server

import (
	"time"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/urls"
)

// Message types sent over the event stream
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
	MessageError    = "error"
)

// Message is one frame of the event stream.
type Message struct {
	Type     string        `json:"type"`
	Event    *EventView    `json:"event,omitempty"`
	Snapshot *SnapshotView `json:"snapshot,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// EventView is the wire form of a discovery.Event.
type EventView struct {
	Kind     string       `json:"kind"`
	Status   string       `json:"status"`
	Session  string       `json:"session,omitempty"`
	Running  *bool        `json:"running,omitempty"`
	Service  *ServiceView `json:"service,omitempty"`
	Name     string       `json:"name,omitempty"`
	Identity string       `json:"identity,omitempty"`
	Message  string       `json:"message,omitempty"`
	At       time.Time    `json:"at"`
}

// ServiceView is the wire form of a resolved service.
type ServiceView struct {
	Type       string      `json:"type"`
	Name       string      `json:"name"`
	Domain     string      `json:"domain"`
	Host       string      `json:"host,omitempty"`
	Address    string      `json:"address,omitempty"`
	Port       int         `json:"port,omitempty"`
	URL        string      `json:"url,omitempty"`
	TXT        service.TXT `json:"txt"`
	Bookmarked bool        `json:"bookmarked"`
	ResolvedAt time.Time   `json:"resolved_at"`
}

// StateView describes the orchestrator state.
type StateView struct {
	State     string `json:"state"`
	Session   string `json:"session,omitempty"`
	Running   bool   `json:"running"`
	Resolving bool   `json:"resolving"`
	QueueLen  int    `json:"queue_len"`
}

// SnapshotView is sent to a client when it connects.
type SnapshotView struct {
	StateView
	Services []ServiceView `json:"services"`
}

// BookmarkView is the wire form of a bookmark.
type BookmarkView struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// ShortcutView is the wire form of a pinned shortcut.
type ShortcutView struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	Domain   string    `json:"domain"`
	Label    string    `json:"label"`
	LastHost string    `json:"last_host,omitempty"`
	LastPort int       `json:"last_port,omitempty"`
	LastUsed time.Time `json:"last_used,omitempty"`
}

// PreferencesView is the wire form of the backend preferences.
type PreferencesView struct {
	DiscoverBackend  service.Backend   `json:"discover_backend"`
	ResolveBackend   service.Backend   `json:"resolve_backend"`
	Supported        []service.Backend `json:"supported_resolvers,omitempty"`
	PreferredBrowser string            `json:"preferred_browser,omitempty"`
	ScanTimeout      int               `json:"scan_timeout,omitempty"`
	ResolveWindow    int               `json:"resolve_window,omitempty"`
	ShortcutTimeout  int               `json:"shortcut_timeout,omitempty"`
}

func newServiceView(r service.Resolved) ServiceView {
	return ServiceView{
		Type:       r.ServiceType,
		Name:       r.ServiceName,
		Domain:     r.Domain,
		Host:       r.HostName,
		Address:    r.HostAddress,
		Port:       r.Port,
		URL:        urls.ServiceURL(r),
		TXT:        r.Extra,
		Bookmarked: r.Bookmarked,
		ResolvedAt: r.ResolvedAt,
	}
}

// NewServiceViews converts resolved services to their wire form.
func NewServiceViews(list []service.Resolved) []ServiceView {
	out := make([]ServiceView, len(list))
	for i, r := range list {
		out[i] = newServiceView(r)
	}
	return out
}

func newEventView(ev discovery.Event) *EventView {
	v := &EventView{
		Kind:    ev.Kind.String(),
		Status:  ev.Status.String(),
		Session: ev.Session,
		Name:    ev.Name,
		Message: ev.Message,
		At:      ev.At,
	}
	switch ev.Kind {
	case discovery.EventRunning:
		running := ev.Running
		v.Running = &running
	case discovery.EventFound, discovery.EventUpdated, discovery.EventLost:
		svc := newServiceView(ev.Service)
		v.Service = &svc
	case discovery.EventResolving, discovery.EventResolveFailed:
		v.Identity = ev.Identity.String()
	}
	return v
}

func newStateView(o Orchestrator) StateView {
	state := o.State()
	return StateView{
		State:     state.String(),
		Session:   o.Session(),
		Running:   state == discovery.StateDiscovering,
		Resolving: o.Resolving(),
		QueueLen:  o.QueueLen(),
	}
}

func newShortcutView(sc config.Shortcut) ShortcutView {
	return ShortcutView{
		ID:       sc.ID(),
		Type:     sc.Type,
		Name:     sc.Name,
		Domain:   sc.Domain,
		Label:    sc.DisplayName(),
		LastHost: sc.LastHost,
		LastPort: sc.LastPort,
		LastUsed: sc.LastUsed,
	}
}

func newPreferencesView(p config.Preferences) PreferencesView {
	return PreferencesView{
		DiscoverBackend:  p.DiscoverBackend,
		ResolveBackend:   service.EffectiveResolver(p.DiscoverBackend, p.ResolveBackend),
		Supported:        service.Supported(p.DiscoverBackend),
		PreferredBrowser: p.PreferredBrowser,
		ScanTimeout:      p.ScanTimeout,
		ResolveWindow:    p.ResolveWindow,
		ShortcutTimeout:  p.ShortcutTimeout,
	}
}

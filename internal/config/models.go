package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/muurk/mdnshelper/internal/service"
)

// Registry represents the entire user configuration file.
// This stores preferences, bookmarks and pinned shortcuts.
type Registry struct {
	Version     int                  `yaml:"version"`
	Preferences *Preferences         `yaml:"preferences,omitempty"`
	Bookmarks   []Bookmark           `yaml:"bookmarks,omitempty"`
	Shortcuts   map[string]*Shortcut `yaml:"shortcuts,omitempty"` // Keyed by ShortcutID

	// path is where the registry was loaded from, empty for the default location
	path string
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DiscoverBackend  service.Backend `yaml:"discover_backend"`    // Backend used to browse
	ResolveBackend   service.Backend `yaml:"resolve_backend"`     // Backend used to resolve
	PreferredBrowser string          `yaml:"preferred_browser"`   // "default", "print" or a command
	ScanTimeout      int             `yaml:"scan_timeout"`        // Live scan duration in seconds
	ResolveWindow    int             `yaml:"resolve_window"`      // Per-resolution window in seconds
	ShortcutTimeout  int             `yaml:"shortcut_timeout"`    // Shortcut launch timeout in seconds
	BrowseType       string          `yaml:"browse_type"`         // Type browsed by a scan
	Domain           string          `yaml:"domain"`              // Browse domain
	NativeResolve    string          `yaml:"native_resolve_mode"` // "continuous" or "oneshot"
}

// Native resolve modes
const (
	NativeResolveContinuous = "continuous"
	NativeResolveOneShot    = "oneshot"
)

// Bookmark marks a (service type, service name) pair.
type Bookmark struct {
	Type    string    `yaml:"type"`
	Name    string    `yaml:"name"`
	AddedAt time.Time `yaml:"added_at,omitempty"`
}

// Key returns the bookmark's service key.
func (b Bookmark) Key() service.Key {
	return service.Key{Type: b.Type, Name: b.Name}
}

// Shortcut is a pinned service that can be launched without a live scan.
type Shortcut struct {
	Type      string    `yaml:"service_type"`
	Name      string    `yaml:"service_name"`
	Domain    string    `yaml:"service_domain,omitempty"`
	Label     string    `yaml:"label,omitempty"`     // Display name, defaults to Name
	LastHost  string    `yaml:"last_host,omitempty"` // Last resolved address
	LastPort  int       `yaml:"last_port,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	LastUsed  time.Time `yaml:"last_used,omitempty"`
}

// ID returns the shortcut's registry key.
func (s *Shortcut) ID() string {
	return ShortcutID(s.Type, s.Name)
}

// DisplayName returns the label, falling back to the service name.
func (s *Shortcut) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Name
}

// Identity rebuilds the shortcut identity used to resolve the service.
func (s *Shortcut) Identity() (service.Identity, error) {
	return service.NewShortcutRecord(s.Type, s.Name, s.Domain)
}

// ShortcutID builds the registry key of a shortcut.
func ShortcutID(serviceType, serviceName string) string {
	return serviceType + "/" + serviceName
}

// DefaultPreferences returns the preferences used when none are stored.
func DefaultPreferences() *Preferences {
	return &Preferences{
		DiscoverBackend:  service.BackendBonjour,
		ResolveBackend:   service.BackendBonjour,
		PreferredBrowser: "default",
		ScanTimeout:      10,
		ResolveWindow:    3,
		ShortcutTimeout:  15,
		BrowseType:       service.MetaQueryType,
		Domain:           service.LocalDomain,
		NativeResolve:    NativeResolveContinuous,
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Preferences: DefaultPreferences(),
		Shortcuts:   make(map[string]*Shortcut),
	}
}

// normalize fills missing preference fields with defaults and repairs an
// incompatible backend pair.
func (p *Preferences) normalize() {
	def := DefaultPreferences()
	if p.DiscoverBackend == "" {
		p.DiscoverBackend = def.DiscoverBackend
	}
	if p.ResolveBackend == "" {
		p.ResolveBackend = def.ResolveBackend
	}
	p.ResolveBackend = service.EffectiveResolver(p.DiscoverBackend, p.ResolveBackend)
	if p.PreferredBrowser == "" {
		p.PreferredBrowser = def.PreferredBrowser
	}
	if p.ScanTimeout <= 0 {
		p.ScanTimeout = def.ScanTimeout
	}
	if p.ResolveWindow <= 0 {
		p.ResolveWindow = def.ResolveWindow
	}
	if p.ShortcutTimeout <= 0 {
		p.ShortcutTimeout = def.ShortcutTimeout
	}
	if p.BrowseType == "" {
		p.BrowseType = def.BrowseType
	}
	if p.Domain == "" {
		p.Domain = def.Domain
	}
	if p.NativeResolve != NativeResolveOneShot {
		p.NativeResolve = NativeResolveContinuous
	}
}

// ScanDuration returns the scan timeout as a duration.
func (p Preferences) ScanDuration() time.Duration {
	return time.Duration(p.ScanTimeout) * time.Second
}

// ResolveDuration returns the resolve window as a duration.
func (p Preferences) ResolveDuration() time.Duration {
	return time.Duration(p.ResolveWindow) * time.Second
}

// ShortcutDuration returns the shortcut launch timeout as a duration.
func (p Preferences) ShortcutDuration() time.Duration {
	return time.Duration(p.ShortcutTimeout) * time.Second
}

// ContinuousNativeResolve reports whether the native backend should keep
// subscriptions open.
func (p Preferences) ContinuousNativeResolve() bool {
	return p.NativeResolve != NativeResolveOneShot
}

// SetDiscoverBackend selects the discovery backend. The resolving backend is
// switched too when the current one cannot be combined with b.
func (r *Registry) SetDiscoverBackend(b service.Backend) {
	r.ensurePreferences()
	r.Preferences.DiscoverBackend = b
	r.Preferences.ResolveBackend = service.EffectiveResolver(b, r.Preferences.ResolveBackend)
}

// SetResolveBackend selects the resolving backend. It fails when b cannot
// resolve what the current discovery backend finds.
func (r *Registry) SetResolveBackend(b service.Backend) error {
	r.ensurePreferences()
	if !service.ValidPair(r.Preferences.DiscoverBackend, b) {
		return fmt.Errorf("%s cannot resolve services discovered by %s (supported: %v)",
			b, r.Preferences.DiscoverBackend, service.Supported(r.Preferences.DiscoverBackend))
	}
	r.Preferences.ResolveBackend = b
	return nil
}

func (r *Registry) ensurePreferences() {
	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
	}
}

// IsBookmarked reports whether the (type, name) pair is bookmarked.
func (r *Registry) IsBookmarked(serviceType, serviceName string) bool {
	for _, b := range r.Bookmarks {
		if b.Type == serviceType && b.Name == serviceName {
			return true
		}
	}
	return false
}

// AddBookmark bookmarks a service. Adding an existing bookmark does nothing.
func (r *Registry) AddBookmark(serviceType, serviceName string) {
	if r.IsBookmarked(serviceType, serviceName) {
		return
	}
	r.Bookmarks = append(r.Bookmarks, Bookmark{
		Type:    serviceType,
		Name:    serviceName,
		AddedAt: time.Now(),
	})
}

// RemoveBookmark removes a bookmark and reports whether it existed.
func (r *Registry) RemoveBookmark(serviceType, serviceName string) bool {
	for i, b := range r.Bookmarks {
		if b.Type == serviceType && b.Name == serviceName {
			r.Bookmarks = append(r.Bookmarks[:i], r.Bookmarks[i+1:]...)
			return true
		}
	}
	return false
}

// ToggleBookmark flips a bookmark and returns the new state.
func (r *Registry) ToggleBookmark(serviceType, serviceName string) bool {
	if r.RemoveBookmark(serviceType, serviceName) {
		return false
	}
	r.AddBookmark(serviceType, serviceName)
	return true
}

// UnavailableBookmarks returns the bookmarks with no matching service in
// resolved, in bookmark order.
func (r *Registry) UnavailableBookmarks(resolved []service.Resolved) []Bookmark {
	present := make(map[service.Key]bool, len(resolved))
	for _, s := range resolved {
		present[s.Key()] = true
	}
	var out []Bookmark
	for _, b := range r.Bookmarks {
		if !present[b.Key()] {
			out = append(out, b)
		}
	}
	return out
}

// PinShortcut stores a shortcut, replacing one with the same ID.
func (r *Registry) PinShortcut(s Shortcut) (*Shortcut, error) {
	if _, err := s.Identity(); err != nil {
		return nil, fmt.Errorf("invalid shortcut: %w", err)
	}
	if r.Shortcuts == nil {
		r.Shortcuts = make(map[string]*Shortcut)
	}
	if s.Domain == "" {
		s.Domain = service.LocalDomain
	}
	if existing, ok := r.Shortcuts[s.ID()]; ok && !existing.CreatedAt.IsZero() {
		s.CreatedAt = existing.CreatedAt
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	r.Shortcuts[s.ID()] = &s
	return &s, nil
}

// GetShortcut returns a shortcut by ID or nil.
func (r *Registry) GetShortcut(id string) *Shortcut {
	return r.Shortcuts[id]
}

// RemoveShortcut deletes a shortcut and reports whether it existed.
func (r *Registry) RemoveShortcut(id string) bool {
	if _, ok := r.Shortcuts[id]; !ok {
		return false
	}
	delete(r.Shortcuts, id)
	return true
}

// ListShortcuts returns the shortcuts sorted by display name.
func (r *Registry) ListShortcuts() []*Shortcut {
	out := make([]*Shortcut, 0, len(r.Shortcuts))
	for _, s := range r.Shortcuts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName() != out[j].DisplayName() {
			return out[i].DisplayName() < out[j].DisplayName()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// UpdateShortcutSeen records the address a shortcut last resolved to.
func (r *Registry) UpdateShortcutSeen(id, host string, port int) {
	s := r.Shortcuts[id]
	if s == nil {
		return
	}
	s.LastHost = host
	s.LastPort = port
	s.LastUsed = time.Now()
}

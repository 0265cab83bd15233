package config

import (
	"sync"

	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/service"
	"go.uber.org/zap"
)

// Store serialises access to a Registry for long running processes and
// notifies watchers after every change.
type Store struct {
	mu       sync.RWMutex
	reg      *Registry
	autosave bool

	watchMu  sync.Mutex
	watchers map[int]func(Preferences)
	nextID   int
}

// NewStore wraps a registry. With autosave every change is written to disk.
func NewStore(reg *Registry, autosave bool) *Store {
	if reg == nil {
		reg = NewRegistry()
	}
	reg.ensurePreferences()
	return &Store{reg: reg, autosave: autosave, watchers: make(map[int]func(Preferences))}
}

// DiscoverBackend returns the stored discovery backend.
func (s *Store) DiscoverBackend() service.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.Preferences.DiscoverBackend
}

// ResolveBackend returns the resolving backend that pairs with the stored
// discovery backend.
func (s *Store) ResolveBackend() service.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.reg.Preferences
	return service.EffectiveResolver(p.DiscoverBackend, p.ResolveBackend)
}

// IsBookmarked reports whether the (type, name) pair is bookmarked.
func (s *Store) IsBookmarked(serviceType, serviceName string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.IsBookmarked(serviceType, serviceName)
}

// Preferences returns a copy of the stored preferences.
func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.reg.Preferences
}

// Bookmarks returns a copy of the bookmark list.
func (s *Store) Bookmarks() []Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Bookmark, len(s.reg.Bookmarks))
	copy(out, s.reg.Bookmarks)
	return out
}

// UnavailableBookmarks returns bookmarks missing from resolved.
func (s *Store) UnavailableBookmarks(resolved []service.Resolved) []Bookmark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg.UnavailableBookmarks(resolved)
}

// Shortcuts returns copies of the pinned shortcuts in display order.
func (s *Store) Shortcuts() []Shortcut {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.reg.ListShortcuts()
	out := make([]Shortcut, len(list))
	for i, sc := range list {
		out[i] = *sc
	}
	return out
}

// Shortcut returns a copy of a shortcut by ID.
func (s *Store) Shortcut(id string) (Shortcut, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc := s.reg.GetShortcut(id)
	if sc == nil {
		return Shortcut{}, false
	}
	return *sc, true
}

// Update applies fn to the registry under the write lock, then saves and
// notifies watchers when fn succeeds.
func (s *Store) Update(fn func(r *Registry) error) error {
	s.mu.Lock()
	if err := fn(s.reg); err != nil {
		s.mu.Unlock()
		return err
	}
	var err error
	if s.autosave {
		err = s.reg.Save()
	}
	s.mu.Unlock()

	if err != nil {
		logging.Warn("Failed to save configuration", zap.Error(err))
	}
	s.notify(s.Preferences())
	return err
}

// Watch registers fn to receive the preferences after every change. The
// returned func removes it.
func (s *Store) Watch(fn func(Preferences)) func() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

func (s *Store) notify(p Preferences) {
	s.watchMu.Lock()
	fns := make([]func(Preferences), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchMu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

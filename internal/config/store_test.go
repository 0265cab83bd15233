package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/service"
)

var (
	_ discovery.Preferences = (*Store)(nil)
	_ discovery.Bookmarks   = (*Store)(nil)
)

func TestStoreAutosave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	reg, err := LoadRegistryFrom(path)
	require.NoError(t, err)

	store := NewStore(reg, true)
	calls := 0
	var seen Preferences
	stop := store.Watch(func(p Preferences) {
		calls++
		seen = p
	})

	require.NoError(t, store.Update(func(r *Registry) error {
		r.SetDiscoverBackend(service.BackendNative)
		r.AddBookmark("_http._tcp", "nas")
		return nil
	}))

	assert.Equal(t, 1, calls)
	assert.Equal(t, service.BackendNative, seen.DiscoverBackend)
	assert.Equal(t, service.BackendNative, store.DiscoverBackend())
	assert.True(t, store.IsBookmarked("_http._tcp", "nas"))

	loaded, err := LoadRegistryFrom(path)
	require.NoError(t, err)
	assert.True(t, loaded.IsBookmarked("_http._tcp", "nas"))

	stop()
	require.NoError(t, store.Update(func(r *Registry) error {
		r.RemoveBookmark("_http._tcp", "nas")
		return nil
	}))
	assert.Equal(t, 1, calls, "watcher should not run after unsubscribe")
}

func TestStoreUpdateError(t *testing.T) {
	store := NewStore(NewRegistry(), false)
	calls := 0
	store.Watch(func(Preferences) { calls++ })

	boom := errors.New("boom")
	err := store.Update(func(r *Registry) error {
		return r.SetResolveBackend(service.BackendNative)
	})
	require.Error(t, err)

	err = store.Update(func(*Registry) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, calls)
	assert.Equal(t, service.BackendBonjour, store.ResolveBackend())
}

func TestStoreCopies(t *testing.T) {
	store := NewStore(nil, false)
	require.NoError(t, store.Update(func(r *Registry) error {
		r.AddBookmark("_http._tcp", "nas")
		_, err := r.PinShortcut(Shortcut{Type: "_http._tcp", Name: "nas"})
		return err
	}))

	marks := store.Bookmarks()
	marks[0].Name = "changed"
	assert.True(t, store.IsBookmarked("_http._tcp", "nas"))

	prefs := store.Preferences()
	prefs.ScanTimeout = 99
	assert.Equal(t, 10, store.Preferences().ScanTimeout)

	sc, ok := store.Shortcut("_http._tcp/nas")
	require.True(t, ok)
	sc.Label = "changed"
	list := store.Shortcuts()
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Label)

	_, ok = store.Shortcut("missing")
	assert.False(t, ok)

	missing := store.UnavailableBookmarks(nil)
	assert.Len(t, missing, 1)
}

func TestStorePreferenceGetters(t *testing.T) {
	store := NewStore(nil, false)
	require.NoError(t, store.Update(func(r *Registry) error {
		r.Preferences.ShortcutTimeout = 20
		r.Preferences.NativeResolve = NativeResolveOneShot
		return nil
	}))

	// getters are called on the copy Preferences returns
	assert.Equal(t, 10*time.Second, store.Preferences().ScanDuration())
	assert.Equal(t, 3*time.Second, store.Preferences().ResolveDuration())
	assert.Equal(t, 20*time.Second, store.Preferences().ShortcutDuration())
	assert.False(t, store.Preferences().ContinuousNativeResolve())
}

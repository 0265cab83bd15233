package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/service"
)

func newStore(t *testing.T, discover, resolve service.Backend) *config.Store {
	t.Helper()
	reg := config.NewRegistry()
	reg.Preferences.DiscoverBackend = discover
	reg.Preferences.ResolveBackend = resolve
	return config.NewStore(reg, false)
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil, Overrides{})
	require.Error(t, err)
}

func TestNewRejectsIncompatibleOverride(t *testing.T) {
	store := newStore(t, service.BackendBonjour, service.BackendBonjour)

	_, err := New(store, Overrides{Resolve: service.BackendNative})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot resolve")

	a, err := New(store, Overrides{Discover: service.BackendNative, Resolve: service.BackendNative})
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, "native/native", a.Backends())
}

func TestPreferencesFollowStore(t *testing.T) {
	store := newStore(t, service.BackendNative, service.BackendBonjour)
	a, err := New(store, Overrides{})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, "native/bonjour", a.Backends())
	assert.Equal(t, discovery.StateIdle, a.Manager.State())

	// stored changes apply without rebuilding
	require.NoError(t, store.Update(func(r *config.Registry) error {
		r.SetDiscoverBackend(service.BackendBonjour)
		return nil
	}))
	assert.Equal(t, service.BackendBonjour, a.DiscoverBackend())
	assert.Equal(t, "bonjour/bonjour", a.Backends())
}

func TestOverridesWinOverStore(t *testing.T) {
	store := newStore(t, service.BackendBonjour, service.BackendBonjour)
	a, err := New(store, Overrides{Discover: service.BackendNative, ScanTimeout: time.Second})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, service.BackendNative, a.DiscoverBackend())
	// the stored bonjour resolver pairs with native discovery
	assert.Equal(t, "native/bonjour", a.Backends())
	assert.Equal(t, service.BackendBonjour, store.DiscoverBackend())
}

func TestOneShotOverride(t *testing.T) {
	store := newStore(t, service.BackendNative, service.BackendNative)

	p := &preferences{store: store}
	assert.True(t, p.continuous())

	p.o.OneShot = true
	assert.False(t, p.continuous())

	p.o.OneShot = false
	require.NoError(t, store.Update(func(r *config.Registry) error {
		r.Preferences.NativeResolve = config.NativeResolveOneShot
		return nil
	}))
	assert.False(t, p.continuous())
}

// Package app wires the discovery orchestrator to its backends and to the
// persisted preferences. Both binaries build their runtime through New.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/backend"
	"github.com/muurk/mdnshelper/internal/backend/bonjour"
	"github.com/muurk/mdnshelper/internal/backend/native"
	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/netlock"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/shortcut"
)

// Overrides replace stored preferences for one run without saving them.
// Zero values keep the stored preference.
type Overrides struct {
	Discover    service.Backend
	Resolve     service.Backend
	ScanTimeout time.Duration
	BrowseType  string
	OneShot     bool // force one-shot native resolution
}

// App is the assembled runtime of a command
type App struct {
	Store    *config.Store
	Manager  *discovery.Manager
	Launcher *shortcut.Launcher
	Lock     *netlock.Lock

	prefs *preferences
}

// New builds the backends, the multicast lock and the orchestrator.
// Backends are built from the preferences at startup; which one is used
// is decided per operation.
func New(store *config.Store, o Overrides) (*App, error) {
	if store == nil {
		return nil, fmt.Errorf("app: store is required")
	}
	p := &preferences{store: store, o: o}
	if o.Resolve != "" && !service.ValidPair(p.DiscoverBackend(), o.Resolve) {
		return nil, fmt.Errorf("%s cannot resolve services discovered by %s", o.Resolve, p.DiscoverBackend())
	}
	stored := store.Preferences()

	backends := map[service.Backend]backend.Backend{
		service.BackendBonjour: bonjour.New(bonjour.WithResolveWindow(stored.ResolveDuration())),
		service.BackendNative: native.New(
			native.WithResolveWindow(stored.ResolveDuration()),
			native.WithCapabilityDetector(p.continuous),
		),
	}

	lock := netlock.New(netlock.Hooks{
		Acquire: func() error {
			logging.Debug("Multicast lock acquired")
			return nil
		},
		Release: func() error {
			logging.Debug("Multicast lock released")
			return nil
		},
	})

	scanTimeout := stored.ScanDuration()
	if o.ScanTimeout != 0 {
		scanTimeout = o.ScanTimeout
	}
	browseType := stored.BrowseType
	if o.BrowseType != "" {
		browseType = o.BrowseType
	}

	mgr, err := discovery.New(discovery.Config{
		Backends:    backends,
		Lock:        lock,
		Preferences: p,
		Bookmarks:   store,
		ScanTimeout: scanTimeout,
		BrowseType:  browseType,
		Domain:      stored.Domain,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery manager: %w", err)
	}

	logging.Debug("Runtime assembled",
		zap.String("discover_backend", p.DiscoverBackend().String()),
		zap.String("resolve_backend", p.ResolveBackend().String()),
		zap.Duration("scan_timeout", scanTimeout),
		zap.String("browse_type", browseType))

	return &App{
		Store:    store,
		Manager:  mgr,
		Launcher: shortcut.NewLauncher(mgr, store, 0),
		Lock:     lock,
		prefs:    p,
	}, nil
}

// Backends describes the active pair, e.g. "native/bonjour"
func (a *App) Backends() string {
	return a.prefs.DiscoverBackend().String() + "/" + a.prefs.ResolveBackend().String()
}

// DiscoverBackend returns the effective discovery backend
func (a *App) DiscoverBackend() service.Backend {
	return a.prefs.DiscoverBackend()
}

// Close stops the orchestrator
func (a *App) Close() error {
	return a.Manager.Close()
}

// preferences layers the run's overrides over the store. The orchestrator
// reads it at decision time, so stored changes apply to the next
// operation.
type preferences struct {
	store *config.Store
	o     Overrides
}

func (p *preferences) DiscoverBackend() service.Backend {
	if p.o.Discover != "" {
		return p.o.Discover
	}
	return p.store.DiscoverBackend()
}

func (p *preferences) ResolveBackend() service.Backend {
	resolve := p.store.ResolveBackend()
	if p.o.Resolve != "" {
		resolve = p.o.Resolve
	}
	return service.EffectiveResolver(p.DiscoverBackend(), resolve)
}

func (p *preferences) continuous() bool {
	if p.o.OneShot {
		return false
	}
	prefs := p.store.Preferences()
	return prefs.ContinuousNativeResolve()
}

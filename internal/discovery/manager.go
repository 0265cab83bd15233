package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/backend"
	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/netlock"
	"github.com/muurk/mdnshelper/internal/service"
)

// DefaultScanTimeout is how long a live scan runs before it stops itself
const DefaultScanTimeout = 10 * time.Second

// Preferences supplies the user's backend choices. It is read every time a
// decision is made, so changes apply to the next session or resolution.
type Preferences interface {
	DiscoverBackend() service.Backend
	ResolveBackend() service.Backend
}

// Bookmarks tells whether a service is bookmarked.
type Bookmarks interface {
	IsBookmarked(serviceType, serviceName string) bool
}

// StaticPreferences is a fixed Preferences value.
type StaticPreferences struct {
	Discover service.Backend
	Resolve  service.Backend
}

func (p StaticPreferences) DiscoverBackend() service.Backend { return p.Discover }
func (p StaticPreferences) ResolveBackend() service.Backend  { return p.Resolve }

type noBookmarks struct{}

func (noBookmarks) IsBookmarked(string, string) bool { return false }

// Config wires a Manager to its collaborators.
type Config struct {
	// Backends maps each backend name to its implementation
	Backends map[service.Backend]backend.Backend

	// Lock is the multicast lock held while a session runs. A lock without
	// hooks is used when nil.
	Lock *netlock.Lock

	// Preferences supplies backend choices, bonjour/bonjour when nil
	Preferences Preferences

	// Bookmarks sets Resolved.Bookmarked, nothing is bookmarked when nil
	Bookmarks Bookmarks

	// ScanTimeout stops a live scan automatically. Zero means
	// DefaultScanTimeout, negative disables the timeout.
	ScanTimeout time.Duration

	// BrowseType is the type browsed by a session, the meta-query by default
	BrowseType string

	// Domain is the browse domain, "local." by default
	Domain string
}

// Option configures a Manager.
type Option func(*Manager)

// WithSessionIDs replaces the session id generator.
func WithSessionIDs(next func() string) Option {
	return func(m *Manager) {
		if next != nil {
			m.newSessionID = next
		}
	}
}

// Manager runs discovery sessions and resolves what they find, one
// identity at a time, in the order the identities appeared.
type Manager struct {
	cfg          Config
	newSessionID func() string

	mu        sync.Mutex
	closed    bool
	state     State
	gen       atomic.Uint64
	session   string
	discover  service.Backend
	sessCtx   context.Context
	cancel    context.CancelFunc
	lockHeld  bool
	scanTimer *time.Timer
	queue     []service.Identity
	resolving bool
	services  map[service.Key]service.Resolved
	order     []service.Key
	direct    map[uint64]context.CancelFunc
	directSeq uint64

	subsMu sync.Mutex
	subs   []subscriber
	subSeq int

	// held for reading across a scoped delivery's generation check and
	// handler call; StopDiscovery takes it for writing after the bump
	deliverMu sync.RWMutex

	dmu       sync.Mutex
	pending   []envelope
	dclosed   bool
	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type subscriber struct {
	id int
	fn func(Event)
}

type envelope struct {
	ev     Event
	gen    uint64
	scoped bool
}

// New creates a Manager. It fails only when the configuration is unusable.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if len(cfg.Backends) == 0 {
		return nil, errors.New("at least one backend is required")
	}
	for name, b := range cfg.Backends {
		if b == nil {
			return nil, fmt.Errorf("backend %s is nil", name)
		}
		if b.Kind() != name {
			return nil, fmt.Errorf("backend registered as %s reports kind %s", name, b.Kind())
		}
	}
	if cfg.Lock == nil {
		cfg.Lock = netlock.New(netlock.Hooks{})
	}
	if cfg.Preferences == nil {
		cfg.Preferences = StaticPreferences{Discover: service.BackendBonjour, Resolve: service.BackendBonjour}
	}
	if cfg.Bookmarks == nil {
		cfg.Bookmarks = noBookmarks{}
	}
	if cfg.ScanTimeout == 0 {
		cfg.ScanTimeout = DefaultScanTimeout
	}
	if cfg.BrowseType == "" {
		cfg.BrowseType = service.MetaQueryType
	}
	if cfg.Domain == "" {
		cfg.Domain = service.LocalDomain
	}

	m := &Manager{
		cfg:          cfg,
		newSessionID: uuid.NewString,
		services:     make(map[service.Key]service.Resolved),
		direct:       make(map[uint64]context.CancelFunc),
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.dispatch()
	return m, nil
}

// StartDiscovery starts a session on the configured discovery backend. It
// returns immediately; the outcome is reported as an EventRunning. Calling it
// while a session runs does nothing.
func (m *Manager) StartDiscovery(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		logging.Debug("Ignoring start on closed discovery manager")
		return
	}
	if m.state != StateIdle {
		logging.Info("Discovery already running",
			zap.String("session", m.session),
			zap.String("state", m.state.String()))
		return
	}

	name := m.cfg.Preferences.DiscoverBackend()
	b, ok := m.cfg.Backends[name]
	if !ok {
		err := fmt.Errorf("%w: backend %s is not available", backend.ErrDiscoveryFailed, name)
		m.publishLocked(errorEvent("", err), false)
		m.publishLocked(Event{Kind: EventRunning, Running: false}, false)
		return
	}

	if err := m.cfg.Lock.Acquire(); err != nil {
		logging.Error("Failed to start discovery", zap.Error(err))
		m.publishLocked(errorEvent("", err), false)
		m.publishLocked(Event{Kind: EventRunning, Running: false}, false)
		return
	}
	m.lockHeld = true

	gen := m.gen.Load()
	sctx, cancel := context.WithCancel(ctx)
	m.state = StateDiscovering
	m.session = m.newSessionID()
	m.discover = name
	m.sessCtx = sctx
	m.cancel = cancel
	if m.cfg.ScanTimeout > 0 {
		m.scanTimer = time.AfterFunc(m.cfg.ScanTimeout, func() {
			m.stopIfCurrent(gen, "scan timeout")
		})
	}

	logging.LogDiscoveryEvent(name.String(), "starting",
		zap.String("session", m.session),
		zap.String("browse_type", m.cfg.BrowseType),
		zap.String("domain", m.cfg.Domain))

	go m.runDiscovery(sctx, gen, m.session, b)
}

func (m *Manager) runDiscovery(ctx context.Context, gen uint64, session string, b backend.Backend) {
	events, err := b.Discover(ctx, m.cfg.BrowseType, m.cfg.Domain)
	if err != nil {
		m.fail(gen, err)
		return
	}

	for ev := range events {
		switch ev.Kind {
		case backend.DiscoveryStarted:
			m.mu.Lock()
			if m.current(gen) {
				logging.LogDiscoveryEvent(b.Kind().String(), "started", zap.String("session", session))
				m.publishLocked(Event{Kind: EventRunning, Running: true, Session: session}, false)
			}
			m.mu.Unlock()
		case backend.ServiceAppeared:
			m.enqueue(gen, ev.Identity)
		case backend.ServiceDisappeared:
			m.mu.Lock()
			if m.current(gen) {
				m.removeByNameLocked(ev.Identity.Name())
			}
			m.mu.Unlock()
		case backend.DiscoveryFailed:
			m.fail(gen, ev.Err)
		}
	}

	m.stopIfCurrent(gen, "discovery ended")
}

// ResolveService resolves id. An EventResolving is sent first. While a
// session runs the identity joins the queue; otherwise it is resolved
// directly, outside the queue.
func (m *Manager) ResolveService(ctx context.Context, id service.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.publishLocked(Event{
		Kind:     EventResolving,
		Status:   StatusInProgress,
		Session:  m.session,
		Identity: id,
	}, true)

	if m.state == StateDiscovering {
		m.queue = append(m.queue, id)
		m.drainLocked()
		return
	}

	discover := m.cfg.Preferences.DiscoverBackend()
	b, ok := m.resolverLocked(discover, id)
	if !ok {
		return
	}

	dctx, cancel := context.WithCancel(ctx)
	m.directSeq++
	seq := m.directSeq
	m.direct[seq] = cancel
	gen := m.gen.Load()

	go func() {
		defer m.endDirect(seq)
		m.resolve(dctx, gen, id, b, false)
	}()
}

// StopDiscovery ends the current session and cancels direct resolutions.
// It is safe to call in any state and any number of times. Once it
// returns no further events of the stopped session are delivered and no
// handler is still running with one.
func (m *Manager) StopDiscovery() {
	m.stopAll()

	// a handler that passed its generation check before the bump finishes
	// before this lock is granted
	m.deliverMu.Lock()
	m.deliverMu.Unlock() //nolint:staticcheck // empty critical section is the barrier
}

func (m *Manager) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for seq, cancel := range m.direct {
		cancel()
		delete(m.direct, seq)
	}

	if m.state == StateIdle {
		m.gen.Add(1)
		logging.Debug("Stop requested but no discovery listener is attached")
		return
	}
	m.stopLocked("stopped")
}

func (m *Manager) stopIfCurrent(gen uint64, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current(gen) && m.state == StateDiscovering {
		m.stopLocked(reason)
	}
}

func (m *Manager) stopLocked(reason string) {
	m.state = StateStopping

	if m.scanTimer != nil {
		m.scanTimer.Stop()
		m.scanTimer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.sessCtx = nil
	m.queue = nil
	m.resolving = false

	if m.lockHeld {
		m.lockHeld = false
		if err := m.cfg.Lock.Release(); err != nil {
			logging.Warn("Failed to release multicast lock", zap.Error(err))
		}
	}

	m.gen.Add(1)
	m.state = StateIdle

	session := m.session
	m.session = ""
	logging.LogDiscoveryEvent(m.discover.String(), "stopped",
		zap.String("session", session),
		zap.String("reason", reason))
	m.publishLocked(Event{Kind: EventRunning, Running: false, Session: session}, false)
}

func (m *Manager) fail(gen uint64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current(gen) {
		return
	}
	logging.Error("Discovery failed", zap.String("session", m.session), zap.Error(err))
	m.publishLocked(errorEvent(m.session, err), false)
	if m.state == StateDiscovering {
		m.stopLocked("discovery failed")
	}
}

func (m *Manager) enqueue(gen uint64, id service.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current(gen) || m.state != StateDiscovering {
		return
	}
	m.queue = append(m.queue, id)
	m.drainLocked()
}

// drainLocked starts the next resolution if none is in flight, counting a
// direct resolution as in flight. Identities the resolving backend cannot
// handle are dropped.
func (m *Manager) drainLocked() {
	for !m.resolving && len(m.direct) == 0 && len(m.queue) > 0 && m.state == StateDiscovering {
		id := m.queue[0]
		m.queue[0] = service.Identity{}
		m.queue = m.queue[1:]

		b, ok := m.resolverLocked(m.discover, id)
		if !ok {
			continue
		}

		m.resolving = true
		logging.Debug("Resolving queued service",
			zap.String("session", m.session),
			zap.String("identity", id.String()),
			zap.String("backend", b.Kind().String()),
			zap.Int("queue_len", len(m.queue)))
		go m.resolve(m.sessCtx, m.gen.Load(), id, b, true)
	}
}

// resolverLocked picks the backend resolving id, honoring the coupling
// between discovery and resolving backends.
func (m *Manager) resolverLocked(discover service.Backend, id service.Identity) (backend.Backend, bool) {
	pref := service.EffectiveResolver(discover, m.cfg.Preferences.ResolveBackend())
	name, ok := service.ResolverFor(pref, id)
	if !ok {
		logging.Debug("Skipping identity the resolving backend cannot handle",
			zap.String("identity", id.String()),
			zap.String("backend", pref.String()))
		return nil, false
	}
	b, ok := m.cfg.Backends[name]
	if !ok {
		logging.Debug("Skipping identity, resolving backend not configured",
			zap.String("identity", id.String()),
			zap.String("backend", name.String()))
		return nil, false
	}
	return b, true
}

func (m *Manager) resolve(ctx context.Context, gen uint64, id service.Identity, b backend.Backend, queued bool) {
	err := m.callResolver(ctx, b, id, func(ev backend.ResolveEvent) {
		m.handleResolveEvent(gen, id, ev)
	})
	m.finishResolve(gen, id, err, queued)
}

func (m *Manager) callResolver(ctx context.Context, b backend.Backend, id service.Identity, emit func(backend.ResolveEvent)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s resolver panicked: %v", b.Kind(), r)
		}
	}()
	return b.Resolve(ctx, id, emit)
}

func (m *Manager) finishResolve(gen uint64, id service.Identity, err error, queued bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(gen) {
		return
	}
	if queued {
		m.resolving = false
	}

	switch {
	case err == nil:
		logging.LogResolveEvent(id.String(), "completed")
	case errors.Is(err, backend.ErrUnsupported):
		logging.LogResolveEvent(id.String(), "unsupported")
	case errors.Is(err, context.Canceled):
		logging.LogResolveEvent(id.String(), "cancelled")
	default:
		status := StatusFailed
		if errors.Is(err, backend.ErrNotFound) {
			status = StatusNotFound
		}
		logging.LogResolveEvent(id.String(), status.String(), zap.Error(err))
		m.publishLocked(Event{
			Kind:     EventResolveFailed,
			Status:   status,
			Session:  m.session,
			Identity: id,
			Message:  fmt.Sprintf("failed to resolve %s: %v", id, err),
			Err:      err,
		}, true)
	}

	if queued {
		m.drainLocked()
	}
}

func (m *Manager) handleResolveEvent(gen uint64, id service.Identity, ev backend.ResolveEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(gen) {
		return
	}

	switch ev.Status {
	case backend.StatusResolved:
		r := ev.Service
		r.Bookmarked = m.cfg.Bookmarks.IsBookmarked(r.ServiceType, r.ServiceName)
		key := r.Key()
		kind := EventUpdated
		if _, ok := m.services[key]; !ok {
			kind = EventFound
			m.order = append(m.order, key)
		}
		m.services[key] = r
		logging.LogResolveEvent(id.String(), "resolved",
			zap.String("service_type", r.ServiceType),
			zap.String("service_name", r.ServiceName),
			zap.String("address", r.Address()))
		m.publishLocked(Event{Kind: kind, Status: StatusOK, Session: m.session, Service: r}, true)
	case backend.StatusLost:
		m.removeByNameLocked(ev.Name)
	case backend.StatusFailed:
		m.publishLocked(Event{
			Kind:     EventResolveFailed,
			Status:   StatusFailed,
			Session:  m.session,
			Identity: id,
			Message:  fmt.Sprintf("failed to resolve %s: %v", id, ev.Err),
			Err:      ev.Err,
		}, true)
	}
}

// removeByNameLocked drops every known service called name, whatever its
// type, and sends one EventLost per removed entry.
func (m *Manager) removeByNameLocked(name string) {
	if name == "" {
		return
	}
	kept := make([]service.Key, 0, len(m.order))
	for _, key := range m.order {
		r := m.services[key]
		if r.ServiceName != name {
			kept = append(kept, key)
			continue
		}
		delete(m.services, key)
		logging.Debug("Service lost",
			zap.String("service_type", r.ServiceType),
			zap.String("service_name", name))
		m.publishLocked(Event{
			Kind:    EventLost,
			Status:  StatusLost,
			Session: m.session,
			Service: r,
			Name:    name,
		}, true)
	}
	m.order = kept
}

func (m *Manager) endDirect(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.direct[seq]; ok {
		cancel()
		delete(m.direct, seq)
	}
	m.drainLocked()
}

// current reports whether gen is still the live generation.
func (m *Manager) current(gen uint64) bool {
	return m.gen.Load() == gen
}

// Services returns the resolved services in the order they were found.
func (m *Manager) Services() []service.Resolved {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]service.Resolved, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.services[key])
	}
	return out
}

// ClearServices forgets every resolved service.
func (m *Manager) ClearServices() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services = make(map[service.Key]service.Resolved)
	m.order = nil
}

// State returns the session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the current session id, empty when idle.
func (m *Manager) Session() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Resolving reports whether a queued resolution is in flight.
func (m *Manager) Resolving() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolving
}

// QueueLen returns the number of identities waiting to be resolved.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close stops discovery and the event dispatcher. Events already emitted
// are delivered before Close returns.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.StopDiscovery()

		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		m.dmu.Lock()
		m.dclosed = true
		m.dmu.Unlock()
		m.signal()

		<-m.done
	})
	return nil
}

func errorEvent(session string, err error) Event {
	return Event{
		Kind:    EventError,
		Status:  StatusFailed,
		Session: session,
		Message: err.Error(),
		Err:     err,
	}
}

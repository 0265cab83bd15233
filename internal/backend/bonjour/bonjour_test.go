package bonjour

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/mdnshelper/internal/backend"
	"github.com/muurk/mdnshelper/internal/service"
)

// fakeResolver mimics zeroconf: entries are sent without watching the
// context and the channel is closed once the context ends.
type fakeResolver struct {
	mu      sync.Mutex
	entries []*zeroconf.ServiceEntry
	err     error
	calls   []string
	closed  chan struct{}
}

func newFake(entries ...*zeroconf.ServiceEntry) *fakeResolver {
	return &fakeResolver{entries: entries, closed: make(chan struct{})}
}

func (f *fakeResolver) run(ctx context.Context, ch chan<- *zeroconf.ServiceEntry) {
	go func() {
		for _, e := range f.entries {
			ch <- e
		}
		<-ctx.Done()
		close(ch)
		close(f.closed)
	}()
}

func (f *fakeResolver) Browse(ctx context.Context, svc, domain string, ch chan<- *zeroconf.ServiceEntry) error {
	f.mu.Lock()
	f.calls = append(f.calls, "browse "+svc+" "+domain)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.run(ctx, ch)
	return nil
}

func (f *fakeResolver) Lookup(ctx context.Context, instance, svc, domain string, ch chan<- *zeroconf.ServiceEntry) error {
	f.mu.Lock()
	f.calls = append(f.calls, "lookup "+instance+" "+svc+" "+domain)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.run(ctx, ch)
	return nil
}

func (f *fakeResolver) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func withFake(b *Backend, f *fakeResolver) *Backend {
	b.newResolver = func(...zeroconf.ClientOption) (resolver, error) { return f, nil }
	return b
}

func hostEntry(instance, ip string, port int, txt ...string) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(instance, "_http._tcp", "local.")
	e.HostName = instance + ".local."
	e.Port = port
	e.Text = txt
	e.TTL = 120
	e.AddrIPv4 = []net.IP{net.ParseIP(ip)}
	return e
}

func waitClosed(t *testing.T, f *fakeResolver) {
	t.Helper()
	select {
	case <-f.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("resolver channel was never closed; entries were not drained")
	}
}

func TestDiscoverMetaQuery(t *testing.T) {
	f := newFake(
		zeroconf.NewServiceEntry("_http._tcp.local", service.MetaQueryType, "local."),
		zeroconf.NewServiceEntry("garbage", service.MetaQueryType, "local."),
		zeroconf.NewServiceEntry("_ipp._tcp.local", service.MetaQueryType, "local."),
	)
	b := withFake(New(), f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Discover(ctx, service.MetaQueryType, service.LocalDomain)
	require.NoError(t, err)

	var got []backend.DiscoveryEvent
	for len(got) < 3 {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}

	assert.Equal(t, backend.DiscoveryStarted, got[0].Kind)
	assert.Equal(t, backend.ServiceAppeared, got[1].Kind)
	assert.Equal(t, service.KindBonjour, got[1].Identity.Kind())
	assert.Equal(t, "_http._tcp", got[1].Identity.RegType())
	assert.True(t, got[1].Identity.IsTypeLevel())
	assert.Equal(t, "_ipp._tcp", got[2].Identity.Type())
	assert.Equal(t, []string{"browse _services._dns-sd._udp local."}, f.Calls())

	cancel()
	for range ch {
	}
	waitClosed(t, f)
}

func TestDiscoverBrowseError(t *testing.T) {
	f := newFake()
	f.err = errors.New("socket closed")
	b := withFake(New(), f)

	_, err := b.Discover(context.Background(), "_http._tcp", "local.")
	assert.ErrorIs(t, err, backend.ErrDiscoveryFailed)
}

func TestDiscoverResolverError(t *testing.T) {
	b := New()
	b.newResolver = func(...zeroconf.ClientOption) (resolver, error) {
		return nil, errors.New("no interfaces")
	}

	_, err := b.Discover(context.Background(), "_http._tcp", "local.")
	assert.ErrorIs(t, err, backend.ErrDiscoveryFailed)
}

func TestResolveInstance(t *testing.T) {
	f := newFake(
		hostEntry("dev1", "10.0.0.5", 80, "path=/", "ver"),
		hostEntry("dev1", "10.0.0.6", 80),
	)
	b := withFake(New(), f)

	var got []backend.ResolveEvent
	id := service.NewBonjourInstance("dev1", "_http._tcp", "local.")
	err := b.Resolve(context.Background(), id, func(ev backend.ResolveEvent) { got = append(got, ev) })
	require.NoError(t, err)

	require.Len(t, got, 1)
	r := got[0].Service
	assert.Equal(t, "10.0.0.5:80", r.Address())
	assert.Equal(t, "_http._tcp", r.ServiceType)
	assert.Equal(t, "dev1", r.ServiceName)
	assert.Equal(t, []string{"path", "ver"}, r.Extra.Keys())
	assert.Equal(t, []string{"lookup dev1 _http._tcp local."}, f.Calls())

	waitClosed(t, f)
}

func TestResolveShortcutRecord(t *testing.T) {
	f := newFake(hostEntry("nas", "192.168.1.10", 5000))
	b := withFake(New(), f)

	id, err := service.NewShortcutRecord("_http._tcp", "nas", "local.")
	require.NoError(t, err)

	var got []backend.ResolveEvent
	require.NoError(t, b.Resolve(context.Background(), id, func(ev backend.ResolveEvent) { got = append(got, ev) }))
	require.Len(t, got, 1)
	assert.Equal(t, "192.168.1.10:5000", got[0].Service.Address())
	assert.Equal(t, id, got[0].Service.Identity)
}

func TestResolveInstanceNotFound(t *testing.T) {
	f := newFake()
	b := withFake(New(WithResolveWindow(20*time.Millisecond)), f)

	err := b.Resolve(context.Background(), service.NewNativeRecord("_http._tcp", "dev1", "", ""), func(backend.ResolveEvent) {})
	assert.ErrorIs(t, err, backend.ErrNotFound)
	waitClosed(t, f)
}

func TestResolveCancelled(t *testing.T) {
	f := newFake()
	b := withFake(New(WithResolveWindow(time.Second)), f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Resolve(ctx, service.NewNativeRecord("_http._tcp", "dev1", "", ""), func(backend.ResolveEvent) {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveTypeLevel(t *testing.T) {
	f := newFake(
		hostEntry("a", "10.0.0.1", 80),
		hostEntry("b", "10.0.0.2", 8080),
	)
	b := withFake(New(WithResolveWindow(30*time.Millisecond)), f)

	var got []backend.ResolveEvent
	id := service.NewBonjourRecord("_http._tcp", "local.")
	require.NoError(t, b.Resolve(context.Background(), id, func(ev backend.ResolveEvent) { got = append(got, ev) }))

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Service.ServiceName)
	assert.Equal(t, "10.0.0.2:8080", got[1].Service.Address())
	assert.Equal(t, []string{"browse _http._tcp local."}, f.Calls())
}

func TestKind(t *testing.T) {
	assert.Equal(t, service.BackendBonjour, New().Kind())
}

// zeroconf drops goodbye packets before they reach the entries channel, so
// services found by this backend are never reported as gone.
func TestDiscoverNeverReportsDisappearance(t *testing.T) {
	f := newFake(
		hostEntry("dev1", "10.0.0.1", 80),
		hostEntry("dev2", "10.0.0.2", 80),
	)
	b := withFake(New(), f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := b.Discover(ctx, "_http._tcp", service.LocalDomain)
	require.NoError(t, err)

	var got []backend.DiscoveryEvent
	for len(got) < 3 {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d events", len(got))
		}
	}
	cancel()
	for ev := range ch {
		got = append(got, ev)
	}
	waitClosed(t, f)

	assert.Equal(t, backend.DiscoveryStarted, got[0].Kind)
	var names []string
	for _, ev := range got[1:] {
		assert.NotEqual(t, backend.ServiceDisappeared, ev.Kind)
		if ev.Kind == backend.ServiceAppeared {
			names = append(names, ev.Identity.Name())
		}
	}
	assert.Equal(t, []string{"dev1", "dev2"}, names)
}

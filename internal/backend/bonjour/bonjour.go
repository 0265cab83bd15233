// Package bonjour implements the backend.Backend interface on top of
// github.com/grandcat/zeroconf.
package bonjour

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/backend"
	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/service"
)

// resolver is the subset of *zeroconf.Resolver used by the backend.
type resolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// Backend browses and resolves through zeroconf. Every call creates its own
// zeroconf.Resolver since a resolver shuts down with its context.
type Backend struct {
	window      time.Duration
	opts        []zeroconf.ClientOption
	newResolver func(opts ...zeroconf.ClientOption) (resolver, error)
}

// Option configures a Backend.
type Option func(*Backend)

// WithResolveWindow sets how long a resolution waits for answers.
func WithResolveWindow(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.window = d
		}
	}
}

// WithInterfaces restricts multicast traffic to the given interfaces.
func WithInterfaces(ifaces []net.Interface) Option {
	return func(b *Backend) {
		if len(ifaces) > 0 {
			b.opts = append(b.opts, zeroconf.SelectIfaces(ifaces))
		}
	}
}

// WithIPv4Only disables IPv6 multicast.
func WithIPv4Only() Option {
	return func(b *Backend) {
		b.opts = append(b.opts, zeroconf.SelectIPTraffic(zeroconf.IPv4))
	}
}

// New creates a bonjour backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		window: backend.DefaultResolveWindow,
		newResolver: func(opts ...zeroconf.ClientOption) (resolver, error) {
			return zeroconf.NewResolver(opts...)
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind implements backend.Backend.
func (b *Backend) Kind() service.Backend { return service.BackendBonjour }

// Discover implements backend.Discoverer.
func (b *Backend) Discover(ctx context.Context, serviceType, domain string) (<-chan backend.DiscoveryEvent, error) {
	r, err := b.newResolver(b.opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create mDNS resolver: %w", backend.ErrDiscoveryFailed, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	entries := make(chan *zeroconf.ServiceEntry)
	if err := r.Browse(ctx, serviceType, domain, entries); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: failed to browse for %s: %w", backend.ErrDiscoveryFailed, serviceType, err)
	}

	out := make(chan backend.DiscoveryEvent)
	go func() {
		defer close(out)
		defer drain(entries)
		defer cancel()

		select {
		case out <- backend.DiscoveryEvent{Kind: backend.DiscoveryStarted}:
		case <-ctx.Done():
			return
		}

		for entry := range entries {
			if entry == nil {
				continue
			}
			id, ok := identityFor(serviceType, domain, entry)
			if !ok {
				logging.Debug("Ignoring bonjour browse entry",
					zap.String("instance", entry.Instance),
					zap.String("service", entry.Service))
				continue
			}
			select {
			case out <- backend.DiscoveryEvent{Kind: backend.ServiceAppeared, Identity: id}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Resolve implements backend.Resolver. Type-level identities are browsed for
// the whole resolve window and every instance is reported. Instance-level
// identities are looked up and the first answer is reported.
func (b *Backend) Resolve(ctx context.Context, id service.Identity, emit func(backend.ResolveEvent)) error {
	if !service.CanResolve(service.BackendBonjour, id) {
		return backend.ErrUnsupported
	}

	r, err := b.newResolver(b.opts...)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	if id.IsTypeLevel() {
		return b.browseType(ctx, r, id, emit)
	}
	return b.lookupInstance(ctx, r, id, emit)
}

func (b *Backend) browseType(ctx context.Context, r resolver, id service.Identity, emit func(backend.ResolveEvent)) error {
	wctx, cancel := context.WithTimeout(ctx, b.window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := r.Browse(wctx, id.Type(), id.Domain(), entries); err != nil {
		return fmt.Errorf("failed to browse for %s: %w", id.Type(), err)
	}

	found := 0
	for entry := range entries {
		emit(backend.ResolveEvent{
			Status:  backend.StatusResolved,
			Service: service.NewResolved(id, recordFromEntry(entry)),
		})
		found++
	}

	if found == 0 {
		return windowError(ctx)
	}
	return nil
}

func (b *Backend) lookupInstance(ctx context.Context, r resolver, id service.Identity, emit func(backend.ResolveEvent)) error {
	wctx, cancel := context.WithTimeout(ctx, b.window)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	if err := r.Lookup(wctx, id.Name(), id.Type(), id.Domain(), entries); err != nil {
		return fmt.Errorf("failed to look up %s: %w", id.InstanceName(), err)
	}

	select {
	case entry, ok := <-entries:
		cancel()
		go drain(entries)
		if !ok {
			return windowError(ctx)
		}
		emit(backend.ResolveEvent{
			Status:  backend.StatusResolved,
			Service: service.NewResolved(id, recordFromEntry(entry)),
		})
		return nil
	case <-wctx.Done():
		go drain(entries)
		return windowError(ctx)
	}
}

// windowError distinguishes an expired resolve window from a cancelled caller.
func windowError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return backend.ErrNotFound
}

// identityFor maps a browse entry to an identity. Entries answering the
// meta-query name a service type rather than an instance.
func identityFor(serviceType, domain string, entry *zeroconf.ServiceEntry) (service.Identity, bool) {
	if serviceType == service.MetaQueryType {
		t, d, ok := service.SplitEnumeration(entry.Instance)
		if !ok {
			return service.Identity{}, false
		}
		return service.NewBonjourRecord(t, d), true
	}
	if entry.Instance == "" {
		return service.Identity{}, false
	}
	return service.NewBonjourInstance(entry.Instance, serviceType, domain), true
}

func recordFromEntry(entry *zeroconf.ServiceEntry) service.Record {
	return service.Record{
		Name:   entry.Instance,
		Type:   entry.Service,
		Domain: entry.Domain,
		Host:   entry.HostName,
		IPv4:   entry.AddrIPv4,
		IPv6:   entry.AddrIPv6,
		Port:   entry.Port,
		Text:   service.ParseTXT(entry.Text),
	}
}

// drain consumes entries until zeroconf closes the channel. The library
// sends without watching the context, so an abandoned channel would block
// its receive loop forever.
func drain(entries <-chan *zeroconf.ServiceEntry) {
	for range entries {
	}
}


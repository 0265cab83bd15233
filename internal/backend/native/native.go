// Package native implements the backend.Backend interface on top of
// github.com/brutella/dnssd.
//
// Instance resolution has two modes. When the capability detector reports
// support, the backend keeps browsing the instance's type after the first
// answer and reports every later change until the caller's context ends.
// Otherwise it performs a single LookupInstance.
package native

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/brutella/dnssd"
	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/backend"
	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/service"
)

type (
	lookupTypeFunc     func(ctx context.Context, query string, add, rmv func(dnssd.BrowseEntry)) error
	lookupInstanceFunc func(ctx context.Context, instance string) (dnssd.Service, error)
	enumerateTypesFunc func(ctx context.Context, query string, found func(typeAnswer)) error
)

// Backend browses and resolves through dnssd.
type Backend struct {
	window         time.Duration
	continuous     backend.CapabilityDetector
	lookupType     lookupTypeFunc
	lookupInstance lookupInstanceFunc
	enumerateTypes enumerateTypesFunc
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

// WithCapabilityDetector sets the probe deciding between continuous and
// one-shot instance resolution.
func WithCapabilityDetector(d backend.CapabilityDetector) Option {
	return func(b *Backend) {
		if d != nil {
			b.continuous = d
		}
	}
}

// New creates a native backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		window:     backend.DefaultResolveWindow,
		continuous: backend.Always,
		lookupType: func(ctx context.Context, query string, add, rmv func(dnssd.BrowseEntry)) error {
			return dnssd.LookupType(ctx, query, add, rmv)
		},
		lookupInstance: func(ctx context.Context, instance string) (dnssd.Service, error) {
			return dnssd.LookupInstance(ctx, instance)
		},
		enumerateTypes: enumerateTypes,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Kind implements backend.Backend.
func (b *Backend) Kind() service.Backend { return service.BackendNative }

// Discover implements backend.Discoverer. The meta-query type enumerates the
// service types on the link and browses each of them, so every appeared
// identity names one instance.
func (b *Backend) Discover(ctx context.Context, serviceType, domain string) (<-chan backend.DiscoveryEvent, error) {
	out := make(chan backend.DiscoveryEvent)

	send := func(ev backend.DiscoveryEvent) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(out)

		send(backend.DiscoveryEvent{Kind: backend.DiscoveryStarted})

		var err error
		if serviceType == service.MetaQueryType {
			err = b.browseAllTypes(ctx, domain, send)
		} else {
			err = b.browseType(ctx, serviceType, domain, send)
		}
		if err != nil && ctx.Err() == nil {
			send(backend.DiscoveryEvent{
				Kind: backend.DiscoveryFailed,
				Err:  fmt.Errorf("%w: %w", backend.ErrDiscoveryFailed, err),
			})
		}
	}()

	return out, nil
}

// browseType reports the instances of one service type until ctx ends.
func (b *Backend) browseType(ctx context.Context, serviceType, domain string, send func(backend.DiscoveryEvent)) error {
	query := service.NewNativeRecord(serviceType, "", domain, "").Query()

	add := func(e dnssd.BrowseEntry) {
		id, ok := identityFor(serviceType, e)
		if !ok {
			logging.Debug("Ignoring native browse entry",
				zap.String("name", e.Name),
				zap.String("type", e.Type))
			return
		}
		send(backend.DiscoveryEvent{Kind: backend.ServiceAppeared, Identity: id})
	}
	rmv := func(e dnssd.BrowseEntry) {
		id, ok := identityFor(serviceType, e)
		if !ok {
			return
		}
		send(backend.DiscoveryEvent{Kind: backend.ServiceDisappeared, Identity: id})
	}

	return b.lookupType(ctx, query, add, rmv)
}

// browseAllTypes enumerates service types with the meta-query and starts one
// browse per new type. It returns when the enumeration ends, after every
// browse it started has stopped.
func (b *Backend) browseAllTypes(ctx context.Context, domain string, send func(backend.DiscoveryEvent)) error {
	ctx, cancel := context.WithCancel(ctx)

	var (
		mu       sync.Mutex
		done     bool
		wg       sync.WaitGroup
		browsing = make(map[typeAnswer]bool)
	)

	found := func(t typeAnswer) {
		mu.Lock()
		defer mu.Unlock()
		if done || browsing[t] {
			return
		}
		browsing[t] = true

		logging.Debug("Browsing enumerated service type",
			zap.String("type", t.Type),
			zap.String("domain", t.Domain))

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.browseType(ctx, t.Type, t.Domain, send); err != nil && ctx.Err() == nil {
				logging.Warn("Failed to browse service type",
					zap.String("type", t.Type),
					zap.Error(err))
			}
		}()
	}

	query := service.NewNativeRecord(service.MetaQueryType, "", domain, "").Query()
	err := b.enumerateTypes(ctx, query, found)

	mu.Lock()
	done = true
	mu.Unlock()
	cancel()
	wg.Wait()
	return err
}

// Resolve implements backend.Resolver.
func (b *Backend) Resolve(ctx context.Context, id service.Identity, emit func(backend.ResolveEvent)) error {
	if !service.CanResolve(service.BackendNative, id) {
		return backend.ErrUnsupported
	}

	switch {
	case id.IsTypeLevel():
		return b.resolveType(ctx, id, emit)
	case b.continuous():
		return b.subscribe(ctx, id, emit)
	default:
		return b.resolveOnce(ctx, id, emit)
	}
}

// resolveType reports every instance of id's type seen within the window.
func (b *Backend) resolveType(ctx context.Context, id service.Identity, emit func(backend.ResolveEvent)) error {
	wctx, cancel := context.WithTimeout(ctx, b.window)
	defer cancel()

	found := 0
	add := func(e dnssd.BrowseEntry) {
		found++
		emit(backend.ResolveEvent{
			Status:  backend.StatusResolved,
			Service: service.NewResolved(id, recordFromBrowse(e)),
		})
	}
	rmv := func(e dnssd.BrowseEntry) {
		emit(backend.ResolveEvent{Status: backend.StatusLost, Name: e.Name})
	}

	if err := b.lookupType(wctx, id.Query(), add, rmv); err != nil && wctx.Err() == nil {
		return fmt.Errorf("failed to browse for %s: %w", id.Query(), err)
	}
	if found == 0 {
		return windowError(ctx)
	}
	return nil
}

// subscribe browses id's type and reports changes to the one instance. It
// returns after the first answer and leaves the browse running on ctx.
func (b *Backend) subscribe(ctx context.Context, id service.Identity, emit func(backend.ResolveEvent)) error {
	sctx, cancel := context.WithCancel(ctx)
	first := make(chan struct{})
	failed := make(chan error, 1)
	seen := false

	add := func(e dnssd.BrowseEntry) {
		if e.Name != id.Name() {
			return
		}
		emit(backend.ResolveEvent{
			Status:  backend.StatusResolved,
			Service: service.NewResolved(id, recordFromBrowse(e)),
		})
		if !seen {
			seen = true
			close(first)
		}
	}
	rmv := func(e dnssd.BrowseEntry) {
		if e.Name != id.Name() {
			return
		}
		emit(backend.ResolveEvent{Status: backend.StatusLost, Name: e.Name})
	}

	go func() {
		if err := b.lookupType(sctx, id.Query(), add, rmv); err != nil && sctx.Err() == nil {
			failed <- err
		}
	}()

	timer := time.NewTimer(b.window)
	defer timer.Stop()

	select {
	case <-first:
		context.AfterFunc(ctx, cancel)
		return nil
	case err := <-failed:
		cancel()
		return fmt.Errorf("failed to browse for %s: %w", id.Query(), err)
	case <-timer.C:
		cancel()
		return backend.ErrNotFound
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// resolveOnce performs a single instance lookup.
func (b *Backend) resolveOnce(ctx context.Context, id service.Identity, emit func(backend.ResolveEvent)) error {
	wctx, cancel := context.WithTimeout(ctx, b.window)
	defer cancel()

	svc, err := b.lookupInstance(wctx, id.InstanceName())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return windowError(ctx)
		}
		return fmt.Errorf("failed to look up %s: %w", id.InstanceName(), err)
	}

	emit(backend.ResolveEvent{
		Status:  backend.StatusResolved,
		Service: service.NewResolved(id, recordFromService(svc)),
	})
	return nil
}

func windowError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return backend.ErrNotFound
}

// identityFor maps a browse entry to an instance identity.
func identityFor(serviceType string, e dnssd.BrowseEntry) (service.Identity, bool) {
	if e.Name == "" {
		return service.Identity{}, false
	}
	t := e.Type
	if t == "" {
		t = serviceType
	}
	return service.NewNativeRecord(t, e.Name, e.Domain, e.IfaceName), true
}

func recordFromBrowse(e dnssd.BrowseEntry) service.Record {
	v4, v6 := service.SplitIPs(e.IPs)
	return service.Record{
		Name:   e.Name,
		Type:   e.Type,
		Domain: e.Domain,
		Host:   e.Host,
		IPv4:   v4,
		IPv6:   v6,
		Port:   e.Port,
		Text:   service.TXTFromMap(e.Text),
	}
}

func recordFromService(s dnssd.Service) service.Record {
	v4, v6 := service.SplitIPs(s.IPs)
	return service.Record{
		Name:   s.Name,
		Type:   s.Type,
		Domain: s.Domain,
		Host:   s.Host,
		IPv4:   v4,
		IPv6:   v6,
		Port:   s.Port,
		Text:   service.TXTFromMap(s.Text),
	}
}

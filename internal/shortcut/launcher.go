// Package shortcut launches pinned services without a live scan.
//
// A shortcut stores the (type, name, domain) triple of a service. Launching
// it rebuilds the identity, asks the discovery manager to resolve it and
// waits for the first answer that carries an address, bounded by the
// shortcut timeout preference.
package shortcut

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/urls"
)

var (
	// ErrServiceNotFound means the shortcut did not resolve in time or the
	// service went away while resolving.
	ErrServiceNotFound = errors.New("service not found")

	// ErrInvalidShortcut means the shortcut is unknown or cannot be turned
	// into an identity.
	ErrInvalidShortcut = errors.New("invalid shortcut")
)

// Resolver is the part of the discovery manager a Launcher drives.
type Resolver interface {
	Subscribe(fn func(discovery.Event)) func()
	ResolveService(ctx context.Context, id service.Identity)
}

// Result is a successful launch.
type Result struct {
	Shortcut config.Shortcut
	Service  service.Resolved
	URL      string
}

// Launcher resolves pinned shortcuts.
type Launcher struct {
	resolver Resolver
	store    *config.Store
	timeout  time.Duration
}

// NewLauncher creates a Launcher. A zero timeout uses the shortcut timeout
// preference.
func NewLauncher(resolver Resolver, store *config.Store, timeout time.Duration) *Launcher {
	return &Launcher{resolver: resolver, store: store, timeout: timeout}
}

// Pin stores a shortcut for a resolved or discovered service.
func (l *Launcher) Pin(serviceType, serviceName, domain, label string) (config.Shortcut, error) {
	var pinned config.Shortcut
	err := l.store.Update(func(r *config.Registry) error {
		sc, err := r.PinShortcut(config.Shortcut{
			Type:   serviceType,
			Name:   serviceName,
			Domain: domain,
			Label:  label,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidShortcut, err)
		}
		pinned = *sc
		return nil
	})
	return pinned, err
}

// Unpin removes a shortcut by ID.
func (l *Launcher) Unpin(id string) error {
	return l.store.Update(func(r *config.Registry) error {
		if !r.RemoveShortcut(id) {
			return fmt.Errorf("%w: %s", ErrInvalidShortcut, id)
		}
		return nil
	})
}

// Launch resolves the shortcut with the given ID and returns its endpoint.
func (l *Launcher) Launch(ctx context.Context, id string) (Result, error) {
	sc, ok := l.store.Shortcut(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidShortcut, id)
	}
	ident, err := sc.Identity()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidShortcut, err)
	}

	timeout := l.timeout
	if timeout <= 0 {
		timeout = l.store.Preferences().ShortcutDuration()
	}
	lctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		svc service.Resolved
		err error
	}
	done := make(chan outcome, 1)
	report := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}

	unsubscribe := l.resolver.Subscribe(func(ev discovery.Event) {
		switch ev.Kind {
		case discovery.EventFound, discovery.EventUpdated:
			if matches(ev.Service.ServiceType, ev.Service.ServiceName, ident) && ev.Service.HasAddress() {
				report(outcome{svc: ev.Service})
			}
		case discovery.EventLost:
			if ev.Name == ident.Name() {
				report(outcome{err: fmt.Errorf("%w: %s went away", ErrServiceNotFound, sc.DisplayName())})
			}
		}
	})
	defer unsubscribe()

	logging.Debug("Launching shortcut",
		zap.String("shortcut", id),
		zap.Duration("timeout", timeout))
	l.resolver.ResolveService(lctx, ident)

	var res outcome
	select {
	case res = <-done:
	case <-lctx.Done():
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		res.err = fmt.Errorf("%w: %s did not answer within %s", ErrServiceNotFound, sc.DisplayName(), timeout)
	}
	if res.err != nil {
		logging.Info("Shortcut launch failed", zap.String("shortcut", id), zap.Error(res.err))
		return Result{}, res.err
	}

	if err := l.store.Update(func(r *config.Registry) error {
		r.UpdateShortcutSeen(id, res.svc.HostAddress, res.svc.Port)
		return nil
	}); err != nil {
		logging.Warn("Failed to record shortcut address", zap.Error(err))
	}

	sc, _ = l.store.Shortcut(id)
	return Result{
		Shortcut: sc,
		Service:  res.svc,
		URL:      urls.AddressAsURL(res.svc.HostAddress, res.svc.Port),
	}, nil
}

func matches(serviceType, serviceName string, id service.Identity) bool {
	return serviceType == id.Type() && serviceName == id.Name()
}

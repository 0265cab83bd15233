package backend

import (
	"context"
	"errors"
	"time"

	"github.com/muurk/mdnshelper/internal/service"
)

// DefaultResolveWindow bounds how long a single resolution listens for answers.
const DefaultResolveWindow = 3 * time.Second

var (
	// ErrNotFound means no answer arrived within the resolve window.
	ErrNotFound = errors.New("service not found")

	// ErrUnsupported means the backend cannot resolve this kind of identity.
	ErrUnsupported = errors.New("identity not supported by backend")

	// ErrDiscoveryFailed wraps failures to start or keep a browse running.
	ErrDiscoveryFailed = errors.New("discovery failed")
)

// DiscoveryKind tells what a DiscoveryEvent reports.
type DiscoveryKind int

const (
	DiscoveryStarted DiscoveryKind = iota
	ServiceAppeared
	ServiceDisappeared
	DiscoveryFailed
)

func (k DiscoveryKind) String() string {
	switch k {
	case DiscoveryStarted:
		return "started"
	case ServiceAppeared:
		return "appeared"
	case ServiceDisappeared:
		return "disappeared"
	case DiscoveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DiscoveryEvent is one notification from a running browse.
type DiscoveryEvent struct {
	Kind     DiscoveryKind
	Identity service.Identity
	Err      error
}

// ResolveStatus tells what a ResolveEvent reports.
type ResolveStatus int

const (
	StatusResolved ResolveStatus = iota
	StatusLost
	StatusFailed
)

func (s ResolveStatus) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusLost:
		return "lost"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ResolveEvent is one answer from a resolution.
type ResolveEvent struct {
	Status ResolveStatus

	// Service is set for StatusResolved
	Service service.Resolved

	// Name is the lost instance name for StatusLost
	Name string

	// Err is set for StatusFailed
	Err error
}

// Discoverer browses for identities of a service type.
type Discoverer interface {
	// Discover starts browsing serviceType in domain. A DiscoveryStarted
	// event is sent once the browse is running. The channel is closed when
	// ctx ends or the browse fails.
	Discover(ctx context.Context, serviceType, domain string) (<-chan DiscoveryEvent, error)
}

// Resolver turns an identity into addresses.
type Resolver interface {
	// Resolve resolves id and reports answers through emit. It returns
	// once the resolution is complete. Continuous subscriptions may keep
	// calling emit after Resolve returns, until ctx is cancelled.
	Resolve(ctx context.Context, id service.Identity, emit func(ResolveEvent)) error
}

// Backend is one mDNS client implementation.
type Backend interface {
	Discoverer
	Resolver
	Kind() service.Backend
}

// CapabilityDetector reports whether the richer continuous resolve API is
// available at runtime.
type CapabilityDetector func() bool

// Always is a CapabilityDetector that reports true.
func Always() bool { return true }

// Never is a CapabilityDetector that reports false.
func Never() bool { return false }

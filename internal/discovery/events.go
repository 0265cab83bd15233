package discovery

import (
	"fmt"
	"time"

	"github.com/muurk/mdnshelper/internal/service"
)

// State is the session state of a Manager
type State int

const (
	StateIdle State = iota
	StateDiscovering
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDiscovering:
		return "discovering"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind tells observers what happened
type EventKind int

const (
	// EventRunning reports a change of the "discovery running" signal
	EventRunning EventKind = iota
	// EventFound reports a service resolved for the first time
	EventFound
	// EventUpdated reports a new resolution replacing a known service
	EventUpdated
	// EventLost reports a service removed after a loss notification
	EventLost
	// EventResolving is sent before a directly requested resolution starts
	EventResolving
	// EventResolveFailed reports a resolution that produced no answer
	EventResolveFailed
	// EventError reports a backend failure
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventRunning:
		return "running"
	case EventFound:
		return "found"
	case EventUpdated:
		return "updated"
	case EventLost:
		return "lost"
	case EventResolving:
		return "resolving"
	case EventResolveFailed:
		return "resolve_failed"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Status distinguishes success from failure on the single event channel
type Status int

const (
	StatusOK Status = iota
	StatusInProgress
	StatusFailed
	StatusNotFound
	StatusLost
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusInProgress:
		return "in_progress"
	case StatusFailed:
		return "failed"
	case StatusNotFound:
		return "not_found"
	case StatusLost:
		return "lost"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Event is delivered to every subscriber
type Event struct {
	Kind   EventKind
	Status Status

	// Session is the id of the discovery session, empty for direct resolutions
	Session string

	// Running is set for EventRunning
	Running bool

	// Service is set for EventFound, EventUpdated and EventLost
	Service service.Resolved

	// Name is the lost service name for EventLost
	Name string

	// Identity is set for EventResolving and EventResolveFailed
	Identity service.Identity

	// Message is a human readable description for failures
	Message string

	// Err is the underlying error for failures
	Err error

	// At is when the event was emitted
	At time.Time
}

func (e Event) String() string {
	switch e.Kind {
	case EventRunning:
		return fmt.Sprintf("%s running=%v", e.Kind, e.Running)
	case EventFound, EventUpdated:
		return fmt.Sprintf("%s %s", e.Kind, e.Service)
	case EventLost:
		return fmt.Sprintf("%s %s", e.Kind, e.Name)
	case EventResolving, EventResolveFailed:
		return fmt.Sprintf("%s %s (%s)", e.Kind, e.Identity, e.Status)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Message)
	}
}

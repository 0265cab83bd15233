package tui

import (
	"context"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/service"
)

// eventBuffer is how many orchestrator events may wait for the program
// loop before new ones are dropped
const eventBuffer = 256

// Orchestrator is the part of discovery.Manager the browser drives
type Orchestrator interface {
	StartDiscovery(ctx context.Context)
	StopDiscovery()
	ResolveService(ctx context.Context, id service.Identity)
	Subscribe(fn func(discovery.Event)) func()
	Services() []service.Resolved
	ClearServices()
	State() discovery.State
	QueueLen() int
}

// Opener launches a URL, normally a *urls.Opener
type Opener interface {
	Open(ctx context.Context, url string) error
}

// eventMsg carries one orchestrator event into the program loop
type eventMsg discovery.Event

// eventBridge hands events from the orchestrator's dispatcher to the
// program loop. The dispatcher never blocks on it: when the buffer is full
// the event is dropped, and the next delivered event refreshes the list
// from the orchestrator's snapshot anyway.
type eventBridge struct {
	ch      chan discovery.Event
	dropped atomic.Int64
}

func newEventBridge() *eventBridge {
	return &eventBridge{ch: make(chan discovery.Event, eventBuffer)}
}

func (b *eventBridge) push(ev discovery.Event) {
	select {
	case b.ch <- ev:
	default:
		if b.dropped.Add(1) == 1 {
			logging.Debug("Browser is not keeping up, dropping events")
		}
	}
}

// wait returns a command that delivers the next event, or nothing once
// ctx ends.
func (b *eventBridge) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-b.ch:
			return eventMsg(ev)
		case <-ctx.Done():
			return nil
		}
	}
}

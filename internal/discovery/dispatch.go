package discovery

import (
	"time"

	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/logging"
)

// Subscribe registers fn for every event. Handlers run one at a time on the
// dispatcher goroutine, in emission order, and must not call StopDiscovery
// or Close, which wait for running handlers. The returned function removes
// the registration.
func (m *Manager) Subscribe(fn func(Event)) func() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	m.subSeq++
	id := m.subSeq
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	return func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		for i, s := range m.subs {
			if s.id == id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// publishLocked queues ev for delivery. Scoped events belong to the current
// generation and are dropped if it ends before they are delivered. Callers
// hold m.mu so the queue order matches the order of state changes.
func (m *Manager) publishLocked(ev Event, scoped bool) {
	ev.At = time.Now()

	m.dmu.Lock()
	if m.dclosed {
		m.dmu.Unlock()
		return
	}
	m.pending = append(m.pending, envelope{ev: ev, gen: m.gen.Load(), scoped: scoped})
	m.dmu.Unlock()

	m.signal()
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) dispatch() {
	defer close(m.done)

	for {
		m.dmu.Lock()
		batch := m.pending
		m.pending = nil
		closed := m.dclosed
		m.dmu.Unlock()

		for _, env := range batch {
			m.deliver(env)
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-m.wake
	}
}

func (m *Manager) deliver(env envelope) {
	m.subsMu.Lock()
	subs := make([]subscriber, len(m.subs))
	copy(subs, m.subs)
	m.subsMu.Unlock()

	for _, s := range subs {
		if !env.scoped {
			m.call(s, env.ev)
			continue
		}
		m.deliverMu.RLock()
		live := m.current(env.gen)
		if live {
			m.call(s, env.ev)
		}
		m.deliverMu.RUnlock()
		if !live {
			return
		}
	}
}

func (m *Manager) call(s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Event handler panicked",
				zap.String("event", ev.Kind.String()),
				zap.Any("panic", r))
		}
	}()
	s.fn(ev)
}

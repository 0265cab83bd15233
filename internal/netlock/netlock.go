// Package netlock provides the reference-counted multicast lock held while
// mDNS traffic must be received.
package netlock

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotHeld is returned by Release when there is no matching Acquire.
var ErrNotHeld = errors.New("multicast lock is not held")

// Hooks are called on the first acquire and on the last release. Either may
// be nil. On platforms without a multicast lock both are left empty.
type Hooks struct {
	Acquire func() error
	Release func() error
}

// Lock is a reference-counted lock. Overlapping sessions may each acquire it;
// the underlying resource is taken once and given back once.
type Lock struct {
	mu    sync.Mutex
	count int
	hooks Hooks
}

// New creates a Lock with the given hooks.
func New(hooks Hooks) *Lock {
	return &Lock{hooks: hooks}
}

// Acquire takes one reference.
func (l *Lock) Acquire() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 && l.hooks.Acquire != nil {
		if err := l.hooks.Acquire(); err != nil {
			return fmt.Errorf("failed to acquire multicast lock: %w", err)
		}
	}
	l.count++
	return nil
}

// Release drops one reference. Releasing a lock that is not held returns
// ErrNotHeld and changes nothing.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return ErrNotHeld
	}
	l.count--
	if l.count == 0 && l.hooks.Release != nil {
		if err := l.hooks.Release(); err != nil {
			return fmt.Errorf("failed to release multicast lock: %w", err)
		}
	}
	return nil
}

// Held returns the current reference count.
func (l *Lock) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

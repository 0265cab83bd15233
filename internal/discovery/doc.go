// Package discovery runs mDNS/DNS-SD discovery sessions and serializes the
// resolution of what they find.
//
// A Manager owns one session at a time. StartDiscovery acquires the shared
// multicast lock, asks the configured discovery backend to browse (by
// default the _services._dns-sd._udp meta-query) and reports the outcome as
// an EventRunning. Every identity the backend reports is appended to a FIFO
// queue. The queue is drained one identity at a time: a single resolution is
// in flight at any moment, and the next one starts as soon as the previous
// one completes, fails or is skipped.
//
// # Backends
//
// The resolving backend comes from the Preferences collaborator and is
// coupled to the discovery backend (see service.EffectiveResolver).
// Identities the chosen resolver cannot handle, such as bonjour records
// under the native resolver, are dropped without an event. Shortcut
// identities are always resolved by bonjour.
//
// # Events
//
// Observers register with Subscribe. Events are delivered on one dispatcher
// goroutine in the order the state changes happened:
//
//	EventRunning        discovery running signal (true/false)
//	EventFound          first resolution of a (type, name) pair
//	EventUpdated        later resolution, replacing the previous value
//	EventLost           a service removed by name
//	EventResolving      a direct ResolveService request was accepted
//	EventResolveFailed  a resolution produced no answer (StatusNotFound/StatusFailed)
//	EventError          a backend failure; the session stops
//
// Failures never surface as returned errors. They travel on the same event
// stream, distinguished by Status.
//
// # Loss
//
// A loss notification removes every known service with the same instance
// name, regardless of type. The native loss callback only carries the name
// reliably, so two services of different types sharing a name are both
// removed.
//
// # Stopping
//
// StopDiscovery may be called in any state and any number of times. It
// cancels the session and direct resolutions, empties the queue and
// releases the multicast lock once. Results that arrive later belong to a
// finished generation and are discarded.
//
// # Usage Example
//
//	m, err := discovery.New(discovery.Config{
//	    Backends: map[service.Backend]backend.Backend{
//	        service.BackendNative:  native.New(),
//	        service.BackendBonjour: bonjour.New(),
//	    },
//	    Preferences: store,
//	    Bookmarks:   store,
//	})
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	m.Subscribe(func(ev discovery.Event) {
//	    fmt.Println(ev)
//	})
//	m.StartDiscovery(ctx)
package discovery

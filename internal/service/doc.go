// Package service holds the backend-neutral model of a discovered service.
//
// A service is first known as an Identity, produced by one of the two
// discovery backends or rebuilt from a pinned shortcut:
//
//   - KindNative: learned through the native (brutella/dnssd) backend.
//   - KindBonjour: learned through the bonjour (grandcat/zeroconf) backend.
//     These records carry a registration type and cannot be resolved by the
//     native backend.
//   - KindShortcut: rebuilt from the type, name and domain stored with a
//     shortcut.
//
// An Identity whose name is empty is type-level: it stands for every
// instance of a service type, as returned by the bonjour backend's
// _services._dns-sd._udp meta-query. Resolving it yields one Resolved per
// instance.
//
// Which backend may resolve which identity is a static table (CanResolve,
// ResolverFor), and so is the coupling between the discovery backend and the
// resolving backend (Supported, EffectiveResolver).
//
// Resolved is the projection handed to observers. It is built by NewResolved
// from a backend answer and always replaces the previous value for the same
// Key; fields are never merged across resolutions.
//
// The package performs no I/O.
package service

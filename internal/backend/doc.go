// Package backend defines the capability interface shared by the mDNS client
// adapters.
//
// Two implementations exist:
//
//   - native: built on github.com/brutella/dnssd. It can resolve only the
//     records it discovered itself. Depending on a runtime CapabilityDetector
//     it either keeps a continuous subscription open for an instance, so
//     record changes are delivered repeatedly, or performs a one-shot lookup.
//   - bonjour: built on github.com/grandcat/zeroconf. It resolves its own
//     records, native records and records rebuilt from shortcuts.
//
// Backends never serialize resolutions themselves. Callers are expected to
// keep at most one Resolve in flight, which the discovery.Manager does.
package backend

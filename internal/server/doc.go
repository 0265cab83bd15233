// Package server exposes the discovery orchestrator over HTTP and streams its
// events to WebSocket clients.
//
// # HTTP API
//
//	GET  /api/state                 orchestrator state, session and queue length
//	GET  /api/services              resolved services in first-resolution order
//	POST /api/discovery/start       start a live scan (idempotent)
//	POST /api/discovery/stop        stop the scan and direct resolutions
//	POST /api/resolve               {"type","name","domain"} resolve one service
//	GET  /api/bookmarks             bookmarks with their availability
//	POST /api/bookmarks/toggle      {"type","name"} flip a bookmark
//	GET  /api/preferences           backend pair and timeouts
//	PUT  /api/preferences           {"discover_backend","resolve_backend"}
//	GET  /api/shortcuts             pinned shortcuts
//	POST /api/shortcuts/launch?id=  resolve a shortcut and return its URL
//
// The bookmark, preference and shortcut routes exist only when the server is
// created WithStore (and WithLauncher for launching).
//
// Scans and resolutions started over HTTP are bound to the server's lifetime,
// not to the request that started them.
//
// # Event Stream
//
// GET /ws upgrades to a WebSocket. The first frame is a snapshot of the state
// and the resolved services; every orchestrator event follows as
//
//	{"type":"event","event":{"kind":"found","status":"ok","service":{...}}}
//
// An event may repeat what the snapshot already showed. Clients can send
// {"action":"start"}, {"action":"stop"}, {"action":"state"} or
// {"action":"resolve","type":"_http._tcp","name":"nas"}.
//
// Clients that cannot keep up with the event rate are disconnected rather
// than slowing down the orchestrator's dispatcher.
//
// # TLS
//
// When Config.TLS is set, Start serves the API as HTTPS and the event stream
// as WSS. NewTLSConfig loads the certificate pair from files.
//
// # Graceful Shutdown
//
// Start handles SIGINT and SIGTERM. Shutdown stops accepting connections,
// closes every WebSocket client and waits for in-flight requests.
package server

// Package logging provides structured logging for mdnshelper.
//
// This package wraps a zap logger with convenience functions for the logging
// patterns used by the discovery pipeline, the CLI and the event-stream daemon.
//
// # Log Levels
//
//   - Debug: Resolve outcomes, dropped identities, WebSocket payloads
//   - Info: Session start/stop, client connections, HTTP requests
//   - Warn: Non-fatal issues (lock release without acquire, dropped clients)
//   - Error: Backend failures surfaced to observers
//
// # Structured Logging
//
//	logging.Info("Service resolved",
//	    zap.String("service_type", "_http._tcp"),
//	    zap.String("service_name", "Living Room"),
//	    zap.Int("queue_len", 3),
//	)
//
// Domain helpers keep field names consistent:
//
//	logging.LogDiscoveryEvent("bonjour", "started", zap.String("session", id))
//	logging.LogResolveEvent(identity.String(), "not_found")
//	logging.LogConnection(remoteAddr, "websocket_upgraded")
//
// # Configuration
//
// CLI commands stay silent unless MDNSHELPER_LOG_LEVEL or --log-level is set:
//
//	if err := logging.Initialize(logLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// Output goes to stderr so it never mixes with command output.
package logging

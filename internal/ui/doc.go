// Package ui renders the one-shot output of the mdnshelper CLI commands.
//
// Components follow a "print and exit" pattern: nothing here waits for
// keyboard input except Confirm. The interactive browser lives in
// internal/tui.
//
//   - Header: command banner with the backend, timeout and other parameters
//   - ScanProgress: elapsed-time bar for timed scans
//   - Result: success, warning and failure boxes
//   - ScanReporter: header, one line per orchestrator event, result box
//
// A scan command subscribes the reporter to the orchestrator:
//
//	rep := ui.NewScanReporter(ui.ScanConfig{
//	    Title:   "Service Scan",
//	    Command: "mdnshelper scan",
//	    Params:  []ui.Param{{Key: "Backend", Value: "bonjour"}},
//	    Timeout: 10 * time.Second,
//	})
//	rep.Begin()
//	unsubscribe := mgr.Subscribe(rep.HandleEvent)
//	defer unsubscribe()
//	...
//	rep.Finish(mgr.Services(), nil)
//
// Logging stays silent unless MDNSHELPER_LOG_LEVEL or --log-level is set,
// so zap output does not interleave with the styled lines.
package ui

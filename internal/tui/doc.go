// Package tui implements the interactive service browser of mdnshelper.
//
// Built on Bubble Tea, it follows the Elm architecture: the models are
// values, Update returns the next model and a command, and View is a pure
// function of the model.
//
// # Screens
//
//   - Browse: scan state with a spinner and progress bar, the resolved
//     services in first-resolution order, unavailable bookmarks
//   - Detail: every field of one service, TXT records included
//
// # Events
//
// The orchestrator delivers events on its dispatcher goroutine. Run
// subscribes a small bridge that forwards them into the program loop as
// messages without ever blocking the dispatcher. Each event rebuilds the
// list from the orchestrator's snapshot, so a dropped event only loses a
// status line.
//
// # Key Bindings
//
//   - s: start or stop a scan
//   - enter: details, r: resolve again, c: clear the list
//   - b: toggle bookmark, p: pin as shortcut, o: open in the browser
//   - /: filter, ?: more help, q: quit
//
// Usage:
//
//	err := tui.Run(ctx, tui.Config{
//	    Orchestrator: mgr,
//	    Store:        store,
//	    Opener:       urls.NewOpener(prefs.PreferredBrowser, nil),
//	    ScanTimeout:  prefs.ScanDuration(),
//	    AutoScan:     true,
//	})
package tui

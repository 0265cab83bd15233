package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/muurk/mdnshelper/internal/app"
	"github.com/muurk/mdnshelper/internal/backend"
	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/discovery"
	"github.com/muurk/mdnshelper/internal/server"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/tui"
	"github.com/muurk/mdnshelper/internal/ui"
	"github.com/muurk/mdnshelper/internal/urls"
)

const (
	// progress redraw interval for interactive output
	tickInterval = 100 * time.Millisecond

	// how long to wait for the stop event after an interrupt
	stopGrace = 2 * time.Second
)

// Global flags
var (
	logLevel     string
	configPath   string
	backendName  string
	resolverName string
	oneShot      bool
)

// Command flags
var (
	scanTimeout    int
	scanType       string
	scanJSON       bool
	resolveTimeout int
	resolveDomain  string
	resolveJSON    bool
	noScan         bool
)

func init() {
	// Common flags for all commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error), silent when empty")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: OS config directory)")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "", "Discovery backend for this run (native, bonjour)")
	rootCmd.PersistentFlags().StringVar(&resolverName, "resolver", "", "Resolving backend for this run (native, bonjour)")
	rootCmd.PersistentFlags().BoolVar(&oneShot, "oneshot", false, "Resolve native records once instead of following updates")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(browseCmd)
}

// loadStore opens the configuration registry with autosave enabled
func loadStore() (*config.Store, error) {
	var (
		reg *config.Registry
		err error
	)
	if configPath != "" {
		reg, err = config.LoadRegistryFrom(configPath)
	} else {
		reg, err = config.LoadRegistry()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return config.NewStore(reg, true), nil
}

// parseOverrides turns the global backend flags into run overrides
func parseOverrides() (app.Overrides, error) {
	o := app.Overrides{OneShot: oneShot}
	if backendName != "" {
		b, err := service.ParseBackend(backendName)
		if err != nil {
			return o, fmt.Errorf("--backend: %w", err)
		}
		o.Discover = b
	}
	if resolverName != "" {
		b, err := service.ParseBackend(resolverName)
		if err != nil {
			return o, fmt.Errorf("--resolver: %w", err)
		}
		o.Resolve = b
	}
	return o, nil
}

// newApp assembles the runtime. Zero values keep the stored preferences.
func newApp(timeout time.Duration, browseType string) (*app.App, error) {
	store, err := loadStore()
	if err != nil {
		return nil, err
	}
	o, err := parseOverrides()
	if err != nil {
		return nil, err
	}
	o.ScanTimeout = timeout
	o.BrowseType = browseType
	return app.New(store, o)
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runSession runs one live scan to completion. onEvent receives every
// orchestrator event and tick runs periodically while the scan is live.
// The returned error aggregates the discovery errors reported by events.
func runSession(ctx context.Context, a *app.App, onEvent func(discovery.Event), tick func()) error {
	var (
		mu      sync.Mutex
		errs    error
		once    sync.Once
		stopped = make(chan struct{})
	)
	unsubscribe := a.Manager.Subscribe(func(ev discovery.Event) {
		if onEvent != nil {
			onEvent(ev)
		}
		switch {
		case ev.Kind == discovery.EventError:
			mu.Lock()
			errs = multierr.Append(errs, ev.Err)
			mu.Unlock()
		case ev.Kind == discovery.EventRunning && !ev.Running:
			once.Do(func() { close(stopped) })
		}
	})
	defer unsubscribe()

	a.Manager.StartDiscovery(ctx)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-stopped:
			break wait
		case <-ctx.Done():
			a.Manager.StopDiscovery()
			select {
			case <-stopped:
			case <-time.After(stopGrace):
			}
			break wait
		case <-ticker.C:
			if tick != nil {
				tick()
			}
		}
	}

	mu.Lock()
	defer mu.Unlock()
	return errs
}

// scanCmd runs a live scan
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the network for mDNS services",
	Long: `Scan the network using mDNS/DNS-SD discovery.

Every service type announced on the network is browsed and resolved, one at
a time, until the scan timeout ends the session. Services are printed as
they are resolved, updated or lost.`,
	Example: `  # Scan for 10 seconds (default)
  mdnshelper scan

  # Scan only for web servers
  mdnshelper scan --type _http._tcp

  # Use the native backend for discovery and bonjour to resolve
  mdnshelper scan --backend native --resolver bonjour

  # JSON output for scripting
  mdnshelper scan --timeout 5 --json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default: scan_timeout preference)")
	scanCmd.Flags().StringVar(&scanType, "type", "", "Service type to browse (default: all service types)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the resolved services as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	a, err := newApp(seconds(scanTimeout), scanType)
	if err != nil {
		return err
	}
	defer a.Close()

	prefs := a.Store.Preferences()
	timeout := seconds(scanTimeout)
	if timeout <= 0 {
		timeout = prefs.ScanDuration()
	}
	browse := scanType
	if browse == "" {
		browse = prefs.BrowseType
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	if scanJSON {
		if err := runSession(ctx, a, nil, nil); err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		return writeJSON(out, server.NewServiceViews(a.Manager.Services()))
	}

	reporter := ui.NewScanReporter(ui.ScanConfig{
		Title:   "Service Scan",
		Command: "mdnshelper scan",
		Params: []ui.Param{
			{Key: "Backends", Value: a.Backends()},
			{Key: "Browse", Value: browse},
			{Key: "Timeout", Value: timeout.String()},
		},
		Timeout:     timeout,
		Interactive: ui.IsTerminal(),
		Output:      out,
	})
	reporter.Begin()

	err = runSession(ctx, a, reporter.HandleEvent, func() {
		reporter.Tick(a.Manager.QueueLen())
	})
	reporter.Finish(a.Manager.Services(), err)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// resolveCmd resolves one service without a scan
var resolveCmd = &cobra.Command{
	Use:   "resolve <type> [name]",
	Short: "Resolve a service directly",
	Long: `Resolve a service without running a scan.

With a name, the single instance is resolved and the command ends at the
first answer. Without a name, every instance of the type that answers within
the resolve window is printed.`,
	Example: `  # Resolve one instance
  mdnshelper resolve _http._tcp "Living Room NAS"

  # Resolve every instance of a type
  mdnshelper resolve _ipp._tcp

  # Resolve with the native backend, one answer only
  mdnshelper resolve _ssh._tcp nas --backend native --resolver native --oneshot`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().IntVar(&resolveTimeout, "timeout", 0, "Give up after this many seconds (default: depends on the request)")
	resolveCmd.Flags().StringVar(&resolveDomain, "domain", "", "mDNS domain (default: local.)")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print the resolved services as JSON")
}

// resolveDeadline is how long a resolve command waits. A single instance
// gets the shortcut timeout; a type gets the resolve window plus a margin.
func resolveDeadline(id service.Identity, prefs config.Preferences, flag int) time.Duration {
	if flag > 0 {
		return seconds(flag)
	}
	if id.IsTypeLevel() {
		return prefs.ResolveDuration() + time.Second
	}
	return prefs.ShortcutDuration()
}

func runResolve(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := newApp(0, "")
	if err != nil {
		return err
	}
	defer a.Close()

	name := ""
	if len(args) > 1 {
		name = args[1]
	}
	id := service.IdentityFor(a.DiscoverBackend(), args[0], name, resolveDomain)
	timeout := resolveDeadline(id, a.Store.Preferences(), resolveTimeout)

	ctx, stop := signalContext(cmd)
	defer stop()

	var reporter *ui.ScanReporter
	if !resolveJSON {
		reporter = ui.NewScanReporter(ui.ScanConfig{
			Title:   "Service Resolution",
			Command: "mdnshelper resolve",
			Params: []ui.Param{
				{Key: "Service", Value: id.String()},
				{Key: "Backends", Value: a.Backends()},
				{Key: "Timeout", Value: timeout.String()},
			},
			Timeout:     timeout,
			Interactive: ui.IsTerminal(),
			Output:      cmd.OutOrStdout(),
		})
		reporter.Begin()
	}

	var (
		mu         sync.Mutex
		resolveErr error
		once       sync.Once
		done       = make(chan struct{})
	)
	finish := func() { once.Do(func() { close(done) }) }

	unsubscribe := a.Manager.Subscribe(func(ev discovery.Event) {
		if reporter != nil {
			reporter.HandleEvent(ev)
		}
		switch ev.Kind {
		case discovery.EventFound, discovery.EventUpdated:
			if !id.IsTypeLevel() && ev.Service.ServiceName == id.Name() {
				finish()
			}
		case discovery.EventResolveFailed:
			if ev.Identity == id {
				mu.Lock()
				resolveErr = ev.Err
				if resolveErr == nil {
					resolveErr = errors.New(ev.Message)
				}
				mu.Unlock()
				finish()
			}
		}
	})
	defer unsubscribe()

	a.Manager.ResolveService(ctx, id)

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-done:
			break wait
		case <-deadline.C:
			break wait
		case <-ctx.Done():
			break wait
		case <-ticker.C:
			if reporter != nil {
				reporter.Tick(0)
			}
		}
	}
	// cancels a resolution still listening for answers
	a.Manager.StopDiscovery()

	services := a.Manager.Services()
	mu.Lock()
	err = resolveErr
	mu.Unlock()
	if err == nil && len(services) == 0 {
		err = fmt.Errorf("%w: %s did not answer within %s", backend.ErrNotFound, id, timeout)
	}

	if resolveJSON {
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), server.NewServiceViews(services))
	}
	reporter.Finish(services, err)
	if err != nil {
		return fmt.Errorf("resolve failed: %w", err)
	}
	return nil
}

// browseCmd launches the interactive browser
var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Launch the interactive service browser",
	Long: `Launch an interactive terminal browser for mDNS services.

The browser provides:
- Live scans with a progress bar
- Service details including TXT records
- Bookmarks and pinned shortcuts
- Opening a service in the preferred browser

This is the default command when none is given.`,
	Example: `  # Launch the browser and start scanning
  mdnshelper browse
  # Or simply (browse is default):
  mdnshelper

  # Start without scanning
  mdnshelper browse --no-scan`,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default: scan_timeout preference)")
	browseCmd.Flags().StringVar(&scanType, "type", "", "Service type to browse (default: all service types)")
	browseCmd.Flags().BoolVar(&noScan, "no-scan", false, "Do not start a scan when the browser opens")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	if !ui.IsTerminal() {
		return errors.New("the interactive browser needs a terminal, use 'mdnshelper scan' instead")
	}

	a, err := newApp(seconds(scanTimeout), scanType)
	if err != nil {
		return err
	}
	defer a.Close()

	prefs := a.Store.Preferences()
	timeout := seconds(scanTimeout)
	if timeout <= 0 {
		timeout = prefs.ScanDuration()
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	if err := tui.Run(ctx, tui.Config{
		Orchestrator: a.Manager,
		Store:        a.Store,
		Opener:       urls.NewOpener(prefs.PreferredBrowser, nil),
		ScanTimeout:  timeout,
		Backends:     a.Backends(),
		AutoScan:     !noScan,
	}); err != nil {
		return fmt.Errorf("browser error: %w", err)
	}
	return nil
}

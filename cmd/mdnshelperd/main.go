// Mdnshelperd serves the discovery orchestrator over HTTP and WebSocket.
//
// A presentation layer connects to the event stream to receive found,
// updated and lost services as they happen, and drives scans and
// resolutions through the HTTP API. The daemon can announce itself over
// mDNS so clients find it without configuration.
//
// Usage:
//
//	mdnshelperd serve [flags]
//
// See 'mdnshelperd serve --help' for available options.
package main

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/muurk/mdnshelper/internal/app"
	"github.com/muurk/mdnshelper/internal/backend/native"
	"github.com/muurk/mdnshelper/internal/config"
	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/server"
	"github.com/muurk/mdnshelper/internal/service"
	"github.com/muurk/mdnshelper/internal/version"
)

// announceType is the service type the daemon publishes
const announceType = "_mdnshelper._tcp"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mdnshelperd",
	Short: "mDNS discovery event server",
	Long: `A standalone server exposing mDNS/DNS-SD discovery over HTTP and WebSocket.

Scans and resolutions are started over the HTTP API. Every orchestrator event
is streamed to connected WebSocket clients on /ws.

Note: For one-off scans and the interactive browser, use 'mdnshelper'.`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	host         string
	port         int
	certPath     string
	keyPath      string
	logLevel     string
	configPath   string
	backendName  string
	resolverName string
	announce     bool
	announceName string
	scanOnStart  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the event server",
	Long: `Start the event server and wait for clients.

Preferences, bookmarks and shortcuts are read from the same configuration
file as the mdnshelper CLI. Preference changes made over the API are saved
and apply to the next scan or resolution.

With --announce the server publishes itself as _mdnshelper._tcp using the
native responder.`,
	Example: `  # Start on the default port
  mdnshelperd serve

  # Listen on localhost only with debug logging
  mdnshelperd serve --host 127.0.0.1 --log-level debug

  # Announce the server and start a scan right away
  mdnshelperd serve --announce --scan

  # Serve HTTPS and WSS
  mdnshelperd serve --cert fullchain.pem --key privkey.pem

  # Use native discovery with the bonjour resolver
  mdnshelperd serve --backend native --resolver bonjour`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", 8053, "Server port")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "TLS certificate file (serves HTTPS and WSS with --key)")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "TLS private key file")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&configPath, "config", "", "Configuration file (default: OS config directory)")
	serveCmd.Flags().StringVar(&backendName, "backend", "", "Discovery backend (default: discover_backend preference)")
	serveCmd.Flags().StringVar(&resolverName, "resolver", "", "Resolving backend (default: resolve_backend preference)")
	serveCmd.Flags().BoolVar(&announce, "announce", false, "Announce the server over mDNS")
	serveCmd.Flags().StringVar(&announceName, "announce-name", "", "Announced instance name (default: mdnshelper on <hostname>)")
	serveCmd.Flags().BoolVar(&scanOnStart, "scan", false, "Start a scan as soon as the server is up")
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	cmd.SilenceUsage = true

	if err := logging.Initialize(logLevel); err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, logging.Sync()) }()

	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	// Validate: Either both cert and key are provided, or neither
	if (certPath == "") != (keyPath == "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}
	var tlsConfig *tls.Config
	if certPath != "" {
		if tlsConfig, err = server.NewTLSConfig(certPath, keyPath); err != nil {
			return err
		}
	}

	store, err := loadStore()
	if err != nil {
		return err
	}
	o, err := parseOverrides()
	if err != nil {
		return err
	}
	a, err := app.New(store, o)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()

	srv, err := server.New(&server.Config{Host: host, Port: port, TLS: tlsConfig}, a.Manager,
		server.WithStore(a.Store),
		server.WithLauncher(a.Launcher))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		wg          sync.WaitGroup
		announceErr error
	)
	if announce {
		wg.Add(1)
		go func() {
			defer wg.Done()
			announceErr = native.Announce(ctx, native.Announcement{
				Name: instanceName(),
				Type: announceType,
				Port: port,
				Text: map[string]string{
					"version": version.Version,
					"path":    "/ws",
				},
			})
			if announceErr != nil {
				logging.Error("Announcement stopped", zap.Error(announceErr))
			}
		}()
	}

	if scanOnStart {
		a.Manager.StartDiscovery(ctx)
	}

	logging.Info("Event stream ready",
		zap.String("url", listenURL()),
		zap.String("backends", a.Backends()))

	// Start blocks until SIGINT or SIGTERM
	err = srv.Start()
	stop()
	wg.Wait()
	return multierr.Append(err, announceErr)
}

func instanceName() string {
	if announceName != "" {
		return announceName
	}
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "mdnshelper"
	}
	return "mdnshelper on " + h
}

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

func parseOverrides() (app.Overrides, error) {
	var o app.Overrides
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

// Version command
var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(version.Get())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mdnshelperd %s\n", version.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
}

// listenURL is logged for clients connecting by hand
func listenURL() string {
	h := host
	if h == "" {
		h = "localhost"
	}
	scheme := "ws://"
	if certPath != "" {
		scheme = "wss://"
	}
	return scheme + net.JoinHostPort(h, strconv.Itoa(port)) + "/ws"
}

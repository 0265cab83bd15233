// Mdnshelper discovers and resolves mDNS/DNS-SD services on the local network.
//
// It runs live scans, resolves individual services, keeps bookmarks and
// pinned shortcuts, and offers an interactive browser. Two client
// implementations are available: the native responder (brutella/dnssd) and
// the bonjour client (grandcat/zeroconf).
//
// Usage:
//
//	mdnshelper [command] [flags]
//
// Running without arguments launches the interactive browser.
// See 'mdnshelper --help' for available commands.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/mdnshelper/internal/logging"
	"github.com/muurk/mdnshelper/internal/version"
)

func main() {
	defer func() { _ = logging.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mdnshelper",
	Short: "mDNS/DNS-SD discovery and resolution utility",
	Long: `Discover and resolve mDNS/DNS-SD services on the local network.

A scan browses the service meta-query and resolves every service type it
finds, one at a time. Resolved services can be bookmarked or pinned as
shortcuts that are resolved directly, without a scan.

If no command is specified, the interactive browser will launch automatically.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless --log-level or MDNSHELPER_LOG_LEVEL is set
		return logging.Initialize(logLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: browse when no subcommand provided
		return runBrowse(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionJSON bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if versionJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(version.Get())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "mdnshelper %s\n", version.Full())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version information as JSON")
}
